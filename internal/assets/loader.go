package assets

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/yksanjo/ai-compliance-system/internal/schema"
)

// assetEntry is one asset definition with its optional fact snapshot.
type assetEntry struct {
	ID          string                  `yaml:"id"`
	Type        schema.AssetType        `yaml:"type"`
	Identifier  string                  `yaml:"identifier"`
	Domain      *schema.DomainRecord    `yaml:"domain,omitempty"`
	IP          *schema.IPRecord        `yaml:"ip,omitempty"`
	Certificate *schema.CertificateInfo `yaml:"certificate,omitempty"`
}

type assetFile struct {
	Assets []assetEntry `yaml:"assets"`
}

// LoadFile reads an asset inventory YAML file into the inventory.
// Fact snapshots embedded in the file are cached alongside the assets.
func LoadFile(inv *Inventory, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("assets: failed to read %s: %w", path, err)
	}
	return Load(inv, data)
}

// Load parses asset definitions from YAML and registers them.
func Load(inv *Inventory, data []byte) (int, error) {
	var file assetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("assets: failed to parse inventory: %w", err)
	}

	for i, entry := range file.Assets {
		if entry.ID == "" {
			return 0, fmt.Errorf("assets: entry %d has no id", i)
		}
		if !entry.Type.IsValid() {
			return 0, fmt.Errorf("assets: entry %q has invalid type %q", entry.ID, entry.Type)
		}
		if entry.Identifier == "" {
			return 0, fmt.Errorf("assets: entry %q has no identifier", entry.ID)
		}
	}

	for _, entry := range file.Assets {
		inv.AddAsset(Asset{
			ID:         entry.ID,
			Type:       entry.Type,
			Identifier: entry.Identifier,
		})

		switch {
		case entry.Domain != nil:
			rec := *entry.Domain
			if rec.Domain == "" {
				rec.Domain = entry.Identifier
			}
			inv.PutDomainRecord(rec)
		case entry.IP != nil:
			rec := *entry.IP
			if rec.Address == "" {
				rec.Address = entry.Identifier
			}
			inv.PutIPRecord(rec)
		case entry.Certificate != nil:
			inv.PutCertificateInfo(entry.Identifier, *entry.Certificate)
		}
	}

	return len(file.Assets), nil
}
