// Package assets maintains the monitored asset inventory and the cached
// fact snapshots consumed by detection. Fact acquisition (DNS resolution,
// TLS inspection, reputation lookups) is an external concern; collectors
// push snapshots into the store and detection reads them.
package assets

import (
	"sync"
	"time"

	"github.com/yksanjo/ai-compliance-system/internal/schema"
)

// Asset is a monitored infrastructure asset.
type Asset struct {
	ID         string           `json:"id" yaml:"id"`
	Type       schema.AssetType `json:"type" yaml:"type"`
	Identifier string           `json:"identifier" yaml:"identifier"`
	AddedAt    time.Time        `json:"added_at" yaml:"-"`
}

// Inventory holds monitored assets and their cached fact snapshots.
// All access is mutex-guarded; concurrent scans and collectors share
// one inventory.
type Inventory struct {
	mu      sync.RWMutex
	assets  map[string]*Asset
	order   []string
	domains map[string]*schema.DomainRecord
	ips     map[string]*schema.IPRecord
	certs   map[string]*schema.CertificateInfo
}

// NewInventory creates an empty inventory.
func NewInventory() *Inventory {
	return &Inventory{
		assets:  make(map[string]*Asset),
		domains: make(map[string]*schema.DomainRecord),
		ips:     make(map[string]*schema.IPRecord),
		certs:   make(map[string]*schema.CertificateInfo),
	}
}

// AddAsset registers an asset. Re-adding an existing id replaces it in
// place without changing its position in iteration order.
func (inv *Inventory) AddAsset(a Asset) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if a.AddedAt.IsZero() {
		a.AddedAt = time.Now().UTC()
	}
	if _, exists := inv.assets[a.ID]; !exists {
		inv.order = append(inv.order, a.ID)
	}
	inv.assets[a.ID] = &a
}

// RemoveAsset removes an asset and any cached facts for it.
func (inv *Inventory) RemoveAsset(id string) bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	a, ok := inv.assets[id]
	if !ok {
		return false
	}
	delete(inv.assets, id)
	for i, aid := range inv.order {
		if aid == id {
			inv.order = append(inv.order[:i], inv.order[i+1:]...)
			break
		}
	}
	switch a.Type {
	case schema.AssetDomain:
		delete(inv.domains, a.Identifier)
	case schema.AssetIP:
		delete(inv.ips, a.Identifier)
	case schema.AssetCertificate:
		delete(inv.certs, a.Identifier)
	}
	return true
}

// GetAsset returns an asset by id.
func (inv *Inventory) GetAsset(id string) (*Asset, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	a, ok := inv.assets[id]
	if !ok {
		return nil, false
	}
	cp := *a
	return &cp, true
}

// Assets returns all assets in registration order.
func (inv *Inventory) Assets() []*Asset {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	result := make([]*Asset, 0, len(inv.order))
	for _, id := range inv.order {
		cp := *inv.assets[id]
		result = append(result, &cp)
	}
	return result
}

// PutDomainRecord caches a domain fact snapshot.
func (inv *Inventory) PutDomainRecord(rec schema.DomainRecord) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if rec.FetchedAt.IsZero() {
		rec.FetchedAt = time.Now().UTC()
	}
	inv.domains[rec.Domain] = &rec
}

// DomainRecord returns the cached snapshot for a domain, if present.
func (inv *Inventory) DomainRecord(domain string) (*schema.DomainRecord, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	rec, ok := inv.domains[domain]
	if !ok {
		return nil, false
	}
	cp := *rec
	return &cp, true
}

// PutIPRecord caches an IP fact snapshot.
func (inv *Inventory) PutIPRecord(rec schema.IPRecord) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if rec.FetchedAt.IsZero() {
		rec.FetchedAt = time.Now().UTC()
	}
	inv.ips[rec.Address] = &rec
}

// IPRecord returns the cached snapshot for an IP, if present.
func (inv *Inventory) IPRecord(address string) (*schema.IPRecord, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	rec, ok := inv.ips[address]
	if !ok {
		return nil, false
	}
	cp := *rec
	return &cp, true
}

// PutCertificateInfo caches a certificate fact snapshot.
func (inv *Inventory) PutCertificateInfo(id string, info schema.CertificateInfo) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if info.FetchedAt.IsZero() {
		info.FetchedAt = time.Now().UTC()
	}
	inv.certs[id] = &info
}

// CertificateInfo returns the cached snapshot for a certificate, if present.
func (inv *Inventory) CertificateInfo(id string) (*schema.CertificateInfo, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	info, ok := inv.certs[id]
	if !ok {
		return nil, false
	}
	cp := *info
	return &cp, true
}

// Count returns the number of registered assets.
func (inv *Inventory) Count() int {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return len(inv.assets)
}
