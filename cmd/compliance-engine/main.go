// Package main is the entry point for the compliance engine daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yksanjo/ai-compliance-system/internal/api"
	"github.com/yksanjo/ai-compliance-system/internal/assets"
	"github.com/yksanjo/ai-compliance-system/internal/automation"
	"github.com/yksanjo/ai-compliance-system/internal/config"
	"github.com/yksanjo/ai-compliance-system/internal/detection"
	apperrors "github.com/yksanjo/ai-compliance-system/internal/errors"
	"github.com/yksanjo/ai-compliance-system/internal/incident"
	"github.com/yksanjo/ai-compliance-system/internal/logging"
	"github.com/yksanjo/ai-compliance-system/internal/notify"
	"github.com/yksanjo/ai-compliance-system/internal/publisher"
	"github.com/yksanjo/ai-compliance-system/internal/remediation"
	"github.com/yksanjo/ai-compliance-system/internal/schema"
	"github.com/yksanjo/ai-compliance-system/internal/storage"
	"github.com/yksanjo/ai-compliance-system/internal/storage/s3"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := setupLogging(cfg.Logging)
	slog.SetDefault(logger)
	apperrors.SetProductionMode(cfg.Logging.Production)

	slog.Info("configuration loaded",
		"http_port", cfg.Server.HTTPPort,
		"scan_interval", cfg.Scan.Interval,
		"ledger_backend", cfg.Ledger.Backend,
		"storage_enabled", cfg.Storage.Enabled,
		"publisher_enabled", cfg.Publisher.Enabled,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Asset inventory
	inventory := assets.NewInventory()
	if cfg.Scan.AssetFile != "" {
		n, err := assets.LoadFile(inventory, cfg.Scan.AssetFile)
		if err != nil {
			slog.Error("failed to load asset inventory", "error", err)
			os.Exit(1)
		}
		slog.Info("asset inventory loaded", "path", cfg.Scan.AssetFile, "assets", n)
	}

	// Policies
	policies, err := loadPolicies(cfg.Scan.PolicyFile)
	if err != nil {
		slog.Error("failed to load policies", "error", err)
		os.Exit(1)
	}

	// Detection
	detEngine := detection.NewEngine(inventory, logger)
	if !cfg.Scan.LoadBuiltins {
		for _, r := range detection.BuiltinRules() {
			detEngine.SetRuleEnabled(r.ID, false)
		}
	}
	if cfg.Scan.RuleDir != "" {
		if err := loadRules(detEngine, cfg.Scan.RuleDir); err != nil {
			slog.Error("failed to load rules", "error", err)
			os.Exit(1)
		}
	}

	violations := detection.NewStore()
	incidents := incident.NewManager(logger)

	// Notification channels
	notifier := buildNotifier(cfg.Notify, logger)

	// Remediation runner
	var runner remediation.Runner
	if cfg.Remediation.WebhookURL != "" {
		runner = remediation.NewWebhookRunner(cfg.Remediation.WebhookURL)
	} else {
		runner = remediation.NewRecorder(logger)
	}

	// Execution ledger
	ledger, err := buildLedger(cfg.Ledger)
	if err != nil {
		slog.Error("failed to initialize ledger", "error", err)
		os.Exit(1)
	}

	// Archival storage
	var (
		chClient    *storage.ClickHouseClient
		batchWriter *storage.BatchWriter
		incArchiver *storage.IncidentArchiver
	)
	if cfg.Storage.Enabled {
		slog.Info("initializing ClickHouse storage",
			"hosts", cfg.Storage.ClickHouse.Hosts,
			"database", cfg.Storage.ClickHouse.Database,
		)

		chClient, err = storage.NewClickHouseClient(storage.ClickHouseConfig{
			Hosts:           cfg.Storage.ClickHouse.Hosts,
			Database:        cfg.Storage.ClickHouse.Database,
			Username:        cfg.Storage.ClickHouse.Username,
			Password:        cfg.Storage.ClickHouse.Password,
			MaxOpenConns:    cfg.Storage.ClickHouse.MaxOpenConns,
			MaxIdleConns:    cfg.Storage.ClickHouse.MaxIdleConns,
			ConnMaxLifetime: cfg.Storage.ClickHouse.ConnMaxLifetime,
			TLSEnabled:      cfg.Storage.ClickHouse.TLSEnabled,
			DialTimeout:     cfg.Storage.ClickHouse.DialTimeout,
		})
		if err != nil {
			slog.Error("failed to connect to ClickHouse", "error", err)
			os.Exit(1)
		}

		slog.Info("running database migrations")
		migrator := storage.NewMigrator(chClient)
		if err := migrator.Run(ctx); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}

		retention := storage.NewRetentionManager(chClient, storage.DefaultRetentionConfig())
		if err := retention.ApplyTTLs(ctx); err != nil {
			slog.Warn("failed to apply retention policies", "error", err)
		}

		batchWriter = storage.NewBatchWriter(chClient, storage.BatchWriterConfig{
			BatchSize:     cfg.Storage.BatchSize,
			FlushInterval: cfg.Storage.FlushEvery,
			MaxRetries:    3,
			RetryDelay:    time.Second,
		})
		incArchiver = storage.NewIncidentArchiver(chClient)
		ledger = &archivingLedger{
			primary: ledger,
			archive: storage.NewLedgerArchiver(chClient),
		}
	}

	// Evidence archive
	var evidence *s3.EvidenceArchive
	if cfg.Storage.S3.Enabled {
		s3Client, err := s3.NewClient(ctx, &s3.Config{
			Region:           cfg.Storage.S3.Region,
			Bucket:           cfg.Storage.S3.Bucket,
			Prefix:           cfg.Storage.S3.Prefix,
			Endpoint:         cfg.Storage.S3.Endpoint,
			AccessKeyID:      cfg.Storage.S3.AccessKeyID,
			SecretAccessKey:  cfg.Storage.S3.SecretAccessKey,
			UsePathStyle:     cfg.Storage.S3.UsePathStyle,
			RetryMaxAttempts: 3,
		}, logger)
		if err != nil {
			slog.Error("failed to initialize evidence archive", "error", err)
			os.Exit(1)
		}
		evidence = s3.NewEvidenceArchive(s3Client, logger)
	}

	// Event publisher
	var events *publisher.Publisher
	if cfg.Publisher.Enabled {
		events, err = publisher.New(cfg.Publisher, logger)
		if err != nil {
			slog.Error("failed to initialize publisher", "error", err)
			os.Exit(1)
		}
	}

	// Automation
	executor := automation.NewExecutor(incidents, notifier, runner, logger)
	autoEngine := automation.NewEngine(executor, incidents, ledger, logger)
	for _, p := range automation.BuiltinPlaybooks() {
		if err := autoEngine.AddPlaybook(p); err != nil {
			slog.Error("failed to register built-in playbook", "playbook", p.ID, "error", err)
		}
	}
	if cfg.Scan.PlaybookDir != "" {
		if err := loadPlaybooks(autoEngine, cfg.Scan.PlaybookDir); err != nil {
			slog.Error("failed to load playbooks", "error", err)
			os.Exit(1)
		}
	}

	svc := &scanService{
		detection:   detEngine,
		automation:  autoEngine,
		violations:  violations,
		validator:   schema.NewValidator(),
		policies:    policies,
		batchWriter: batchWriter,
		incArchiver: incArchiver,
		evidence:    evidence,
		events:      events,
		timeout:     cfg.Scan.Timeout,
		logger:      logger,
	}

	// HTTP API
	mux := http.NewServeMux()
	handler := api.NewHandler(violations, incidents, autoEngine, ledger, svc, logger)
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      api.WithMiddleware(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		slog.Info("starting api server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Scan scheduler
	go runScheduler(ctx, svc, cfg.Scan.Interval)

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	cancel()

	if events != nil {
		if err := events.Close(); err != nil {
			slog.Error("publisher close error", "error", err)
		}
	}

	if batchWriter != nil {
		if err := batchWriter.Close(); err != nil {
			slog.Error("batch writer close error", "error", err)
		}
	}
	if chClient != nil {
		if err := chClient.Close(); err != nil {
			slog.Error("clickhouse close error", "error", err)
		}
	}

	slog.Info("shutdown complete",
		"violations", violations.Count(),
		"incidents", incidents.Count(),
	)
}

// setupLogging builds the root logger from config.
func setupLogging(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// runScheduler triggers periodic scans until the context is cancelled.
func runScheduler(ctx context.Context, svc *scanService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("scan scheduler started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("scan scheduler stopping")
			return
		case <-ticker.C:
			if _, err := svc.RunScan(ctx); err != nil {
				slog.Error("scheduled scan failed", "error", err)
			}
		}
	}
}

// loadPolicies reads compliance policy references from a YAML file.
func loadPolicies(path string) ([]schema.Policy, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var file struct {
		Policies []schema.Policy `yaml:"policies"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	return file.Policies, nil
}

// loadRules registers every detection rule found under dir.
func loadRules(engine *detection.Engine, dir string) error {
	files, err := collectYAMLFiles(dir)
	if err != nil {
		return err
	}

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", f, err)
		}
		rules, err := detection.ParseRules(data)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", f, err)
		}
		for _, r := range rules {
			if err := engine.AddRule(r); err != nil {
				return fmt.Errorf("invalid rule %s in %s: %w", r.ID, f, err)
			}
		}
		slog.Info("rules loaded", "path", f, "count", len(rules))
	}
	return nil
}

// loadPlaybooks registers every playbook found under dir.
func loadPlaybooks(engine *automation.Engine, dir string) error {
	files, err := collectYAMLFiles(dir)
	if err != nil {
		return err
	}

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", f, err)
		}
		playbooks, err := automation.ParsePlaybooks(data)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", f, err)
		}
		for _, p := range playbooks {
			if err := engine.AddPlaybook(p); err != nil {
				return fmt.Errorf("invalid playbook %s in %s: %w", p.ID, f, err)
			}
		}
		slog.Info("playbooks loaded", "path", f, "count", len(playbooks))
	}
	return nil
}

func collectYAMLFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// buildNotifier wires notification channels from config. A log channel
// is registered when nothing else is enabled so playbook notification
// steps still have somewhere to go.
func buildNotifier(cfg config.NotifyConfig, logger *slog.Logger) *notify.Dispatcher {
	d := notify.NewDispatcher(logger)

	if cfg.Slack.Enabled {
		d.Register(notify.NewSlackChannel(cfg.Slack.WebhookURL, cfg.Slack.Channel, cfg.Slack.Username))
		logger.Info("slack channel registered",
			"webhook_url", logging.MaskString(cfg.Slack.WebhookURL, 24, 0))
	}
	if cfg.PagerDuty.Enabled {
		d.Register(notify.NewPagerDutyChannel(cfg.PagerDuty.RoutingKey))
		logger.Info("pagerduty channel registered",
			"routing_key", logging.MaskString(cfg.PagerDuty.RoutingKey, 4, 0))
	}
	if cfg.Email.Enabled {
		d.Register(notify.NewEmailChannel(&notify.EmailConfig{
			SMTPHost: cfg.Email.SMTPHost,
			SMTPPort: cfg.Email.SMTPPort,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			To:       cfg.Email.To,
			UseTLS:   cfg.Email.UseTLS,
		}))
	}
	if cfg.Jira.Enabled {
		d.Register(notify.NewJiraChannel(cfg.Jira.BaseURL, cfg.Jira.ProjectKey, cfg.Jira.Username, cfg.Jira.APIToken))
	}
	for _, wh := range cfg.Webhooks {
		d.Register(notify.NewWebhookChannel(wh.Name, wh.URL, wh.Headers))
	}

	if len(d.ChannelNames()) == 0 {
		d.Register(notify.NewLogChannel(func(format string, args ...interface{}) {
			logger.Info(fmt.Sprintf(format, args...), "component", "log-channel")
		}))
	}

	return d
}

// buildLedger builds the configured execution ledger backend.
func buildLedger(cfg config.LedgerConfig) (automation.LedgerStore, error) {
	switch cfg.Backend {
	case "redis":
		rcfg := automation.DefaultRedisLedgerConfig()
		rcfg.Addr = cfg.Redis.Addr
		rcfg.Password = cfg.Redis.Password
		rcfg.DB = cfg.Redis.DB
		if cfg.Redis.Key != "" {
			rcfg.Key = cfg.Redis.Key
		}
		rcfg.MaxEntries = int64(cfg.MaxEntries)
		return automation.NewRedisLedger(rcfg)
	default:
		return automation.NewMemoryLedger(cfg.MaxEntries), nil
	}
}
