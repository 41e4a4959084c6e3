package main

import (
	"context"
	"os"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"

	"github.com/sells-group/sourcing-cli/internal/notify"
	"github.com/sells-group/sourcing-cli/internal/pipeline"
	"github.com/sells-group/sourcing-cli/internal/store"
	"github.com/sells-group/sourcing-cli/pkg/directory"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "sourcing.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.MaxConns, cfg.Store.MinConns)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initDirectory builds the Salesforce-backed user directory, or nil when
// directory auth is not configured. Mentions degrade gracefully without it.
func initDirectory() (directory.Lookup, error) {
	if cfg.Directory.ClientID == "" {
		return nil, nil
	}

	pemData, err := os.ReadFile(cfg.Directory.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read directory JWT private key")
	}

	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.Directory.LoginURL,
		Username:       cfg.Directory.Username,
		ConsumerKey:    cfg.Directory.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce directory")
	}

	return directory.NewSalesforce(sf, directory.WithRateLimit(cfg.Directory.RateLimitRPS)), nil
}

func initFanout(st store.Store) *notify.Fanout {
	var wh *notify.Webhook
	if cfg.Notify.WebhookURL != "" {
		wh = notify.NewWebhook(cfg.Notify.WebhookURL, cfg.Notify.RateLimitRPS, cfg.Notify.MaxAttempts)
	}
	return notify.NewFanout(st, wh)
}

func initPipeline(st store.Store) (*pipeline.Pipeline, error) {
	dir, err := initDirectory()
	if err != nil {
		return nil, err
	}
	return pipeline.New(st, dir, initFanout(st), cfg.Bulk.MaxConcurrent), nil
}
