package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/statimport/internal/config"
	"github.com/JonMunkholm/statimport/internal/core"
	"github.com/JonMunkholm/statimport/internal/store/memstore"
	"github.com/JonMunkholm/statimport/internal/store/postgres"
	"github.com/JonMunkholm/statimport/internal/store/sqlite"
)

// openStore picks the store implementation from the URL scheme:
//
//	postgres://... or postgresql://...  PostgreSQL
//	sqlite://PATH or file:PATH          SQLite
//	memory://                           in-process, discarded on exit
func openStore(ctx context.Context, cfg config.DatabaseConfig) (core.Store, error) {
	url := cfg.URL

	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return postgres.Open(ctx, url, postgres.PoolOptions{
			MaxConns:        cfg.MaxConns,
			MinConns:        cfg.MinConns,
			MaxConnLifetime: cfg.MaxConnLifetime,
			MaxConnIdleTime: cfg.MaxConnIdleTime,
		})
	case strings.HasPrefix(url, "sqlite://"):
		return sqlite.Open(strings.TrimPrefix(url, "sqlite://"))
	case strings.HasPrefix(url, "file:"):
		return sqlite.Open(url)
	case strings.HasPrefix(url, "memory:"):
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unsupported database URL scheme in %q", config.MaskURL(url))
	}
}
