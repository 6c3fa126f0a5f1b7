package realmmap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nforgeio/lilltek-auth/internal/authtypes"
	"github.com/nforgeio/lilltek-auth/internal/backend"
)

// ODBCProvider runs a query returning columns Realm, ProviderType, Args,
// Query and builds one RealmMapping per row (spec §4.2: "the ODBC variant
// expects connectionString$$query and returns a result set with columns
// Realm, ProviderType, Args, Query"). Args is the same semicolon-separated
// Key=Value format the File/Config wire format uses.
type ODBCProvider struct {
	backends *backend.Registry
	pool     *pgxpool.Pool
	query    string
}

func NewODBCProvider(backends *backend.Registry) *ODBCProvider {
	return &ODBCProvider{backends: backends}
}

func (p *ODBCProvider) Open(engineDefaults backend.CommonArgs, configHandle string) error {
	parts := strings.SplitN(configHandle, "$$", 2)
	if len(parts) != 2 {
		return fmt.Errorf("realmmap: odbc configHandle must be \"connectionString$$query\"")
	}
	dsn := backend.ExpandEnv(strings.TrimSpace(parts[0]))
	p.query = strings.TrimSpace(parts[1])

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("realmmap: parsing odbc connection string: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("realmmap: connecting odbc realm map source: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("realmmap: ping odbc realm map source: %w", err)
	}
	p.pool = pool
	return nil
}

func (p *ODBCProvider) GetMap(ctx context.Context) ([]authtypes.RealmMapping, error) {
	rows, err := p.pool.Query(ctx, p.query)
	if err != nil {
		return nil, fmt.Errorf("realmmap: odbc query: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	var mappings []authtypes.RealmMapping

	for rows.Next() {
		var realm, providerType, argString, query string
		if err := rows.Scan(&realm, &providerType, &argString, &query); err != nil {
			return nil, fmt.Errorf("realmmap: odbc row scan: %w", err)
		}

		lowerRealm := strings.ToLower(realm)
		if _, dup := seen[lowerRealm]; dup {
			return nil, fmt.Errorf("realmmap: duplicate realm %q from odbc source", realm)
		}
		seen[lowerRealm] = struct{}{}

		args, err := parseArgs(argString)
		if err != nil {
			return nil, fmt.Errorf("realmmap: odbc row for realm %q: %w", realm, err)
		}
		mapping := authtypes.RealmMapping{
			Realm:         realm,
			ExtensionType: providerType,
			Args:          args,
			Query:         backend.ExpandEnv(query),
		}
		if err := applyLockoutArgs(&mapping, args); err != nil {
			return nil, fmt.Errorf("realmmap: odbc row for realm %q: %w", realm, err)
		}
		if err := openExtension(p.backends, &mapping); err != nil {
			return nil, fmt.Errorf("realmmap: odbc row for realm %q: %w", realm, err)
		}
		mappings = append(mappings, mapping)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("realmmap: odbc row iteration: %w", err)
	}
	return mappings, nil
}

func (p *ODBCProvider) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
