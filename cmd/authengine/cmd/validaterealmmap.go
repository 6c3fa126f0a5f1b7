package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nforgeio/lilltek-auth/internal/backend"
	"github.com/nforgeio/lilltek-auth/internal/config"
	"github.com/nforgeio/lilltek-auth/internal/realmmap"
)

var validateRealmMapCmd = &cobra.Command{
	Use:   "validate-realmmap",
	Short: "Parse the configured realm map and open every backend, without starting the engine",
	RunE:  runValidateRealmMap,
}

func runValidateRealmMap(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	backends := backend.NewRegistry()
	providers := realmmap.NewRegistry(backends)
	provider, ok := providers.New(cfg.RealmMap.ProviderType)
	if !ok {
		return fmt.Errorf("unknown realm_map.provider_type %q", cfg.RealmMap.ProviderType)
	}

	if err := provider.Open(backend.CommonArgs{}, cfg.RealmMap.ConfigHandle); err != nil {
		return fmt.Errorf("realm map provider rejected config_handle: %w", err)
	}
	defer provider.Close()

	mappings, err := provider.GetMap(context.Background())
	if err != nil {
		return fmt.Errorf("realm map failed to load: %w", err)
	}

	for _, m := range mappings {
		if m.Extension != nil {
			_ = m.Extension.Close()
		}
	}

	cmd.Printf("realm map OK: %d realm(s)\n", len(mappings))
	for _, m := range mappings {
		cmd.Printf("  %-20s extension=%s\n", m.Realm, m.ExtensionType)
	}
	return nil
}
