package admin

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/calmstack/mantra/internal/catalog"
	"github.com/calmstack/mantra/internal/config"
)

// MoodsCmd returns the catalog inspection command
func MoodsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "moods",
		Short: "List the moods in the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			cat := catalog.Default()
			if cfg.CatalogPath != "" {
				cat, err = catalog.LoadFile(cfg.CatalogPath)
				if err != nil {
					return fmt.Errorf("failed to load catalog: %w", err)
				}
			}

			for _, mood := range cat.MoodNames() {
				fmt.Printf("%s\t%d curated, fallback %s\n",
					mood, len(cat.CuratedFor(mood)), cat.FallbackFor(mood))
			}
			return nil
		},
	}
}
