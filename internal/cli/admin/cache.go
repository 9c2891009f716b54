package admin

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/calmstack/mantra/internal/cache"
	"github.com/calmstack/mantra/internal/config"
	"github.com/calmstack/mantra/internal/repository"
)

// cacheAdmin is what the cache commands need beyond the retrieval
// contract: enumerating and clearing keys.
type cacheAdmin interface {
	Keys(ctx context.Context) ([]string, error)
	Clear(ctx context.Context, key string) error
}

// CacheCmd returns the cache inspection commands
func CacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the fetch cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List cache keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := openCacheAdmin(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			keys, err := store.Keys(cmd.Context())
			if err != nil {
				return err
			}
			if len(keys) == 0 {
				fmt.Println("cache is empty")
				return nil
			}
			for _, key := range keys {
				fmt.Println(key)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear <key>",
		Short: "Remove all cached candidates under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := openCacheAdmin(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if err := store.Clear(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("cleared %q\n", args[0])
			return nil
		},
	})

	return cmd
}

func openCacheAdmin(ctx context.Context) (cacheAdmin, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.HasDatabase() {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return repository.NewCacheRepository(pool), pool.Close, nil
	}

	store := cache.NewFileCache(filepath.Join(cfg.DataDir, "fetch_cache.json"))
	return store, func() {}, nil
}
