package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/sevasetu/sevasetu/config"
	"github.com/sevasetu/sevasetu/internal/catalog"
	"github.com/sevasetu/sevasetu/internal/store"
)

type seedService struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	Response    string   `json:"response"`
}

func seedCMD() *cobra.Command {
	var cfgPath string
	var file string
	var seed = &cobra.Command{
		Use:   "seed",
		Short: "Load the service catalog from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			ctx := context.Background()

			st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
			if err != nil {
				return err
			}

			raw, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var services []seedService
			if err := json.Unmarshal(raw, &services); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}

			var created int
			for _, svc := range services {
				exists, err := st.HasService(ctx, svc.Name)
				if err != nil {
					return err
				}
				if exists {
					continue
				}
				if _, err := st.CreateService(ctx, svc.Name, svc.Description, svc.Keywords, svc.Response); err != nil {
					return fmt.Errorf("seed %q: %w", svc.Name, err)
				}
				created++
			}
			log.Printf("seeded %d of %d services", created, len(services))

			if cfg.Storage.Redis.Enabled() {
				rdb := redis.NewClient(&redis.Options{
					Addr:     fmt.Sprintf("%s:%s", cfg.Storage.Redis.Host, cfg.Storage.Redis.Port),
					Password: cfg.Storage.Redis.Password,
					DB:       cfg.Storage.Redis.DB,
				})
				cat := &catalog.Cache{Lister: st, Rdb: rdb}
				cat.Invalidate(ctx)
			}
			return nil
		},
	}
	seed.Flags().StringVar(&file, "file", "seed/services.json", "seed data file")
	seed.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return seed
}
