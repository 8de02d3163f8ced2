package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"apply-codes/internal/app"
	"apply-codes/internal/boolean"
	"apply-codes/internal/config"
	"apply-codes/internal/database/migration"
	"apply-codes/internal/database/seeder"
	dbpostgres "apply-codes/internal/database/postgres"
	"apply-codes/internal/infrastructure/scraper"
	"apply-codes/internal/pkg/secretbox"
	"apply-codes/internal/store"
	"apply-codes/internal/usecase"
	"apply-codes/migrations"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func migrateCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations to DB_*",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Database.Enabled() {
				return errors.New("DB_HOST is not set")
			}
			log := newLogger()

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()
			pool, err := dbpostgres.Connect(ctx, cfg.Database, log)
			if err != nil {
				return err
			}
			defer pool.Close()

			r := migration.Runner{FS: migrations.FS, Logger: log}
			if dir != "" {
				r = migration.Runner{Dir: dir, Logger: log}
			}
			n, err := r.Run(ctx, pool.SQLDB())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "read migrations from this directory instead of the embedded set")
	return cmd
}

func seedCmd() *cobra.Command {
	var uid string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write a demo workspace for --uid into the database store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(uid) == "" {
				return errors.New("--uid is required")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Database.Enabled() {
				return errors.New("DB_HOST is not set")
			}
			log := newLogger()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			pool, err := dbpostgres.Connect(ctx, cfg.Database, log)
			if err != nil {
				return err
			}
			defer pool.Close()

			return seeder.Runner{Seeders: seeder.Defaults(uid), Logger: log}.Run(ctx, store.NewPostgres(pool))
		},
	}
	cmd.Flags().StringVar(&uid, "uid", "", "owner of the demo documents")
	return cmd
}

func tokenCmd() *cobra.Command {
	var uid, email, name string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an HS256 bearer token for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Auth.Provider != config.AuthProviderHMAC {
				return fmt.Errorf("AUTH_PROVIDER is %q; tokens can only be issued for hmac", cfg.Auth.Provider)
			}
			if strings.TrimSpace(uid) == "" {
				return errors.New("--uid is required")
			}
			tok, err := app.NewTokenService(cfg.Auth).GenerateToken(uid, email, name)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&uid, "uid", "", "subject (user id)")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&name, "name", "", "name claim")
	return cmd
}

func booleanCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "boolean <job text>",
		Short: "Build a Boolean query offline with the deterministic fallback",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, req := boolean.FromText(strings.Join(args, " "), nil)
			if q == "" {
				return errors.New("no searchable terms in input")
			}
			if !asJSON {
				fmt.Fprintln(cmd.OutOrStdout(), q)
				return nil
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"searchString": q, "requirements": req})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print requirements as JSON too")
	return cmd
}

func scrapeCmd() *cobra.Command {
	var (
		waitJS    bool
		links     bool
		userAgent string
		timeout   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "scrape <url>",
		Short: "Fetch a page with the local colly or chromedp scraper",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var headless scraper.Fetcher
			if waitJS {
				headless = scraper.NewBrowser(userAgent)
			}
			client := scraper.NewClient(nil, scraper.NewCollector(userAgent), headless, newLogger())

			page, err := client.Fetch(cmd.Context(), scraper.Options{
				URL:          args[0],
				ExtractLinks: links,
				WaitForJS:    waitJS,
				Timeout:      timeout,
			})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(page)
		},
	}
	cmd.Flags().BoolVar(&waitJS, "js", false, "render with headless Chrome")
	cmd.Flags().BoolVar(&links, "links", false, "include page links")
	cmd.Flags().StringVar(&userAgent, "user-agent", "Mozilla/5.0 (compatible; applyctl)", "User-Agent header")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "fetch timeout")
	return cmd
}

func secretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage encrypted vendor keys served by /getApiKey",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "put <service> <value>",
		Short: "Encrypt and store a key for service",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Database.Enabled() {
				return errors.New("DB_HOST is not set; secrets need the database store")
			}
			box, err := secretbox.New(cfg.Secrets.EncryptionKey)
			if err != nil {
				return err
			}
			log := newLogger()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			pool, err := dbpostgres.Connect(ctx, cfg.Database, log)
			if err != nil {
				return err
			}
			defer pool.Close()

			secrets := usecase.NewSecretsUsecase(cfg.Secrets.ClientAPIKeys, nil, box, store.NewPostgres(pool), nil, log)
			if err := secrets.Put(ctx, args[0], args[1]); err != nil {
				return err
			}
			log.Info("secret stored", zap.String("service", args[0]))
			if !contains(cfg.Secrets.ClientAPIKeys, args[0]) {
				fmt.Fprintf(os.Stderr, "note: %s is not in CLIENT_API_KEYS, /getApiKey will refuse it\n", args[0])
			}
			return nil
		},
	})
	return cmd
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if strings.TrimSpace(v) == s {
			return true
		}
	}
	return false
}
