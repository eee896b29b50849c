package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"nguvuhire/config"
	"nguvuhire/internal/auth"
	"nguvuhire/internal/domain"
	"nguvuhire/internal/router"
	"nguvuhire/pkg/pesapal"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if _, err := openDB(cfg, true); err != nil {
				return err
			}
			fmt.Printf("schema up to date (%s)\n", cfg.Database.Driver)
			return nil
		},
	}
}

func reconcileCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation sweep and print the result",
		Long: `Check every stale PENDING/IPN_RECEIVED order against Pesapal, fail
checkouts that never reached Pesapal, and deactivate lapsed boosts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			gateway, err := pesapal.NewClient(pesapalConfig(cfg))
			if err != nil {
				return fmt.Errorf("pesapal: %w", err)
			}
			db, err := openDB(cfg, false)
			if err != nil {
				return err
			}
			app := router.Setup(cfg, db, router.Deps{Gateway: gateway})

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			res, err := app.Reconciler.Sweep(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "give up after this long")
	return cmd
}

func ipnCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ipn",
		Short: "Manage Pesapal IPN registrations",
	}

	var method string
	register := &cobra.Command{
		Use:   "register [url]",
		Short: "Register an IPN URL and print its ipn_id (set it as PESAPAL_IPN_ID)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			client, err := pesapal.NewSetupClient(pesapalConfig(cfg))
			if err != nil {
				return err
			}
			ipnURL := cfg.Pesapal.CallbackBaseURL + cfg.Server.BasePath + "/payments/ipn"
			if len(args) == 1 {
				ipnURL = args[0]
			}
			ipn, err := client.RegisterIPN(cmd.Context(), ipnURL, method)
			if err != nil {
				return err
			}
			fmt.Printf("ipn_id=%s url=%s type=%s\n", ipn.ID, ipn.URL, ipn.NotificationType)
			return nil
		},
	}
	register.Flags().StringVar(&method, "method", "GET", "notification method Pesapal should use (GET or POST)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered IPN URLs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := pesapal.NewSetupClient(pesapalConfig(config.Load()))
			if err != nil {
				return err
			}
			ipns, err := client.ListIPNs(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "IPN_ID\tSTATUS\tURL")
			for _, ipn := range ipns {
				fmt.Fprintf(w, "%s\t%s\t%s\n", ipn.ID, ipn.Status, ipn.URL)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(register, list)
	return cmd
}

func tokenCmd() *cobra.Command {
	var userID, email, role string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed access token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.Server.Env == "production" {
				return fmt.Errorf("token is disabled when APP_ENV=production")
			}
			tok, err := auth.GenerateAccessToken(&cfg.JWT, userID, email, role)
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (token subject)")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&role, "role", domain.RoleEmployer, "role claim")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
