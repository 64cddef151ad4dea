// Command rentalctl runs operational tasks against the rental database:
// schema migration, a one-off reminder pass, invitation and service
// tokens, and parameter seeding.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/property-rental-api/internal/app"
	"github.com/iliyamo/property-rental-api/internal/config"
	"github.com/iliyamo/property-rental-api/internal/database"
	"github.com/iliyamo/property-rental-api/internal/logging"
	"github.com/iliyamo/property-rental-api/internal/scheduler"
	"github.com/iliyamo/property-rental-api/internal/service"
	"github.com/iliyamo/property-rental-api/internal/utils"
)

var Version = "dev"

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "rentalctl",
		Short:         "Operational commands for the property rental API",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(remindCmd())
	rootCmd.AddCommand(inviteCmd())
	rootCmd.AddCommand(paramsCmd())
	rootCmd.AddCommand(serviceTokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env loads configuration, the logger and the database for one command.
type env struct {
	cfg config.Config
	log *zap.Logger
	db  *sqlx.DB
}

func open() (*env, error) {
	cfg := config.Load()
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	return &env{cfg: cfg, log: logger, db: db}, nil
}

func (e *env) close() {
	_ = e.db.Close()
	_ = e.log.Sync()
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			defer e.close()

			if err := database.Migrate(cmd.Context(), e.db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Printf("applied %d statements\n", len(database.Statements()))
			return nil
		},
	}
}

func remindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remind",
		Short: "Run the overdue-invoice reminder job once",
		Long: `Run the overdue-invoice reminder job once, taking the same Redis lock as
the scheduled job so it never overlaps a run on an API instance.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			defer e.close()

			rdb := config.NewRedisClient(config.LoadRedisConfig())
			if rdb != nil {
				defer rdb.Close()
			}
			svc := app.Build(e.cfg, e.db, e.log)
			sched := scheduler.New(rdb, e.cfg.Reminder.LockTTL, e.log)

			var run service.ReminderRun
			ran, err := sched.RunOnce(cmd.Context(), app.ReminderJob, func(ctx context.Context) error {
				var err error
				run, err = svc.Dispatcher.RunReminders(ctx, time.Now().UTC())
				return err
			})
			if err != nil {
				return err
			}
			if !ran {
				fmt.Println("another instance holds the reminder lock; nothing done")
				return nil
			}
			return printJSON(run)
		},
	}
}

func inviteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invite <contact-id>",
		Short: "Issue a first-login invitation token for a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid contact id %q", args[0])
			}
			e, err := open()
			if err != nil {
				return err
			}
			defer e.close()

			svc := app.Build(e.cfg, e.db, e.log)
			contact, err := svc.Partners.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if ttl <= 0 {
				ttl = e.cfg.InviteTTL
			}
			tok, exp, err := utils.NewInviteToken(e.cfg.ServiceJWTSecret, contact.ID, ttl)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{
				"contact_id":   contact.ID,
				"email":        contact.Email,
				"invite_token": tok,
				"expires_at":   exp.UTC().Format(time.RFC3339),
			})
		},
	}
	cmd.Flags().Duration("ttl", 0, "token lifetime (default INVITE_TOKEN_TTL)")
	return cmd
}

func paramsCmd() *cobra.Command {
	params := &cobra.Command{
		Use:   "params",
		Short: "Manage rental.* system parameters",
	}
	params.AddCommand(&cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Write parameters from a YAML file",
		Long: `Write parameters from a YAML file. Keys may be flat or nested:

  rental.max_reminders: 3

and

  rental:
    max_reminders: 3

are equivalent.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			values, err := parseParams(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			e, err := open()
			if err != nil {
				return err
			}
			defer e.close()

			keys, err := app.Build(e.cfg, e.db, e.log).Params.Seed(cmd.Context(), values)
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Println(k)
			}
			fmt.Printf("%d parameters written\n", len(keys))
			return nil
		},
	})
	return params
}

func serviceTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service-token",
		Short: "Issue a service-identity JWT for the /api/rent routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("SERVICE_JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("SERVICE_JWT_SECRET is not set")
			}
			subject, _ := cmd.Flags().GetString("subject")
			role, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			tok, exp, err := utils.NewServiceToken(secret, subject, role, ttl)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{
				"token":      tok,
				"subject":    subject,
				"role":       role,
				"expires_at": exp.UTC().Format(time.RFC3339),
			})
		},
	}
	cmd.Flags().String("subject", "backoffice", "token subject")
	cmd.Flags().String("role", "ADMIN", "ADMIN or MANAGER")
	cmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
