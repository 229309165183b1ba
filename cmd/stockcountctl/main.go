// Command stockcountctl runs maintenance tasks against the stock count database and
// job queue.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/maninjwa/stock-count-backend/internal/config"
	"github.com/maninjwa/stock-count-backend/internal/dto"
	"github.com/maninjwa/stock-count-backend/internal/infra"
	"github.com/maninjwa/stock-count-backend/internal/repository"
	"github.com/maninjwa/stock-count-backend/internal/service"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// cli holds the configuration loaded before any subcommand runs.
type cli struct {
	cfg *config.Config
}

func rootCommand() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "stockcountctl",
		Short:         "Stock count backend administration",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			infra.SetupLogger(cfg.Env, cfg.LogLevel)
			c.cfg = cfg
			return nil
		},
	}
	root.AddCommand(
		migrateCommand(c),
		seedUserCommand(c),
		hashPasswordCommand(),
		dlqCommand(c),
	)
	return root
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := infra.NewDatabase(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.DBDriver, err)
	}
	return db, nil
}

func migrateCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(c.cfg)
			if err != nil {
				return err
			}
			if err := infra.RunMigrations(db); err != nil {
				return err
			}
			log.Info().Str("driver", c.cfg.DBDriver).Msg("migrations applied")
			return nil
		},
	}
}

func seedUserCommand(c *cli) *cobra.Command {
	var req dto.CreateUserRequest
	cmd := &cobra.Command{
		Use:   "seed-user",
		Short: "Create a user, or reset the password and role of an existing one",
		Example: "  stockcountctl seed-user --email admin@example.com --name Admin " +
			"--role SUPERVISOR --admin --password 'change-me-now'",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(c.cfg)
			if err != nil {
				return err
			}
			if err := infra.RunMigrations(db); err != nil {
				return err
			}
			user, created, err := service.SeedUser(context.Background(), repository.NewStore(db), req)
			if err != nil {
				return err
			}
			verb := "updated"
			if created {
				verb = "created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s %s (%s)\n", user.Email, verb, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "login email")
	cmd.Flags().StringVar(&req.Name, "name", "", "display name")
	cmd.Flags().StringVar(&req.Role, "role", "COUNTER", "SUPERVISOR or COUNTER")
	cmd.Flags().BoolVar(&req.Admin, "admin", false, "grant the ADMIN group")
	cmd.Flags().StringVar(&req.Password, "password", "", "plain password, at least 8 characters")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func hashPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print the bcrypt hash of a password",
		Args:  cobra.ExactArgs(1),
		// no config needed
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := service.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
