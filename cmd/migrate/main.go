// Migrate applies the embedded SQL migrations to the database named by DATABASE_URL.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"identity-service/backend/internal/config"
	"identity-service/backend/internal/db/migrate"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the identity service database schema",
		SilenceUsage: true,
	}
	root.AddCommand(
		directionCmd("up", "Apply all pending migrations"),
		directionCmd("down", "Roll back all migrations"),
		versionCmd(),
	)
	return root
}

func databaseURL() (string, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return "", errors.New("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	if _, err := cfg.DatabaseDriver(); err != nil {
		return "", err
	}
	return cfg.DatabaseURL, nil
}

func directionCmd(direction, short string) *cobra.Command {
	return &cobra.Command{
		Use:   direction,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn, err := databaseURL()
			if err != nil {
				return err
			}
			if err := migrate.Run(dsn, direction); err != nil {
				return fmt.Errorf("migrate %s: %w", direction, err)
			}
			cmd.Printf("migrate %s: done\n", direction)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn, err := databaseURL()
			if err != nil {
				return err
			}
			v, dirty, err := migrate.Version(dsn)
			if err != nil {
				return err
			}
			if dirty {
				cmd.Printf("version %d (dirty)\n", v)
				return nil
			}
			cmd.Printf("version %d\n", v)
			return nil
		},
	}
}
