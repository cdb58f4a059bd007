// Package cli defines the userbase command tree.
//
//	userbase [serve]                 run the web server (default)
//	userbase migrate                 create or upgrade the schema, then exit
//	userbase profile set <username>  create or update an account's profile
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/userbase/internal/config"
	"github.com/sakif/userbase/internal/logging"
	sqliteRepo "github.com/sakif/userbase/internal/repository/sqlite"
)

// runtime is filled in by the root command's PersistentPreRunE and shared
// by every subcommand.
type runtime struct {
	envFile string
	cfg     *config.Config
	logger  *slog.Logger
}

// NewRootCmd creates the root command. Running it without a subcommand
// starts the server.
func NewRootCmd() *cobra.Command {
	rt := &runtime{}

	rootCmd := &cobra.Command{
		Use:   "userbase",
		Short: "User accounts web application",
		Long: `userbase serves a small account site: registration, login/logout with
signed session cookies, and a profile page, backed by SQLite.

Settings come from the environment, optionally seeded from a .env file.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.load(cmd.OutOrStdout())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), rt)
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&rt.envFile, "env-file", ".env", "Optional dotenv file read before the environment")

	rootCmd.AddCommand(newServeCmd(rt))
	rootCmd.AddCommand(newMigrateCmd(rt))
	rootCmd.AddCommand(newProfileCmd(rt))

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func (rt *runtime) load(logOutput io.Writer) error {
	cfg, err := config.Load(rt.envFile)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, logOutput)
	if err != nil {
		return err
	}

	rt.cfg = cfg
	rt.logger = logger
	return nil
}

// openDB opens the configured database and brings its schema up to date.
// A failure here is fatal for every command.
func (rt *runtime) openDB(ctx context.Context) (*sqliteRepo.DB, error) {
	db, err := sqliteRepo.New(ctx, rt.cfg.DBPath, rt.logger)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("preparing schema: %w", err)
	}

	return db, nil
}
