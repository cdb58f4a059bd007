package cli

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sakif/userbase/internal/server"
)

func newServeCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web server until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), rt)
		},
	}
}

// runServe validates the session settings, opens the database and serves
// until SIGINT or SIGTERM. The database is closed after the HTTP server has
// drained.
func runServe(ctx context.Context, rt *runtime) error {
	if err := rt.cfg.ValidateSession(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := rt.openDB(ctx)
	if err != nil {
		rt.logger.Error("database unavailable", slog.String("path", rt.cfg.DBPath), slog.String("error", err.Error()))
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			rt.logger.Error("closing database", slog.String("error", err.Error()))
		}
	}()

	srv, err := server.New(server.Config{
		Port:          rt.cfg.Port,
		SessionSecret: rt.cfg.SessionSecret,
		SessionTTL:    rt.cfg.SessionTTL,
		CookieSecure:  rt.cfg.CookieSecure,
		BcryptCost:    rt.cfg.BcryptCost,
	}, db, rt.logger)
	if err != nil {
		return err
	}

	return srv.Start(ctx)
}
