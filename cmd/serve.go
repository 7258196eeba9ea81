package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/forecourt/internal/dashboard"
	"github.com/sells-group/forecourt/internal/results"
	"github.com/sells-group/forecourt/internal/sites"
	"github.com/sells-group/forecourt/internal/store"
	"github.com/sells-group/forecourt/pkg/google"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the review dashboard API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(); err != nil {
			return err
		}

		ev, release, err := openEvidence(ctx, cfg.Evidence)
		if err != nil {
			return err
		}
		defer release()

		table, err := results.New(cfg.Results)
		if err != nil {
			return err
		}

		st, err := store.Open(ctx, cfg.Corrections)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		catalog, err := sites.Load(ctx, cfg.Sites.Path)
		if err != nil {
			return err
		}

		// Street View metadata is optional.
		var sv google.Client
		if cfg.StreetView.Key != "" {
			sv = google.NewClient(cfg.StreetView.Key)
		} else {
			zap.L().Debug("FORECOURT_STREETVIEW_KEY not set, street view disabled")
		}

		d := dashboard.New(dashboard.Deps{
			Results:     table,
			Corrections: st,
			Evidence:    ev,
			Sites:       catalog,
			StreetView:  sv,
			Config:      cfg.StreetView,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           d.Handler(cfg.Server.CORSOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		return runServer(ctx, srv, catalog.Len())
	},
}

// runServer serves until ctx is cancelled, then shuts down gracefully.
func runServer(ctx context.Context, srv *http.Server, siteCount int) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zap.L().Info("starting server", zap.String("addr", srv.Addr), zap.Int("sites", siteCount))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return eris.Wrap(srv.Shutdown(shutdownCtx), "server shutdown")
	})

	return g.Wait()
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
