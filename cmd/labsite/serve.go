package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avitech-lab/labsite/internal/check"
	"github.com/avitech-lab/labsite/internal/config"
	"github.com/avitech-lab/labsite/internal/server"
	"github.com/avitech-lab/labsite/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveAddr string

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8080", "Address to listen on")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Preview contributor pages and check results locally",
	Long: `Serve a local preview of the tree.

  /profiles/NAME/LANG       a contributor's page
  /static/profiles/...      images and other profile files
  /api/contributors         contributor list
  /api/check                check report (?contributor=NAME)
  /api/publications         indexed publications (?q=, ?year=, ?contributor=)

Publications need 'labsite pubs index' first.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	t := mustOpenTree()

	deps := server.Deps{Tree: t, Checker: check.NewChecker(t, logger), Logger: logger}
	var db *storage.DB
	if _, err := os.Stat(config.DBPath(t.Root)); err == nil {
		db = mustOpenDatabase(t.Root)
		defer db.Close()
		deps.DB = db
	} else {
		logger.Warn("No publication index; /api/publications is unavailable")
	}

	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              serveAddr,
		Handler:           server.New(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	if humanOutput {
		fmt.Fprintf(os.Stderr, "Serving %s on http://%s\n", t.Root, serveAddr)
	} else {
		outputJSON(StatusResponse{Status: "serving", Path: "http://" + serveAddr})
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			exitWithError(ExitError, "serving: %v", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Shutdown", zap.Error(err))
		}
	}
	return nil
}
