package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sheetcalc/internal/server"
	"sheetcalc/internal/storage"
)

var (
	serveAddr string
	serveDB   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the formula evaluation HTTP API",
	Long: `Run the HTTP API. Stateless endpoints evaluate a formula against the
cells sent with the request; the /api/workbooks endpoints evaluate against
workbooks kept in the SQLite database given by --db.

Use --db :memory: to keep workbooks in process memory only.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, :8080)")
	serveCmd.Flags().StringVar(&serveDB, "db", "", "Workbook database path (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	addr, dbPath := cfg.Server.Addr, cfg.Store.Path
	if serveAddr != "" {
		addr = serveAddr
	}
	if serveDB != "" {
		dbPath = serveDB
	}

	store, err := storage.Open(storage.Config{Path: dbPath})
	if err != nil {
		return err
	}
	defer store.Close()

	// Set up signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info().Str("signal", sig.String()).Msg("shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	srv := server.New(server.Config{
		Addr:         addr,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Version:      Version,
	}, newEngine(), store, logger)

	logger.Info().Str("addr", addr).Str("db", dbPath).Msg("serving")
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
