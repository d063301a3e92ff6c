package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/evcraddock/nfc-timecontrol/internal/logging"
	"github.com/evcraddock/nfc-timecontrol/internal/scan"
	"github.com/evcraddock/nfc-timecontrol/internal/visit"
	"github.com/evcraddock/nfc-timecontrol/internal/web"
)

func newServeCmd() *cobra.Command {
	var (
		port    int
		dev     bool
		envFile string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long:  "Serve the JSON API and Prometheus metrics over the local database. Settings may come from a .env file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnvFile(envFile); err != nil {
				return err
			}
			logging.Setup(dev || os.Getenv("NTC_DEV_MODE") == "true")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "port to listen on")
	cmd.Flags().BoolVar(&dev, "dev", false, "human-readable debug logging")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "environment file to load if present")

	return cmd
}

// loadEnvFile loads KEY=value pairs from path. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func runServe(ctx context.Context, port int) error {
	database, err := openDB()
	if err != nil {
		return err
	}
	defer closeDB(database)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	scans, err := scan.NewService(getCodec(), visit.NewRepository(database), reg)
	if err != nil {
		return err
	}

	slog.Info("database opened", "path", dbPathForLog())
	return web.NewServer(database, scans, reg).ListenAndServe(ctx, port)
}

func dbPathForLog() string {
	path, err := getDBPath()
	if err != nil {
		return "unknown"
	}
	return path
}
