package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	apihttp "github.com/GriffinCanCode/CacheOnHover/internal/api/http"
	"github.com/GriffinCanCode/CacheOnHover/internal/infrastructure/config"
	"github.com/GriffinCanCode/CacheOnHover/internal/infrastructure/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the prefetch host",
	Long: `Start the HTTP and WebSocket server.

Configuration comes from the environment, optionally layered over a file.

Examples:
  # Start with environment configuration
  cacheonhover serve

  # Start with a config file
  cacheonhover serve --config /etc/cacheonhover/config.yaml

  # Override a file value from the environment
  PORT=9000 cacheonhover serve --config config.toml`,
	RunE: runServe,
}

func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.Load()
	}
	return config.LoadFile(cfgFile)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	apihttp.Version = Version
	srv, err := server.NewServer(cfg)
	if err != nil {
		return err
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}
