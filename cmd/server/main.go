package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/janisto/k8s-demo/internal/config"
	applog "github.com/janisto/k8s-demo/internal/platform/logging"
)

// Version can be overridden at build time: -ldflags "-X main.Version=1.2.3"
var Version = "dev"

type serverFlags struct {
	configFile string
	envFile    string
	host       string
	port       int
	logLevel   string
}

func newRootCmd() *cobra.Command {
	var f serverFlags
	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Serve the CI/CD K8s demo API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			if err := applog.SetLevel(cfg.LogLevel); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return newServer(cfg).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&f.configFile, "config", "", "YAML config file")
	cmd.Flags().StringVar(&f.envFile, "env-file", ".env", "dotenv file loaded into the environment if present")
	cmd.Flags().StringVar(&f.host, "host", "", "interface to bind (default all)")
	cmd.Flags().IntVar(&f.port, "port", config.DefaultPort, "TCP port to listen on")
	cmd.Flags().StringVar(&f.logLevel, "log-level", config.DefaultLogLevel, "minimum log level")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	})
	return cmd
}

// loadConfig applies explicitly set flags on top of config.Load.
func loadConfig(cmd *cobra.Command, f serverFlags) (*config.Config, error) {
	cfg, err := config.Load(config.Options{File: f.configFile, EnvFile: f.envFile})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Host = f.host
	}
	if flags.Changed("port") {
		cfg.Port = f.port
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := applog.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
	}
	code := 0
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		applog.LogError(context.Background(), "server failed", err)
		code = 1
	}
	// Sync on stdout fails with EINVAL on most platforms; nothing to act on.
	_ = applog.Sync()
	os.Exit(code)
}
