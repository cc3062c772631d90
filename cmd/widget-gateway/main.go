// ABOUTME: Entry point for widget-gateway, the MCP server for chat widgets
// ABOUTME: Subcommands serve, bundle, token, health and init

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/widget-gateway/internal/auth"
	"github.com/2389/widget-gateway/internal/bundler"
	"github.com/2389/widget-gateway/internal/config"
	"github.com/2389/widget-gateway/internal/gateway"
)

// version is set via -ldflags at build time.
var version = "dev"

const banner = `
          _     _            _
__      _(_) __| | __ _  ___| |_       __ _  __ _| |_ _____      ____ _ _   _
\ \ /\ / / |/ _' |/ _' |/ _ \ __|____ / _' |/ _' | __/ _ \ \ /\ / / _' | | | |
 \ V  V /| | (_| | (_| |  __/ ||_____| (_| | (_| | ||  __/\ V  V / (_| | |_| |
  \_/\_/ |_|\__,_|\__, |\___|\__|     \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
                  |___/               |___/                             |___/
`

var configPath string

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "widget-gateway",
		Short:         "MCP server exposing widget-backed tools to chat hosts",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(),
		"path to configuration file (.yaml or .toml)")

	root.AddCommand(
		newServeCmd(),
		newBundleCmd(),
		newTokenCmd(),
		newHealthCmd(),
		newInitCmd(),
	)
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	if cfg.Widgets.Dir != "" {
		fmt.Printf("Widgets:   %s\n", cfg.Widgets.Dir)
	} else {
		fmt.Printf("Widgets:   embedded\n")
	}
	if !cfg.Auth.Enabled {
		yellow.Print("    ▶ ")
		fmt.Printf("Auth:      disabled\n")
	}

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Print(" [funnel]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}

	fmt.Println()

	logger.Info("starting widget-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	gateway.Version = version
	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func newBundleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bundle <dir>",
		Short: "Inline scripts and stylesheets into every HTML page of a widget build",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			logger := setupLogger(config.LoggingConfig{Level: "info"})
			summary, err := bundler.BundleDir(args[0], logger)
			if err != nil {
				return err
			}

			green := color.New(color.FgGreen)
			green.Print("✓ ")
			fmt.Printf("bundled %d page(s), removed %d asset(s)\n", len(summary.Rewritten), len(summary.Removed))
			return nil
		},
	}
}

func newTokenCmd() *cobra.Command {
	var subject string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with auth.jwt_secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if subject == "" {
				return fmt.Errorf("--sub is required")
			}
			if ttl <= 0 {
				return fmt.Errorf("--ttl must be positive")
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwt_secret is not set in %s", configPath)
			}

			token, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret), cfg.Auth.Audience).Generate(subject, ttl)
			if err != nil {
				return fmt.Errorf("generating token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "sub", "", "principal the token identifies")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check gateway health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHealth(cmd.Context())
		},
	}
}

func runHealth(ctx context.Context) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := healthURL(cfg)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

// healthURL targets the local listener; a bare ":port" means localhost.
func healthURL(cfg *config.Config) string {
	addr := cfg.Server.HTTPAddr
	if len(addr) > 0 && addr[0] == ':' {
		addr = "localhost" + addr
	}
	return fmt.Sprintf("http://%s/health", addr)
}
