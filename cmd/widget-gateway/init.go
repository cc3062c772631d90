// ABOUTME: Interactive "init" command that writes a starter gateway.yaml
// ABOUTME: Generates a random JWT secret when bearer auth is turned on

package main

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactively create a configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.InOrStdin(), cmd.OutOrStdout(), configPath)
		},
	}
}

type initAnswers struct {
	httpAddr       string
	baseURL        string
	dbPath         string
	widgetsDir     string
	allowedHosts   string
	authEnabled    bool
	jwtSecret      string
	authServers    string
	tailscale      bool
	tsHostname     string
	tsFunnel       bool
	rateLimit      bool
	logLevel       string
	logFormat      string
	metricsEnabled bool
}

func runInit(in io.Reader, out io.Writer, defaultConfigPath string) error {
	reader := bufio.NewReader(in)

	fmt.Fprintln(out, "widget-gateway configuration setup")
	fmt.Fprintln(out, "==================================")
	fmt.Fprintln(out)

	outputFile := prompt(reader, out, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, out, "File exists. Overwrite?", "no")) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	var a initAnswers

	fmt.Fprintln(out, "\n--- Server Configuration ---")
	a.httpAddr = prompt(reader, out, "HTTP address", ":8000")
	a.baseURL = prompt(reader, out, "Public base URL (leave empty if none)", "")
	a.allowedHosts = prompt(reader, out, "Allowed Host headers, comma separated (empty allows any)", "")

	fmt.Fprintln(out, "\n--- Storage ---")
	a.dbPath = prompt(reader, out, "SQLite database path", filepath.Join(filepath.Dir(outputFile), "widget-gateway.db"))
	a.widgetsDir = prompt(reader, out, "Widget directory (leave empty for embedded widgets)", "")

	fmt.Fprintln(out, "\n--- Authentication ---")
	a.authEnabled = yes(prompt(reader, out, "Require bearer tokens?", "no"))
	if a.authEnabled {
		secret, err := generateSecret()
		if err != nil {
			return err
		}
		a.jwtSecret = secret
		a.authServers = prompt(reader, out, "Authorization servers, comma separated", "")
	}

	fmt.Fprintln(out, "\n--- Tailscale Configuration ---")
	a.tailscale = yes(prompt(reader, out, "Enable Tailscale?", "no"))
	if a.tailscale {
		a.tsHostname = prompt(reader, out, "Tailscale hostname", "widget-gateway")
		a.tsFunnel = yes(prompt(reader, out, "Enable Funnel (public HTTPS)?", "no"))
	}

	fmt.Fprintln(out, "\n--- Operations ---")
	a.rateLimit = yes(prompt(reader, out, "Enable rate limiting?", "no"))
	a.metricsEnabled = yes(prompt(reader, out, "Expose Prometheus metrics?", "yes"))
	a.logLevel = prompt(reader, out, "Log level (debug/info/warn/error)", "info")
	a.logFormat = prompt(reader, out, "Log format (text/json)", "text")

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(outputFile, []byte(renderConfig(a)), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Fprintf(out, "\nConfig written to %s\n", outputFile)
	if a.authEnabled {
		fmt.Fprintln(out, "A JWT secret was generated. Mint a token with:")
		fmt.Fprintf(out, "  widget-gateway token --config %s --sub <name>\n", outputFile)
	}
	fmt.Fprintln(out, "\nTo start the server:")
	fmt.Fprintf(out, "  widget-gateway serve --config %s\n", outputFile)
	return nil
}

func renderConfig(a initAnswers) string {
	var cfg strings.Builder
	cfg.WriteString("# widget-gateway configuration\n")
	cfg.WriteString("# Generated by widget-gateway init\n\n")

	cfg.WriteString("server:\n")
	fmt.Fprintf(&cfg, "  http_addr: %q\n", a.httpAddr)
	if a.baseURL != "" {
		fmt.Fprintf(&cfg, "  base_url: %q\n", a.baseURL)
	}
	cfg.WriteString("\n")

	if hosts := splitList(a.allowedHosts); len(hosts) > 0 {
		cfg.WriteString("transport_security:\n")
		cfg.WriteString("  allowed_hosts:\n")
		for _, h := range hosts {
			fmt.Fprintf(&cfg, "    - %q\n", h)
		}
		cfg.WriteString("\n")
	}

	cfg.WriteString("database:\n")
	fmt.Fprintf(&cfg, "  path: %q\n\n", a.dbPath)

	if a.widgetsDir != "" {
		cfg.WriteString("widgets:\n")
		fmt.Fprintf(&cfg, "  dir: %q\n\n", a.widgetsDir)
	}

	cfg.WriteString("auth:\n")
	fmt.Fprintf(&cfg, "  enabled: %t\n", a.authEnabled)
	if a.authEnabled {
		fmt.Fprintf(&cfg, "  jwt_secret: %q\n", a.jwtSecret)
		if servers := splitList(a.authServers); len(servers) > 0 {
			cfg.WriteString("  authorization_servers:\n")
			for _, s := range servers {
				fmt.Fprintf(&cfg, "    - %q\n", s)
			}
		}
	}
	cfg.WriteString("\n")

	cfg.WriteString("tailscale:\n")
	fmt.Fprintf(&cfg, "  enabled: %t\n", a.tailscale)
	if a.tailscale {
		fmt.Fprintf(&cfg, "  hostname: %q\n", a.tsHostname)
		fmt.Fprintf(&cfg, "  funnel: %t\n", a.tsFunnel)
	}
	cfg.WriteString("\n")

	cfg.WriteString("rate_limit:\n")
	fmt.Fprintf(&cfg, "  enabled: %t\n\n", a.rateLimit)

	cfg.WriteString("logging:\n")
	fmt.Fprintf(&cfg, "  level: %q\n", a.logLevel)
	fmt.Fprintf(&cfg, "  format: %q\n\n", a.logFormat)

	cfg.WriteString("metrics:\n")
	fmt.Fprintf(&cfg, "  enabled: %t\n", a.metricsEnabled)
	cfg.WriteString("  path: \"/metrics\"\n")

	return cfg.String()
}

func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func yes(s string) bool {
	s = strings.ToLower(s)
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		// EOF falls back to the default
		fmt.Fprintln(out)
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
