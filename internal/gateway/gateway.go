// ABOUTME: Gateway orchestrator that wires registries, store and the HTTP server
// ABOUTME: Manages the MCP endpoint, health, metrics, tailscale listener and shutdown lifecycle

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/widget-gateway/internal/assets"
	"github.com/2389/widget-gateway/internal/auth"
	"github.com/2389/widget-gateway/internal/builtins"
	"github.com/2389/widget-gateway/internal/config"
	"github.com/2389/widget-gateway/internal/limiter"
	"github.com/2389/widget-gateway/internal/mcp"
	"github.com/2389/widget-gateway/internal/metrics"
	"github.com/2389/widget-gateway/internal/resources"
	"github.com/2389/widget-gateway/internal/store"
	"github.com/2389/widget-gateway/internal/tools"
)

// Version is reported in the MCP serverInfo.
var Version = "dev"

// Gateway orchestrates the widget-gateway server components.
type Gateway struct {
	config      *config.Config
	store       store.Store
	tools       *tools.Registry
	resources   *resources.Registry
	metrics     *metrics.Metrics
	mcpServer   *mcp.Server
	limiter     *limiter.Limiter
	redis       redis.UniversalClient
	handler     http.Handler
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger

	// mcpEndpoint is the externally reachable URL of /mcp, for logs.
	mcpEndpoint string
}

// Option customizes gateway construction.
type Option func(*options)

type options struct {
	clock builtins.Clock
}

// WithClock overrides the time source used by the goal tools.
func WithClock(clock builtins.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// initStore creates and returns a store based on config.
func initStore(cfg *config.Config) (store.Store, error) {
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// registerBuiltinPacks registers all builtin packs with the registry.
func registerBuiltinPacks(registry *tools.Registry, s store.Store, clock builtins.Clock) error {
	if err := registry.RegisterPack(builtins.GoalsPack(s, clock)); err != nil {
		return fmt.Errorf("registering goals pack: %w", err)
	}
	if err := registry.RegisterPack(builtins.OnboardingPack(s)); err != nil {
		return fmt.Errorf("registering onboarding pack: %w", err)
	}
	return nil
}

// registerWidgets registers every widget and help document under the
// configured directory, or the embedded build when none is set.
func registerWidgets(registry *resources.Registry, dir string, logger *slog.Logger) error {
	fsys, err := assets.FS(dir)
	if err != nil {
		return fmt.Errorf("opening widgets: %w", err)
	}
	n, err := assets.RegisterWidgets(registry, fsys)
	if err != nil {
		return fmt.Errorf("registering widgets: %w", err)
	}
	source := dir
	if source == "" {
		source = "embedded"
	}
	logger.Info("widgets registered", "count", n, "source", source)
	return nil
}

// newLimiter builds the rate limiter, with a shared Redis window when an
// address is configured.
func newLimiter(cfg config.RateLimitConfig, logger *slog.Logger) (*limiter.Limiter, redis.UniversalClient, error) {
	if !cfg.Enabled {
		lim, err := limiter.New(limiter.Config{})
		return lim, nil, err
	}

	var rdb redis.UniversalClient
	if cfg.RedisAddr != "" {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{cfg.RedisAddr}})
		logger.Info("rate limiter using redis window", "redis_addr", cfg.RedisAddr)
	}

	lim, err := limiter.New(limiter.Config{
		Enabled:           true,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		Window:            cfg.Window,
		Redis:             rdb,
	})
	if err != nil {
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil, nil, fmt.Errorf("creating rate limiter: %w", err)
	}
	return lim, rdb, nil
}

// determineMCPEndpoint resolves the MCP endpoint URL from config.
func determineMCPEndpoint(cfg *config.Config) string {
	if cfg.Server.BaseURL != "" {
		return strings.TrimRight(cfg.Server.BaseURL, "/") + "/mcp"
	}
	if cfg.Tailscale.Enabled {
		scheme := "http"
		if cfg.Tailscale.Funnel {
			scheme = "https"
		}
		return scheme + "://" + cfg.Tailscale.Hostname + "/mcp"
	}
	return "http://" + cfg.Server.HTTPAddr + "/mcp"
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	gw := &Gateway{
		config:      cfg,
		store:       s,
		tools:       tools.NewRegistry(logger.With("component", "tool-registry")),
		resources:   resources.NewRegistry(logger.With("component", "resource-registry")),
		logger:      logger.With("component", "gateway"),
		mcpEndpoint: determineMCPEndpoint(cfg),
	}

	if err := registerBuiltinPacks(gw.tools, s, o.clock); err != nil {
		_ = s.Close()
		return nil, err
	}
	if err := registerWidgets(gw.resources, cfg.Widgets.Dir, gw.logger); err != nil {
		_ = s.Close()
		return nil, err
	}

	var observer mcp.Observer
	if cfg.Metrics.Enabled {
		gw.metrics = metrics.New()
		observer = gw.metrics
	}

	lim, rdb, err := newLimiter(cfg.RateLimit, gw.logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	gw.limiter = lim
	gw.redis = rdb

	mcpCfg := mcp.Config{
		Dispatcher: mcp.NewDispatcher(gw.tools, gw.resources, observer, logger),
		Logger:     logger,
		Security: mcp.TransportSecurity{
			AllowedHosts:   cfg.TransportSecurity.AllowedHosts,
			AllowedOrigins: cfg.TransportSecurity.AllowedOrigins,
		},
		Limiter: lim,
		Version: Version,
	}
	if cfg.Auth.Enabled {
		mcpCfg.TokenVerifier = auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret), cfg.Auth.Audience)
		mcpCfg.MetadataURL = auth.MetadataURL(cfg.Server.BaseURL)
		logger.Info("bearer auth enabled for /mcp")
	} else {
		logger.Warn("auth disabled - /mcp accepts unauthenticated requests")
	}

	gw.mcpServer, err = mcp.NewServer(mcpCfg)
	if err != nil {
		gw.closeComponents()
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}

	gw.handler = gw.newRouter()
	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	return gw, nil
}

// newRouter mounts every HTTP route.
func (g *Gateway) newRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", g.handleHealth)
	r.Handle("/mcp", g.mcpServer.Handler())

	if g.metrics != nil {
		r.Handle(g.config.Metrics.Path, g.metrics.Handler())
	}

	if g.config.Auth.Enabled {
		resource := g.config.Server.BaseURL
		if resource != "" {
			resource = strings.TrimRight(resource, "/") + "/mcp"
		}
		r.Handle(auth.MetadataPath, auth.ProtectedResourceMetadata(auth.ResourceMetadata{
			Resource:             resource,
			AuthorizationServers: g.config.Auth.AuthorizationServers,
		}))
	}

	return r
}

// Handler returns the gateway's HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// Tools returns the tool registry.
func (g *Gateway) Tools() *tools.Registry {
	return g.tools
}

// Resources returns the resource registry.
func (g *Gateway) Resources() *resources.Registry {
	return g.resources
}

// setupListener creates the HTTP listener based on configuration (Tailscale or TCP).
func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		if g.config.Server.HTTPAddr != "" {
			g.logger.Warn("server.http_addr is ignored when tailscale is enabled",
				"http_addr", g.config.Server.HTTPAddr,
			)
		}
		return g.setupTailscaleListener(ctx)
	}

	g.logger.Info("starting gateway", "http_addr", g.config.Server.HTTPAddr)
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown (context canceled), or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.setupListener(ctx)
	if err != nil {
		g.closeComponents()
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String(), "mcp_endpoint", g.mcpEndpoint)
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout,
// since the run context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "widget-gateway", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// setupTailscaleListener joins the tailnet and listens on :80, or on :443
// through Funnel so chat hosts on the public internet can reach /mcp.
func (g *Gateway) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := g.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	g.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	g.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	g.logTailscaleStatus(tsCfg.Hostname, status)

	var ln net.Listener
	if tsCfg.Funnel {
		g.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err = g.tsnetServer.ListenFunnel("tcp", ":443")
	} else {
		ln, err = g.tsnetServer.Listen("tcp", ":80")
	}
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
	}
	return ln, nil
}

// logTailscaleStatus logs the node address and switches the advertised MCP
// endpoint to its tailnet DNS name.
func (g *Gateway) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		g.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = strings.TrimSuffix(status.Self.DNSName, ".")
	}
	g.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)

	if dnsName != "" && g.config.Server.BaseURL == "" {
		g.mcpEndpoint = "https://" + dnsName + "/mcp"
	}
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// closeComponents releases the limiter, the redis client and the store.
func (g *Gateway) closeComponents() []error {
	var errs []error
	if g.limiter != nil {
		g.limiter.Close()
	}
	if g.redis != nil {
		errs = appendCloseError(errs, "redis close", g.redis.Close())
	}
	if g.store != nil {
		errs = appendCloseError(errs, "store close", g.store.Close())
	}
	return errs
}

// Shutdown gracefully stops the HTTP server and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}
	errs = append(errs, g.closeComponents()...)

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, `{"status":"ok","tools":%d,"resources":%d}`, g.tools.Len(), len(g.resources.List()))
}
