package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	connectcors "connectrpc.com/cors"
	"connectrpc.com/otelconnect"
	"filippo.io/csrf"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/propertyos/internal/assets"
	"github.com/wolfeidau/propertyos/internal/config"
	"github.com/wolfeidau/propertyos/internal/gateway"
	httpmiddleware "github.com/wolfeidau/propertyos/internal/http"
	"github.com/wolfeidau/propertyos/internal/logger"
	"github.com/wolfeidau/propertyos/internal/server"
	"github.com/wolfeidau/propertyos/internal/session"
	"github.com/wolfeidau/propertyos/internal/stats"
	"github.com/wolfeidau/propertyos/internal/store"
	memorystore "github.com/wolfeidau/propertyos/internal/store/memory"
	postgresstore "github.com/wolfeidau/propertyos/internal/store/postgres"
	reststore "github.com/wolfeidau/propertyos/internal/store/rest"
	"github.com/wolfeidau/propertyos/internal/telemetry"
	"github.com/wolfeidau/propertyos/internal/web"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type ServerCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"PROPERTYOS_LISTEN"`
	Cert   string `help:"path to TLS cert file, serves plain HTTP when unset" default:"" env:"PROPERTYOS_TLS_CERT"`
	Key    string `help:"path to TLS key file" default:"" env:"PROPERTYOS_TLS_KEY"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" default:"http://localhost:8080" env:"PROPERTYOS_CORS_ORIGINS"`

	// Session configuration
	SessionCookie string `help:"cookie holding the backend access token" default:"sb-access-token" env:"PROPERTYOS_SESSION_COOKIE"`

	// Development and operational modes
	Tracing          bool    `help:"enable tracing" default:"false" env:"PROPERTYOS_TRACING"`
	TraceSampleRatio float64 `help:"fraction of requests traced when tracing is enabled" default:"1.0" env:"PROPERTYOS_TRACE_SAMPLE_RATIO"`
	BuildAssets      bool    `help:"bundle browser scripts on startup" default:"true" negatable:"" env:"PROPERTYOS_BUILD_ASSETS"`

	// Backend configuration
	Backend  string               `help:"backend type (rest, postgres or memory)" default:"rest" env:"PROPERTYOS_BACKEND" enum:"rest,postgres,memory"`
	Rest     RestBackendFlags     `embed:"" prefix:"rest-"`
	Postgres PostgresBackendFlags `embed:"" prefix:"postgres-"`
	Memory   MemoryBackendFlags   `embed:"" prefix:"memory-"`
}

type RestBackendFlags struct {
	URL     string `help:"hosted backend project URL" env:"SUPABASE_URL"`
	AnonKey string `help:"hosted backend anon (public) key" env:"SUPABASE_ANON_KEY"`
}

type PostgresBackendFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`
	JWTSecret  string `help:"secret the auth provider signs access tokens with" env:"SUPABASE_JWT_SECRET"`

	// Connection Pool Configuration
	MaxConns         int32         `help:"maximum number of connections in pool" default:"10"`
	MinConns         int32         `help:"minimum number of connections in pool" default:"0"`
	MaxConnLifetime  time.Duration `help:"maximum connection lifetime" default:"1h"`
	MaxConnIdleTime  time.Duration `help:"maximum connection idle time" default:"30m"`
	StatementTimeout time.Duration `help:"per-statement timeout, 0 for the server default" default:"15s"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"PROPERTYOS_POSTGRES_AUTO_MIGRATE"`
}

type MemoryBackendFlags struct {
	Seed string `help:"YAML file of users, organizations, memberships and rows to load" type:"existingfile" env:"PROPERTYOS_MEMORY_SEED"`
}

func (c *ServerCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	zerolog.DefaultContextLogger = &log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Str("backend", c.Backend).Msg("Starting server")

	// Setup telemetry if enabled
	interceptors := []connect.Interceptor{logger.NewConnectRequests(log)}
	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, telemetry.Options{
			ServiceName: "propertyos-server",
			Version:     globals.Version,
			SampleRatio: c.TraceSampleRatio,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
		otelInterceptor, err := otelconnect.NewInterceptor()
		if err != nil {
			return fmt.Errorf("failed to create OTEL interceptor: %w", err)
		}
		interceptors = append(interceptors, otelInterceptor)
	}

	// Page templates and browser scripts
	pages, err := web.NewPages(assets.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to load page templates: %w", err)
	}
	if c.BuildAssets {
		if err := pages.Build(); err != nil {
			log.Warn().Err(err).Msg("Failed to build browser scripts, pages will render without them")
		}
	}

	var (
		appHandler http.Handler
		apiServer  *server.Server
		middleware []httpmiddleware.Middleware
	)

	backendCfg := c.backendConfig()
	if cfgErr := backendCfg.Validate(); cfgErr != nil {
		// Setup mode: every page explains what to configure, every API call fails precondition.
		log.Warn().Err(cfgErr).Msg("Backend configuration is incomplete, serving setup instructions")

		appHandler = web.SetupHandler(pages, cfgErr)
		apiServer = server.NewServer(server.NewUnavailableDashboardService(cfgErr))
	} else {
		backend, closeBackend, err := openStore(ctx, backendCfg, c.Postgres, c.Memory)
		if err != nil {
			return err
		}
		defer closeBackend()

		st := store.Instrument(backend, c.Backend)

		resolver, err := session.NewResolver(backendCfg, st)
		if err != nil {
			return fmt.Errorf("failed to create session resolver: %w", err)
		}

		views := web.NewViews()
		gw := gateway.New(st, resolver, gateway.WithInvalidator(views))
		agg := stats.New(st)

		mux := http.NewServeMux()
		web.New(gw, agg, pages, views).Routes(mux)

		appHandler = mux
		apiServer = server.NewServer(server.NewDashboardService(gw, agg))
		middleware = append(middleware, session.Middleware(resolver, c.SessionCookie))
	}

	// CSRF protection for HTML pages (not applied to API routes)
	protection := csrf.New()
	htmlHandler := protection.Handler(web.Recover(pages)(appHandler))
	apiHandler := withCORS(c.CORSOrigins, apiServer.Handler(interceptors...))

	root := http.NewServeMux()
	root.Handle("/public/", http.StripPrefix("/public/", http.FileServer(http.Dir(assets.DefaultConfig().OutputDir))))
	root.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	root.Handle(apiServer.Path(), apiHandler)
	root.Handle("/", htmlHandler)

	chain := append(httpmiddleware.RequestLogging(log), httpmiddleware.ClientIPMiddleware(), httpmiddleware.Compress())
	chain = append(chain, middleware...)

	var handler http.Handler = httpmiddleware.Chain(root, chain...)
	if c.Tracing {
		handler = otelhttp.NewHandler(handler, "propertyos-server")
	}

	srv := configureHTTPServer(c.Listen, handler)

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.listen(srv, log)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (c *ServerCmd) listen(srv *http.Server, log zerolog.Logger) error {
	var err error
	if c.Cert != "" || c.Key != "" {
		if c.Cert == "" || c.Key == "" {
			return errors.New("TLS needs both a certificate and a key (--cert and --key)")
		}
		log.Info().Str("addr", c.Listen).Msg("Starting HTTPS server")
		err = srv.ListenAndServeTLS(c.Cert, c.Key)
	} else {
		log.Info().Str("addr", c.Listen).Msg("Starting HTTP server")
		err = srv.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// backendConfig returns the connection parameters of the selected backend. It does not validate.
func (c *ServerCmd) backendConfig() config.Validator {
	switch c.Backend {
	case "postgres":
		return config.Postgres{ConnString: c.Postgres.ConnString, JWTSecret: c.Postgres.JWTSecret}
	case "memory":
		return config.Memory{}
	default:
		return config.Backend{URL: c.Rest.URL, AnonKey: c.Rest.AnonKey}
	}
}

// openStore builds the long-lived backend client for a validated configuration.
func openStore(ctx context.Context, cfg config.Validator, pg PostgresBackendFlags, mem MemoryBackendFlags) (store.Store, func(), error) {
	log := zerolog.Ctx(ctx)

	switch cfg := cfg.(type) {
	case config.Postgres:
		st, err := postgresstore.New(ctx, postgresstore.Config{
			Backend: cfg,
			Pool: postgresstore.PoolConfig{
				ConnString:      cfg.ConnString,
				MaxConns:        pg.MaxConns,
				MinConns:        pg.MinConns,
				MaxConnLifetime: pg.MaxConnLifetime,
				MaxConnIdleTime: pg.MaxConnIdleTime,

				StatementTimeout: pg.StatementTimeout,
			},
			AutoMigrate: pg.AutoMigrate,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres backend: %w", err)
		}
		log.Info().Bool("auto_migrate", pg.AutoMigrate).Msg("Using PostgreSQL backend")
		return st, st.Close, nil

	case config.Memory:
		st := memorystore.New()
		if mem.Seed != "" {
			seed, err := memorystore.LoadSeedFile(mem.Seed)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to load memory seed: %w", err)
			}
			if err := seed.Apply(st); err != nil {
				return nil, nil, fmt.Errorf("failed to apply memory seed: %w", err)
			}
		}
		log.Info().Str("seed", mem.Seed).Msg("Using in-memory backend")
		return st, func() {}, nil

	case config.Backend:
		st, err := reststore.New(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create backend client: %w", err)
		}
		log.Info().Str("url", cfg.BaseURL()).Msg("Using hosted backend")
		return st, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported backend configuration %T", cfg)
	}
}

// withCORS adds CORS support to a Connect HTTP handler.
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   connectcors.AllowedMethods(),
		AllowedHeaders:   append(connectcors.AllowedHeaders(), "Authorization"),
		ExposedHeaders:   connectcors.ExposedHeaders(),
		AllowCredentials: true, // Required for cookie-based authentication
	})
	return middleware.Handler(h)
}
