package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/skala/skip-session/config"
	"github.com/skala/skip-session/internal/adapters/filestore"
	"github.com/skala/skip-session/internal/adapters/httpapi"
	"github.com/skala/skip-session/internal/adapters/memstore"
	redisadapter "github.com/skala/skip-session/internal/adapters/redis"
	domainauth "github.com/skala/skip-session/internal/domain/auth"
	"github.com/skala/skip-session/internal/observability/metrics"
	"github.com/skala/skip-session/internal/ports"
	"github.com/skala/skip-session/internal/router"
	"github.com/skala/skip-session/internal/service"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/net/publicsuffix"
)

const tracingShutdownTimeout = 5 * time.Second

// ErrWatchUnsupported is returned by Session.Watch when the slot cannot be
// observed for external changes.
var ErrWatchUnsupported = errors.New("durable slot does not support watching")

// SessionDeps contains the inputs for BuildSession.
type SessionDeps struct {
	Config   *config.AppConfig // Required
	Logger   *slog.Logger
	Notifier ports.Notifier

	// Registry receives session metrics; a new registry is created when nil.
	Registry *prometheus.Registry
	// Redis is used for StorageModeRedis; ConnectRedis is called when nil.
	Redis redis.UniversalClient
	// BaseTransport is the network transport under the pipeline.
	BaseTransport http.RoundTripper
	// SpanExporter replaces the OTLP exporter when tracing is enabled.
	SpanExporter sdktrace.SpanExporter
}

// Session is the assembled session subsystem.
type Session struct {
	Store    *service.SessionStore
	Guard    *service.Guard
	Router   *router.Router
	Auth     *httpapi.AuthClient
	API      *httpapi.Client
	AI       *httpapi.AIClient
	Storage  ports.KeyValueStore
	Registry *prometheus.Registry

	slotFile *filestore.Store
	watch    bool
	logger   *slog.Logger
	closers  []func() error
}

// BuildSession wires storage, the request pipelines, the session store, the
// guard and the router.
func BuildSession(ctx context.Context, deps SessionDeps) (*Session, error) {
	if deps.Config == nil {
		return nil, errors.New("session config is required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{logger: logger, watch: cfg.Storage.Watch}

	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	s.Registry = reg
	recorder := metrics.NewPrometheus(reg)

	storage, err := s.buildStorage(ctx, cfg, deps.Redis)
	if err != nil {
		return nil, err
	}
	s.Storage = storage

	table, err := router.DefaultTable()
	if err != nil {
		return nil, fmt.Errorf("load route table: %w", err)
	}
	s.Router = router.New(router.Options{Table: table, Logger: logger})

	base := deps.BaseTransport
	if base == nil {
		base = http.DefaultTransport
	}
	if cfg.Observability.Tracing.Enabled {
		tracing, err := InitTracing(ctx, TracingOptions{
			Config:   cfg.Observability.Tracing,
			Logger:   logger,
			Exporter: deps.SpanExporter,
		})
		if err != nil {
			return nil, errors.Join(fmt.Errorf("init tracing: %w", err), s.Close())
		}
		s.closers = append(s.closers, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), tracingShutdownTimeout)
			defer cancel()
			return tracing.Shutdown(ctx)
		})
		base = otelhttp.NewTransport(base,
			otelhttp.WithTracerProvider(tracing.Provider),
			otelhttp.WithPropagators(tracing.Propagator),
		)
	}

	primary := httpapi.NewTransport(httpapi.TransportOptions{
		Base:          base,
		Storage:       storage,
		CredentialKey: cfg.Storage.CredentialKey,
		Navigator:     s.Router,
		LoginPath:     cfg.API.LoginPath,
		LoginEndpoint: cfg.API.LoginEndpoint,
		Logger:        logger,
		Metrics:       recorder,
	})

	var jar http.CookieJar
	if cfg.API.CookieJar {
		j, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		jar = j
	}

	s.API, err = httpapi.NewClient(httpapi.ClientOptions{
		Name:       "api",
		BaseURL:    cfg.API.BaseURL,
		Timeout:    cfg.API.Timeout,
		Transport:  primary,
		Jar:        jar,
		Normalizer: httpapi.NewPrimaryNormalizer(),
		Logger:     logger,
		Metrics:    recorder,
	})
	if err != nil {
		return nil, fmt.Errorf("build api client: %w", err)
	}
	s.Auth = httpapi.NewAuthClient(s.API)

	// The analysis backend shares the credential but has no session-expiry
	// handling, so it gets no navigator.
	aiClient, err := httpapi.NewClient(httpapi.ClientOptions{
		Name:    "ai",
		BaseURL: cfg.AI.BaseURL,
		Timeout: cfg.AI.Timeout,
		Transport: httpapi.NewTransport(httpapi.TransportOptions{
			Base:          base,
			Storage:       storage,
			CredentialKey: cfg.Storage.CredentialKey,
			Logger:        logger,
			Metrics:       recorder,
		}),
		Normalizer: httpapi.NewAINormalizer(),
		Logger:     logger,
		Metrics:    recorder,
	})
	if err != nil {
		return nil, fmt.Errorf("build ai client: %w", err)
	}
	s.AI = httpapi.NewAIClient(aiClient)

	s.Store = service.NewSessionStore(service.SessionStoreOptions{
		API:     s.Auth,
		Storage: storage,
		Config: service.SessionStoreConfig{
			CredentialKey: cfg.Storage.CredentialKey,
			Logger:        logger,
			Metrics:       recorder,
		},
	})
	primary.BindSession(s.Store)

	s.Guard = service.NewGuard(service.GuardOptions{
		Session: s.Store,
		Storage: storage,
		Config: service.GuardConfig{
			CredentialKey:      cfg.Storage.CredentialKey,
			LoginPath:          cfg.API.LoginPath,
			HomePath:           domainauth.HomePath,
			ChangePasswordPath: domainauth.ChangePasswordPath,
			Notifier:           deps.Notifier,
			Logger:             logger,
			Metrics:            recorder,
		},
	})
	s.Router.SetGuard(s.Guard)

	logger.DebugContext(ctx, "session assembled",
		"storage_mode", cfg.Storage.Mode,
		"api", cfg.API.BaseURL,
		"ai", cfg.AI.BaseURL,
		"tracing", cfg.Observability.Tracing.Enabled,
	)
	return s, nil
}

//nolint:ireturn // the slot implementation is chosen by configuration.
func (s *Session) buildStorage(ctx context.Context, cfg *config.AppConfig, client redis.UniversalClient) (ports.KeyValueStore, error) {
	switch cfg.Storage.Mode {
	case config.StorageModeMemory:
		return memstore.New(), nil

	case config.StorageModeRedis:
		if client == nil {
			c, err := ConnectRedis(ctx, RedisOptions{Config: cfg.Redis, Logger: s.logger})
			if err != nil {
				return nil, err
			}
			client = c
			s.closers = append(s.closers, c.Close)
		}
		return redisadapter.NewKeyValueStoreWithOptions(client, cfg.Storage.RedisPrefix, cfg.Storage.RedisTTL), nil

	case config.StorageModeFile, "":
		slot, err := filestore.New(cfg.Storage.FilePath)
		if err != nil {
			return nil, fmt.Errorf("open slot file: %w", err)
		}
		s.slotFile = slot
		return slot, nil

	default:
		return nil, fmt.Errorf("unsupported storage mode %q", cfg.Storage.Mode)
	}
}

// Watch reconciles the session whenever another process changes the slot
// file. It blocks until ctx is done.
func (s *Session) Watch(ctx context.Context) error {
	if s.slotFile == nil || !s.watch {
		return ErrWatchUnsupported
	}
	return s.slotFile.Watch(ctx, s.logger, s.Store.Reconcile)
}

// Close releases connections opened by BuildSession.
func (s *Session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
