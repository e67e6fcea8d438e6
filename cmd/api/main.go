package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/pointbarre/quoteapi/internal/cache"
	"github.com/pointbarre/quoteapi/internal/cart"
	"github.com/pointbarre/quoteapi/internal/catalog"
	"github.com/pointbarre/quoteapi/internal/common"
	"github.com/pointbarre/quoteapi/internal/config"
	"github.com/pointbarre/quoteapi/internal/dimension"
	"github.com/pointbarre/quoteapi/internal/health"
	"github.com/pointbarre/quoteapi/internal/lock"
	"github.com/pointbarre/quoteapi/internal/obs"
	"github.com/pointbarre/quoteapi/internal/pricing"
	"github.com/pointbarre/quoteapi/internal/promo"
	"github.com/pointbarre/quoteapi/internal/ratelimit"
	"github.com/pointbarre/quoteapi/internal/refund"
	"github.com/pointbarre/quoteapi/internal/repo"
	"github.com/pointbarre/quoteapi/internal/security"
	"github.com/pointbarre/quoteapi/internal/settings"
	"github.com/pointbarre/quoteapi/internal/tax"
	"github.com/pointbarre/quoteapi/internal/variant"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "quoteapi")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "quote-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "quote-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	settingsStore := &settings.Store{
		Q:     settings.PGQuerier{Pool: pool},
		Cache: cache.New(redisClient, cfg.SettingsCacheTTL),
	}

	dims := &dimension.SettingsSource{Settings: seededSettings{
		Store: settingsStore,
		Defaults: map[string]string{
			dimension.RoomsKey: cfg.DefaultRooms,
			dimension.VATKey:   cfg.DefaultVAT,
		},
	}}
	variantCatalog := &variant.Catalog{Dims: dims}

	productsRepo := &repo.ProductsRepo{Pool: pool}
	currenciesRepo := &repo.CurrenciesRepo{Pool: pool, DefaultCurrencyID: cfg.DefaultCurrencyID}

	resolver := &tax.Resolver{
		Catalog: variantCatalog,
		Rates: tax.ChainRates{
			repo.TaxRulesRepo{Pool: pool},
			tax.DimensionRates{Dims: dims},
		},
		Groups:   tax.NewGroupCache(),
		Disabled: !cfg.TaxEnabled,
	}

	engine := &pricing.Engine{
		Products:       productsRepo,
		Specifics:      repo.SpecificPricesRepo{Pool: pool},
		Groups:         repo.GroupsRepo{Pool: pool},
		Currencies:     currenciesRepo,
		Customizations: repo.CustomizationsRepo{Pool: pool},
		Taxes:          resolver,
		EcotaxGroupID:  cfg.EcotaxTaxRulesGroupID,
		Cache:          pricing.NewCache(),
		BaseCache:      pricing.NewBaseCache(),
	}

	roundMode := roundModeFromSettings(ctx, settingsStore, cfg.RoundType)

	catalogHandler := &catalog.Handler{Service: &catalog.Service{
		Products: productsRepo,
		Catalog:  variantCatalog,
		Engine:   engine,
		Cache:    cache.New(redisClient, cfg.CatalogCacheTTL),
		Defaults: catalog.Defaults{
			ShopID:     cfg.DefaultShopID,
			CurrencyID: cfg.DefaultCurrencyID,
			CountryID:  cfg.DefaultCountryID,
			GroupID:    cfg.DefaultGroupID,
			Decimals:   int32(cfg.ComputePrecision),
			UseEcotax:  cfg.UseEcotax,
		},
	}}

	validate := validator.New()

	cartHandler := &cart.Handler{
		Svc:    &cart.Service{Pool: pool},
		Pricer: &cart.Adapter{Engine: engine, Round: roundMode, Precision: int32(cfg.DisplayPrecision)},
		Promos: &promo.Granter{Store: &promo.Store{Pool: pool}},
		Defaults: cart.Defaults{
			ShopID:     cfg.DefaultShopID,
			CurrencyID: cfg.DefaultCurrencyID,
			GroupID:    cfg.DefaultGroupID,
		},
		Validate: validate,
	}

	refundStore := &refund.Store{Pool: pool}
	refundHandler := &refund.Handler{
		Svc: &refund.Service{
			Store:    refundStore,
			Composer: refund.Composer{Taxes: resolver, Precision: int32(cfg.DisplayPrecision)},
			Locks:    &lock.Locker{R: redisClient},
		},
		Notes:    refundStore,
		Validate: validate,
	}

	settingsHandler := &settings.Handler{Store: settingsStore, Refresher: dims}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}
	adminLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "rl:admin:"},
		Config: ratelimit.Config{
			Key:    func(r *http.Request) string { return common.ClientIP(r) },
			Window: time.Minute,
			Max:    envInt("ADMIN_RATE_LIMIT_PER_MINUTE", 60),
		},
		OnError: func(err error) { logger.Error().Err(err).Msg("rate limit") },
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(security.BodyLimit{Max: int64(envInt("SECURE_MAX_BODY_BYTES", 1<<20))}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	pprofEnabled := envBool("OBS_ENABLE_PPROF", true)
	if pprofEnabled {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{db: pool, redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/healthz", healthHandler.Live)
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/v1", func(v chi.Router) {
		v.Get("/products/{id}/variants", catalogHandler.Variants)
		v.Get("/products/{id}/price", catalogHandler.Price)
		v.Post("/variants/resolve", catalogHandler.ResolveSelection)

		v.Route("/carts", func(c chi.Router) {
			c.Get("/{token}", cartHandler.Get)
			c.Group(func(g chi.Router) {
				g.Use(idem.Middleware)
				g.Post("/", cartHandler.Create)
				g.Post("/{token}/items", cartHandler.AddLine)
				g.Patch("/{token}/items/{lineID}", cartHandler.UpdateLine)
				g.Delete("/{token}/items/{lineID}", cartHandler.RemoveLine)
			})
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(adminLimit.Middleware)
			admin.Get("/settings", settingsHandler.List)
			admin.Get("/settings/{key}", settingsHandler.Get)
			admin.Put("/settings/{key}", settingsHandler.Put)
			admin.Get("/orders/{id}/credit-notes", refundHandler.List)
			admin.With(idem.Middleware).Post("/orders/{id}/credit-notes", refundHandler.Issue)
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	stop, stopCancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopCancel()
	<-stop.Done()

	health.SetReady(false)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}

// seededSettings serves stored settings and falls back to the
// environment defaults for keys the table does not hold yet.
type seededSettings struct {
	Store    *settings.Store
	Defaults map[string]string
}

func (s seededSettings) Get(ctx context.Context, key string) (string, error) {
	value, err := s.Store.Get(ctx, key)
	if errors.Is(err, settings.ErrNotFound) {
		if def, ok := s.Defaults[key]; ok && def != "" {
			return def, nil
		}
	}
	return value, err
}

// roundModeFromSettings prefers the stored ROUND_TYPE over the
// environment default.
func roundModeFromSettings(ctx context.Context, store *settings.Store, fallback string) pricing.RoundMode {
	if value, err := store.Get(ctx, settings.RoundTypeKey); err == nil && strings.TrimSpace(value) != "" {
		return pricing.ParseRoundMode(value)
	}
	return pricing.ParseRoundMode(fallback)
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/block", pprof.Handler("block"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	mux.Handle("/threadcreate", pprof.Handler("threadcreate"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
