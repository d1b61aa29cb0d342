package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/yungbote/vibelist-backend/internal/cache"
	"github.com/yungbote/vibelist-backend/internal/clients/openai"
	"github.com/yungbote/vibelist-backend/internal/clients/redis"
	"github.com/yungbote/vibelist-backend/internal/clients/search"
	"github.com/yungbote/vibelist-backend/internal/data/db"
	"github.com/yungbote/vibelist-backend/internal/data/repos/trends"
	apphttp "github.com/yungbote/vibelist-backend/internal/http"
	httpH "github.com/yungbote/vibelist-backend/internal/http/handlers"
	"github.com/yungbote/vibelist-backend/internal/jobs/scheduler"
	"github.com/yungbote/vibelist-backend/internal/modules/recommend"
	"github.com/yungbote/vibelist-backend/internal/modules/trend"
	"github.com/yungbote/vibelist-backend/internal/observability"
	"github.com/yungbote/vibelist-backend/internal/platform/logger"
	"github.com/yungbote/vibelist-backend/internal/services"
)

type App struct {
	Log        *logger.Logger
	Cfg        *Config
	Metrics    *observability.Metrics
	DB         *db.Service
	Server     *apphttp.Server
	Supervisor *suture.Supervisor

	Pools  *recommend.PoolManager
	Engine *trend.Engine

	otelShutdown func(context.Context) error
	closers      []func() error
}

// New loads configuration and wires every component. Nothing is started
// until Run.
func New(ctx context.Context) (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.NewWithOptions(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a, err := build(ctx, log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}
	return a, nil
}

func build(ctx context.Context, log *logger.Logger, cfg *Config) (*App, error) {
	a := &App{Log: log, Cfg: cfg}
	a.otelShutdown = observability.InitOTel(ctx, log, cfg.OTel)
	a.Metrics = observability.NewMetrics()

	dbs, err := db.NewService(log, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	a.DB = dbs
	a.closers = append(a.closers, dbs.Close)
	if err := db.AutoMigrateAll(dbs.DB()); err != nil {
		a.Close()
		return nil, fmt.Errorf("database automigrate: %w", err)
	}

	checks := map[string]httpH.Check{"database": dbs.Ping}

	store, err := a.wireCache(checks)
	if err != nil {
		a.Close()
		return nil, err
	}

	es, err := search.NewClient(log, cfg.Search, a.Metrics)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init search client: %w", err)
	}
	checks["search"] = es.Ping

	catalog, err := recommend.LoadCatalog(cfg.Recommend.CatalogPath)
	if err != nil {
		a.Close()
		return nil, err
	}
	retriever := recommend.NewRetriever(log, es, recommend.RetrieverConfig{
		MinPopularity: cfg.Recommend.MinPopularity,
	}, a.Metrics)
	a.Pools = recommend.NewPoolManager(log, catalog, retriever, store, recommend.PoolConfig{
		TTL:         cfg.Recommend.PoolTTL,
		Size:        cfg.Recommend.PoolSize,
		Parallelism: cfg.Recommend.Parallelism,
	}, a.Metrics)
	recommender := recommend.NewRecommender(log, catalog, a.Pools, retriever, a.Metrics)

	var analyzer openai.MoodAnalyzer
	if cfg.MoodLLMEnabled() {
		client, err := openai.NewClient(log, cfg.MoodLLM, a.Metrics)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init mood llm client: %w", err)
		}
		analyzer = client
	} else {
		log.Warn("No mood LLM api key configured; text input is disabled")
	}

	gdb := dbs.DB()
	trendPool := trend.NewPoolCache(store, cfg.Trend.PoolTTL, a.Metrics)
	a.Engine = trend.NewEngine(
		log,
		gdb,
		trends.NewSnapshotRepo(gdb, log),
		trends.NewEntryRepo(gdb, log),
		es,
		trendPool,
		trend.EngineConfig{
			TopN:           cfg.Trend.TopN,
			CaptureTimeout: cfg.Trend.CaptureTimeout,
			Retention:      cfg.Trend.Retention,
		},
		a.Metrics,
	)

	recommendService := services.NewRecommendationService(log, recommender, analyzer)
	trendService := services.NewTrendService(log, a.Engine, trendPool, cfg.Trend.TopN)

	a.Server = apphttp.NewServer(log, cfg.Server.Addr, cfg.Server.ShutdownTimeout, apphttp.RouterConfig{
		Log:              log,
		Metrics:          a.Metrics,
		ServiceName:      otelServiceName(cfg),
		CORSOrigins:      cfg.Server.CORSOrigins,
		RecommendHandler: httpH.NewRecommendHandler(log, recommendService),
		TrendHandler:     httpH.NewTrendHandler(log, trendService),
		HealthHandler:    httpH.NewHealthHandler(checks),
	})

	a.Supervisor = a.wireSupervisor()
	return a, nil
}

// wireCache picks redis when an address is configured and the in-process
// store otherwise.
func (a *App) wireCache(checks map[string]httpH.Check) (cache.Store, error) {
	if strings.TrimSpace(a.Cfg.Redis.Addr) == "" {
		a.Log.Info("No redis addr configured; using in-memory cache",
			"entries", a.Cfg.Cache.MemoryEntries, "max_ttl", a.Cfg.Cache.MemoryMaxTTL)
		return cache.NewMemoryStore(a.Cfg.Cache.MemoryEntries, a.Cfg.Cache.MemoryMaxTTL), nil
	}
	rs, err := redis.NewStore(a.Log, a.Cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}
	a.closers = append(a.closers, rs.Close)
	checks["redis"] = rs.Ping
	return rs, nil
}

func (a *App) wireSupervisor() *suture.Supervisor {
	sc := a.Cfg.Scheduler
	root := scheduler.NewSupervisor(a.Log, "vibelist", scheduler.TreeConfig{
		FailureThreshold: sc.FailureThreshold,
		FailureDecay:     sc.FailureDecay,
		FailureBackoff:   sc.FailureBackoff,
		ShutdownTimeout:  sc.ShutdownTimeout,
	})
	root.Add(a.Server)

	rc := a.Cfg.Recommend
	refresh := a.refreshPoolsTask()
	if rc.RefreshOnStartup {
		warm := scheduler.NewOneShot(a.Log, "pool-warmup", refresh, rc.RefreshTimeout, a.Metrics)
		warm.Ready = a.Server.Ready()
		root.Add(warm)
	}
	if rc.RefreshInterval > 0 {
		root.Add(scheduler.NewRecurring(a.Log, "pool-refresh", refresh, rc.RefreshInterval, true, rc.RefreshTimeout, a.Metrics))
	}

	tc := a.Cfg.Trend
	capture := a.captureTrendsTask()
	if tc.CaptureOnStartup {
		first := scheduler.NewOneShot(a.Log, "trend-warmup", capture, 0, a.Metrics)
		first.Ready = a.Server.Ready()
		root.Add(first)
	}
	if tc.CaptureInterval > 0 {
		root.Add(scheduler.NewRecurring(a.Log, "trend-capture", capture, tc.CaptureInterval, false, 0, a.Metrics))
	}
	return root
}

// Run serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Supervisor == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("Starting vibelist", "addr", a.Cfg.Server.Addr)
	err := a.Supervisor.Serve(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
		a.otelShutdown = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Log.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
	a.Log.Sync()
}

func otelServiceName(cfg *Config) string {
	if !cfg.OTel.Enabled {
		return ""
	}
	return cfg.OTel.ServiceName
}
