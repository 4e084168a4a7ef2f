package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-engine/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-timetable-engine/internal/middleware"
	"github.com/noah-isme/sma-timetable-engine/internal/models"
	"github.com/noah-isme/sma-timetable-engine/internal/repository"
	"github.com/noah-isme/sma-timetable-engine/internal/service"
	"github.com/noah-isme/sma-timetable-engine/pkg/cache"
	"github.com/noah-isme/sma-timetable-engine/pkg/config"
	"github.com/noah-isme/sma-timetable-engine/pkg/database"
	"github.com/noah-isme/sma-timetable-engine/pkg/export"
	"github.com/noah-isme/sma-timetable-engine/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-engine/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-engine/pkg/middleware/requestid"
)

// App holds the wired timetable engine and the resources it owns.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Metrics   *service.MetricsService
	Timetable *service.TimetableService
	Export    *service.ExportService

	db    *sqlx.DB
	redis *redis.Client
	queue *service.GridPersistQueue
}

// Options override pieces of the default wiring.
type Options struct {
	// Generator replaces the bundled heuristic generator.
	Generator service.Generator
	// SkipPersist disables grid writes regardless of configuration.
	SkipPersist bool
}

// New connects storage, wires the engine and loads every classroom grid.
// The engine refuses to start when stored grids double-book a teacher.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, opts Options) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: log}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	a.db = db

	if cfg.Metrics.Enabled {
		a.Metrics = service.NewMetricsService()
	}

	classrooms := repository.NewClassroomRepository(db)
	teachers := repository.NewTeacherRepository(db)

	loader, persister, err := a.gridBackend(cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if opts.SkipPersist {
		persister = nil
	}
	if persister != nil {
		a.queue = service.NewGridPersistQueue(persister, service.GridPersistQueueConfig{
			Backend:    cfg.Timetable.PersistBackend,
			Workers:    cfg.Timetable.PersistWorkers,
			MaxRetries: cfg.Timetable.PersistRetries,
			RetryDelay: cfg.Timetable.PersistRetryDelay,
		}, a.Metrics, log.Named("persist"))
		a.queue.Start(context.Background())
	}

	generator := opts.Generator
	if generator == nil {
		generator = service.NewHeuristicGenerator(service.HeuristicGeneratorConfig{
			MaxAttempts:          cfg.Generator.MaxAttempts,
			MaxSubjectPeriodsDay: cfg.Generator.MaxSubjectPeriodsDay,
			Seed:                 cfg.Generator.Seed,
		}, log.Named("generator"))
	}

	var gridPersister service.GridPersister
	if a.queue != nil {
		gridPersister = a.queue
	}
	a.Timetable = service.NewTimetableService(classrooms, teachers, loader, gridPersister, generator, a.Metrics, log.Named("timetable"), service.TimetableServiceConfig{
		MultiAssignment: cfg.Timetable.MultiAssignment(),
		Rules: service.ValidatorConfig{
			EnforceGrade:      cfg.Timetable.EnforceGrade,
			EnforceCurriculum: cfg.Timetable.EnforceCurriculum,
		},
		GeneratorTimeout: cfg.Generator.Timeout,
	})
	a.Export = service.NewExportService(a.Timetable, export.NewCSVExporter(), log.Named("export"))

	if err := a.Timetable.Load(ctx); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("load timetable: %w", err)
	}
	return a, nil
}

type persistBackend interface {
	service.GridLoader
	service.GridPersister
}

func (a *App) gridBackend(cfg *config.Config) (service.GridLoader, service.GridPersister, error) {
	var backend persistBackend
	switch cfg.Timetable.PersistBackend {
	case config.PersistBackendRedis:
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		a.redis = client
		backend = repository.NewGridCacheRepository(client, cfg.Timetable.RedisKeyPrefix, a.Logger.Named("grid-cache"))
	case config.PersistBackendNone:
		return emptyGrids{}, nil, nil
	default:
		backend = repository.NewGridRepository(a.db)
	}
	return backend, backend, nil
}

// emptyGrids starts every classroom free when persistence is disabled.
type emptyGrids struct{}

func (emptyGrids) LoadInitialGrids(context.Context) (map[string]models.GridSnapshot, error) {
	return map[string]models.GridSnapshot{}, nil
}

// Router builds the HTTP surface of the engine.
func (a *App) Router() *gin.Engine {
	if a.Config.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(a.Logger))
	r.Use(corsmiddleware.New(a.Config.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(a.Metrics))

	metricsHandler := handler.NewMetricsHandler(a.Metrics)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", a.ready)
	if a.Metrics != nil {
		r.GET("/metrics", metricsHandler.Prometheus)
		r.GET("/metrics/summary", metricsHandler.Summary)
	}
	if a.Config.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(a.Config.APIPrefix)
	handler.NewTimetableHandler(a.Timetable, a.Export, validator.New()).Register(api)
	return r
}

func (a *App) ready(c *gin.Context) {
	if a.db != nil {
		if err := a.db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Close drains pending grid writes and releases connections.
func (a *App) Close() error {
	var errs []error
	if a.queue != nil {
		a.queue.Stop()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close postgres: %w", err))
		}
	}
	return errors.Join(errs...)
}
