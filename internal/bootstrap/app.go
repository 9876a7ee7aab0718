package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"resty.dev/v3"

	"resucheck/internal/account"
	"resucheck/internal/admin"
	"resucheck/internal/analyzer"
	"resucheck/internal/backend"
	"resucheck/internal/export"
	"resucheck/internal/export/raster"
	"resucheck/internal/export/structured"
	"resucheck/internal/export/wysiwyg"
	"resucheck/internal/exports"
	"resucheck/internal/queue"
	"resucheck/internal/reviews"
	"resucheck/internal/services/health"
	"resucheck/internal/session"
	"resucheck/internal/shared/auth"
	"resucheck/internal/shared/config"
	"resucheck/internal/shared/server"
	"resucheck/internal/shared/server/middleware"
	"resucheck/internal/shared/storage/db"
	"resucheck/internal/shared/storage/object"
	localstore "resucheck/internal/shared/storage/object/local"
	s3store "resucheck/internal/shared/storage/object/s3"
	"resucheck/internal/shared/telemetry"
)

const (
	previewPrefix    = "previews"
	viewTokenTTL     = 5 * time.Minute
	captureTimeout   = 60 * time.Second
	thumbnailTimeout = 15 * time.Second
)

// App holds shared dependencies and the router built from them.
type App struct {
	Config   config.Config
	Router   *gin.Engine
	DB       *sql.DB
	Store    object.ObjectStore
	Queue    queue.Client
	Backend  *backend.Client
	Sessions *session.Resolver
	Raster   *raster.Rasterizer
	Chain    *export.Chain
	Analyzer analyzer.Analyzer
	Health   *health.Service

	Reviews  *reviews.Service
	Exports  *exports.Service
	Account  *account.Service
	Admin    *admin.Service
	Handlers Handlers

	closers []func() error
}

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	Reviews *reviews.Handler
	Exports *exports.Handler
	Account *account.Handler
	Admin   *admin.Handler
}

// Option adjusts the App before services are wired. Tests use it to swap
// heavy dependencies for fakes.
type Option func(*App)

// WithDB uses an already opened database instead of DATABASE_URL.
func WithDB(sqlDB *sql.DB) Option {
	return func(a *App) { a.DB = sqlDB }
}

// WithStore uses store instead of the configured object store.
func WithStore(store object.ObjectStore) Option {
	return func(a *App) { a.Store = store }
}

// WithRasterizer replaces the pdftoppm-backed rasterizer.
func WithRasterizer(r *raster.Rasterizer) Option {
	return func(a *App) { a.Raster = r }
}

// WithChain replaces the export strategy chain.
func WithChain(chain *export.Chain) Option {
	return func(a *App) { a.Chain = chain }
}

// Build wires every service, handler and the router from cfg.
func Build(cfg config.Config, opts ...Option) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	if strings.TrimSpace(cfg.Analyzer) == "" {
		cfg.Analyzer = "backend"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ctx := context.Background()

	app := &App{Config: cfg}
	for _, opt := range opts {
		opt(app)
	}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	if app.DB == nil {
		sqlDB, err := buildDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		app.DB = sqlDB
		if sqlDB != nil {
			app.closers = append(app.closers, sqlDB.Close)
		}
	}

	if app.Store == nil {
		store, err := buildStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		app.Store = store
	}

	if strings.TrimSpace(cfg.BackendURL) == "" {
		telemetry.Warn("bootstrap.backend_missing", map[string]any{
			"message": "BACKEND_URL empty; every authenticated call will fail",
		})
	}
	app.Backend = backend.New(cfg.BackendURL, cfg.BackendTimeout)
	app.closers = append(app.closers, app.Backend.Close)
	app.Sessions = session.NewResolver(app.Backend)

	if app.Raster == nil {
		app.Raster = raster.New(raster.LoadPdftoppm(cfg.PdftoppmPath), raster.NewStoreURLs(app.Store, previewPrefix))
	}
	if app.Chain == nil {
		app.Chain = buildChain(app)
	}

	an, err := buildAnalyzer(ctx, app)
	if err != nil {
		return nil, err
	}
	app.Analyzer = an

	tokens, err := auth.NewViewSigner(cfg.ViewTokenSecret, cfg.Env, viewTokenTTL)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.ExportQueueURL) != "" {
		q, err := queue.NewSQSClient(ctx, cfg.ExportQueueURL, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		app.Queue = q
	}

	buildServices(app, tokens)
	app.Health = buildHealth(app)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:   cfg,
		Resolver: app.Sessions,
		Reviews:  app.Handlers.Reviews,
		Exports:  app.Handlers.Exports,
		Account:  app.Handlers.Account,
		Admin:    app.Handlers.Admin,
		Health:   app.Health,
		Store:    app.Store,
		Limiter:  middleware.NewRateLimiter(nil),
	})

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":        cfg.Env,
		"store":      cfg.ObjectStoreType,
		"analyzer":   app.Analyzer.Name(),
		"database":   app.DB != nil,
		"queue":      app.Queue != nil,
		"strategies": app.Chain.Names(),
	})
	ok = true
	return app, nil
}

// Close releases the database, backend client, browser and analyzer.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			telemetry.Warn("bootstrap.close_failed", map[string]any{"error": err.Error()})
		}
	}
	a.closers = nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			telemetry.Info("bootstrap.memory_repos", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err == nil {
		if err = db.RunMigrations(ctx, sqlDB); err != nil {
			_ = sqlDB.Close()
			err = fmt.Errorf("run migrations: %w", err)
		}
	}
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_repos", map[string]any{"reason": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir, localstore.DefaultURLPrefix), nil
	}
}

func buildChain(app *App) *export.Chain {
	capturer := wysiwyg.NewChromeCapturer(app.Config.ChromePath, captureTimeout)
	app.closers = append(app.closers, func() error {
		capturer.Close()
		return nil
	})
	thumbs := &structured.RefLoader{
		HTTP:  resty.New().SetTimeout(thumbnailTimeout),
		Store: app.Store,
	}
	app.closers = append(app.closers, thumbs.HTTP.Close)
	return export.NewChain(
		wysiwyg.NewStrategy(capturer),
		structured.NewStrategy(structured.NewBuilder(thumbs)),
	)
}

func buildAnalyzer(ctx context.Context, app *App) (analyzer.Analyzer, error) {
	cfg := app.Config
	switch cfg.Analyzer {
	case "gemini":
		g, err := analyzer.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, app.Backend)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, g.Close)
		return g, nil
	case "openai":
		o, err := analyzer.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.BackendTimeout, app.Backend)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, o.Close)
		return o, nil
	default:
		return analyzer.NewBackend(app.Backend), nil
	}
}

func buildServices(app *App, tokens *auth.ViewSigner) {
	var (
		reviewRepo reviews.Repo
		exportRepo exports.Repo
	)
	if app.DB != nil {
		reviewRepo = &reviews.PGRepo{DB: app.DB}
		exportRepo = &exports.PGRepo{DB: app.DB}
	} else {
		reviewRepo = reviews.NewMemoryRepo()
		exportRepo = exports.NewMemoryRepo()
	}

	app.Reviews = &reviews.Service{
		Repo:          reviewRepo,
		Store:         app.Store,
		Raster:        app.Raster,
		Analyzer:      app.Analyzer,
		Chain:         app.Chain,
		Tokens:        tokens,
		Sessions:      app.Sessions,
		PublicBaseURL: app.Config.PublicBaseURL,
	}
	app.Exports = &exports.Service{
		Repo:    exportRepo,
		Reviews: app.Reviews,
		Store:   app.Store,
		Queue:   app.Queue,
	}
	app.Account = account.NewService(app.Backend, app.Sessions)
	app.Admin = admin.NewService(app.Backend)

	app.Handlers = Handlers{
		Reviews: reviews.NewHandler(app.Reviews),
		Exports: exports.NewHandler(app.Exports),
		Account: account.NewHandler(app.Account),
		Admin:   admin.NewHandler(app.Admin),
	}
}

func buildHealth(app *App) *health.Service {
	svc := health.NewService()
	var dbCheck health.CheckFunc
	if app.DB != nil {
		sqlDB := app.DB
		dbCheck = func(ctx context.Context) error { return db.Ping(ctx, sqlDB) }
	}
	svc.Register("db", dbCheck)
	svc.Register("rasterizer", app.Raster.Ready)
	return svc
}
