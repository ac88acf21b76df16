package app

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/config"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/controller"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/middleware"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/repository"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/service"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/util"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/pkg/configwatcher"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/pkg/database"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/pkg/logger"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/pkg/mailer"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/pkg/monitoring"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/pkg/security"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/pkg/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	ConfigPath      string
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	Signer          *util.TokenSigner
	sessions        middleware.SessionValidator
	cors            *security.CORS
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user       *repository.UserRepository
	department *repository.DepartmentRepository
}

type services struct {
	auth     *service.AuthService
	password *service.PasswordService
	user     *service.UserService
}

type controllers struct {
	auth   *controller.AuthController
	user   *controller.UserController
	health *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:       repository.NewUserRepository(db),
		department: repository.NewDepartmentRepository(db),
	}
}

// Deps are the collaborators that vary between production and tests.
type Deps struct {
	Hasher   *util.PasswordHasher
	Notifier service.Notifier
	Now      func() time.Time
}

// DefaultDeps wires the production hasher and the SMTP notifier.
func DefaultDeps(cfg *config.Config) Deps {
	templates, err := mailer.NewTemplates()
	if err != nil {
		logger.Log.Fatal("Failed to parse email templates", zap.Error(err))
	}
	client := mailer.NewClient(mailer.Config{
		Enabled:  cfg.SMTP.Enabled,
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		UseTLS:   cfg.SMTP.UseTLS,
	})
	if !cfg.SMTP.Enabled {
		logger.Log.Warn("SMTP disabled, credential emails will not be delivered")
	}
	return Deps{
		Hasher:   util.NewPasswordHasher(util.PasswordHashCost),
		Notifier: service.NewEmailService(client, templates, cfg.App.Name, cfg.App.FrontendURL, cfg.Policy.OTPTTL, cfg.Policy.ResetLinkTTL),
		Now:      time.Now,
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client, deps Deps) *services {
	var (
		seq      service.Sequence = service.ScanSequence{}
		throttle service.Throttle = service.NewMemoryThrottle()
	)
	if rdb != nil {
		seq = service.NewRedisSequence(rdb)
		throttle = service.NewRedisThrottle(rdb)
	}

	allocator := service.NewEmployeeIDAllocator(repos.user, repos.department, seq)
	otp := service.NewOTPManager(repos.user, cfg.Policy.OTPTTL)
	otp.Now = deps.Now

	auth := service.NewAuthService(repos.user, repos.department, allocator, deps.Hasher, a.Signer, cfg.Policy)
	auth.Now = deps.Now

	password := service.NewPasswordService(repos.user, otp, deps.Hasher, deps.Notifier, throttle, cfg.Policy, cfg.App.FrontendURL)
	password.Now = deps.Now

	return &services{
		auth:     auth,
		password: password,
		user:     service.NewUserService(repos.user, repos.department, allocator, deps.Hasher, deps.Notifier),
	}
}

func (a *App) initControllers(s *services, cfg *config.Config) *controllers {
	cookies := controller.CookiePolicy{
		Secure:     cfg.IsProduction(),
		AccessTTL:  cfg.Policy.AccessTokenTTL,
		RefreshTTL: cfg.Policy.RefreshTokenTTL,
	}
	return &controllers{
		auth:   controller.NewAuthController(s.auth, s.password, cookies),
		user:   controller.NewUserController(s.auth, s.password, s.user),
		health: controller.NewHealthController(a.DB, a.Redis),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	a.cors = security.NewCORS(cfg.CORS.AllowedOrigins)
	a.RegisterConfigCallback(func(next *config.Config) {
		a.cors.SetOrigins(next.CORS.AllowedOrigins)
	})
	a.RegisterConfigCallback(logger.Reconfigure)

	router.Use(a.cors.Handler())
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func newSigner(cfg *config.Config, now func() time.Time) *util.TokenSigner {
	return util.NewTokenSigner(util.TokenSignerOptions{
		AccessSecret:  cfg.JWT.Secret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		AccessTTL:     cfg.Policy.AccessTokenTTL,
		RefreshTTL:    cfg.Policy.RefreshTokenTTL,
		Now:           now,
	})
}

// New assembles the HTTP application on top of already opened stores. rdb
// may be nil.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, deps Deps) *App {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
		Signer: newSigner(cfg, deps.Now),
	}

	repos := app.initRepositories(db)
	svcs := app.initServices(repos, cfg, rdb, deps)
	app.sessions = svcs.auth
	ctrls := app.initControllers(svcs, cfg)

	monitoring.Init()

	if cfg.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		logger.Log.Warn("Ignoring trusted proxies", zap.Error(err))
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(gin.Recovery())
	if !cfg.IsRelease() {
		router.Use(gin.Logger())
	}
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, ctrls, cfg)
	return app
}

func NewApp(cfg *config.Config, configPath string) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	migrate := cfg.ForceMigrate || !cfg.IsRelease()
	db, err := database.InitDB(&cfg.Database, migrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}
	if cfg.MigrateOnly {
		return &App{Config: cfg, DB: db}
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}

	app := New(cfg, db, rdb, DefaultDeps(cfg))
	app.ConfigPath = configPath

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}
	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:              ":" + a.Config.Server.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.ConfigPath != "" {
		go func() {
			err := configwatcher.WatchConfig(ctx, filepath.Join(a.ConfigPath, "config.yaml"), func(cfg *config.Config) {
				for _, cb := range a.configCallbacks {
					cb(cfg)
				}
			})
			if err != nil {
				logger.Log.Warn("Config hot reload disabled", zap.Error(err))
			}
		}()
	}

	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	<-ctx.Done()
	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}

	logger.Log.Info("Server exiting")
	_ = logger.Log.Sync()
}
