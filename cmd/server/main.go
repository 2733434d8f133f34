package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"votematch/config"
	"votematch/controllers"
	"votematch/db"
	"votematch/internal/throttle"
	"votematch/logger"
	"votematch/metrics"
	"votematch/middlewares"
	"votematch/repository"
	"votematch/routes"
	"votematch/scoring"
	"votematch/services"
	"votematch/utils"
	"votematch/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// store is what every repository backend provides
type store interface {
	services.Repository
	scoring.Store
}

func main() {
	configPath := flag.String("config", "./config/config.yml", "path to the YAML config file")
	flag.Parse()

	// Load the configuration from the specified YAML file
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Mode, cfg.Log.HashSalt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := openRepository(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open repository", "driver", cfg.Database.Driver, "error", err)
	}
	defer closeRepo()

	if err := utils.PopulateCatalog(ctx, repo, cfg.CatalogPath, log); err != nil {
		log.Fatal("failed to seed catalog", "error", err)
	}

	rdb, err := throttle.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal("failed to connect to redis", "error", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}
	limiter := throttle.NewRateLimiter(rdb, throttle.RateLimitConfig{
		MaxAnswers: cfg.RateLimit.MaxAnswers,
		Window:     cfg.RateLimit.Window,
	})
	log.Info("answer rate limiting", "enabled", limiter.Enabled())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	hub := websocket.NewHub(log)
	svc := services.NewQuizService(services.QuizDeps{
		Repo:        repo,
		Engine:      scoring.NewEngine(repo, repo),
		Limiter:     limiter,
		Broadcaster: hub,
		Metrics:     m,
		Log:         log,
	}, services.QuizConfig{
		StrongMatchThreshold: cfg.Scoring.StrongMatchThreshold,
		MinAnswersForMatch:   cfg.Scoring.MinAnswersForMatch,
	})

	gin.SetMode(cfg.Server.Mode)
	router := setupRouter(cfg, log, reg, controllers.NewQuizController(svc, log),
		hub.ScoresHandler(websocket.NewUpgrader(cfg.Server.AllowOrigins)))

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	}()

	log.Info("server starting", "port", cfg.Server.Port, "driver", cfg.Database.Driver)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("failed to start server", "error", err)
	}
	log.Info("server stopped")
}

func openRepository(ctx context.Context, cfg *config.Config, log *logger.Logger) (store, func(), error) {
	switch cfg.Database.Driver {
	case config.DriverMongo:
		client, database, err := db.ConnectMongoDB(ctx, cfg.Database.URI, log)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewMongoRepository(database)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		return repo, func() { _ = client.Disconnect(context.Background()) }, nil
	case config.DriverPostgres:
		gdb, err := db.OpenPostgres(ctx, cfg.Database.DSN, log, repository.AllRows()...)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewPostgresRepository(gdb), func() {
			if sqlDB, err := gdb.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}, nil
	case config.DriverMemory:
		log.Warn("using in-memory repository, data is lost on restart")
		return repository.NewMemoryRepository(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

func setupRouter(cfg *config.Config, log *logger.Logger, reg *prometheus.Registry, quiz *controllers.QuizController, scoresSocket gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middlewares.RequestLogger(log))

	// Set trusted proxies (adjust as needed)
	_ = router.SetTrustedProxies([]string{"127.0.0.1", "localhost"})

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-User-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	routes.SetupSystemRoutes(router, reg)
	routes.SetupQuizRoutes(router, quiz, scoresSocket)
	return router
}
