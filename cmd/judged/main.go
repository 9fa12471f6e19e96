package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"arbiter/internal/common/cache"
	"arbiter/internal/common/db"
	"arbiter/internal/common/mq"
	"arbiter/internal/common/storage"
	"arbiter/internal/judge/bundle"
	"arbiter/internal/judge/controller"
	"arbiter/internal/judge/repository"
	"arbiter/internal/judge/sandbox"
	"arbiter/internal/judge/service"
	"arbiter/internal/scoreboard"
	"arbiter/pkg/logger"
)

const defaultConfigPath = "configs/judged.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	mysqlDB, err := db.NewMySQL(&appCfg.Database)
	if err != nil {
		logger.Error(context.Background(), "init database failed", zap.Error(err))
		return
	}
	defer func() {
		_ = mysqlDB.Close()
	}()

	redisCache, err := cache.NewRedisCache(&appCfg.Redis)
	if err != nil {
		logger.Error(context.Background(), "init redis failed", zap.Error(err))
		return
	}
	defer func() {
		_ = redisCache.Close()
	}()

	submissionStore := repository.NewSubmissionStore(mysqlDB)
	contestStore := repository.NewContestStore(mysqlDB)

	scoreboardRepo, err := scoreboard.NewRedisRepository(redisCache.Client())
	if err != nil {
		logger.Error(context.Background(), "init scoreboard repository failed", zap.Error(err))
		return
	}
	aggregator, err := scoreboard.NewAggregator(scoreboardRepo)
	if err != nil {
		logger.Error(context.Background(), "init scoreboard aggregator failed", zap.Error(err))
		return
	}

	executor, err := sandbox.NewDockerExecutor(appCfg.Sandbox)
	if err != nil {
		logger.Error(context.Background(), "init sandbox executor failed", zap.Error(err))
		return
	}

	// Bundles ship through object storage only when MinIO is configured;
	// otherwise the testcase root must be populated out of band.
	var bundles *bundle.Cache
	if appCfg.MinIO.Endpoint != "" {
		objStorage, err := storage.NewMinIOStorage(appCfg.MinIO)
		if err != nil {
			logger.Error(context.Background(), "init minio failed", zap.Error(err))
			return
		}
		bundles, err = bundle.NewCache(appCfg.Layout.TestcaseRoot, appCfg.MinIO.Bucket, objStorage, redisCache)
		if err != nil {
			logger.Error(context.Background(), "init bundle cache failed", zap.Error(err))
			return
		}
	}

	var events repository.VerdictEventPublisher
	var mqClient *mq.KafkaPublisher
	if len(appCfg.Kafka.Brokers) > 0 {
		mqClient, err = mq.NewKafkaPublisher(appCfg.Kafka)
		if err != nil {
			logger.Error(context.Background(), "init kafka failed", zap.Error(err))
			return
		}
		defer func() {
			_ = mqClient.Close()
		}()
		events = repository.NewMQVerdictEventPublisher(mqClient, appCfg.Events.VerdictTopic)
	}

	orchestrator, err := service.NewOrchestrator(service.Config{
		Executor:    executor,
		Submissions: submissionStore,
		Contests:    contestStore,
		Scoreboard:  aggregator,
		Languages:   appCfg.Languages,
		Layout:      appCfg.Layout,
		Bundles:     bundles,
		Events:      events,
	})
	if err != nil {
		logger.Error(context.Background(), "init orchestrator failed", zap.Error(err))
		return
	}

	pool, err := service.NewPool(orchestrator, appCfg.Pool)
	if err != nil {
		logger.Error(context.Background(), "init worker pool failed", zap.Error(err))
		return
	}
	admission, err := service.NewAdmissionController(submissionStore, contestStore)
	if err != nil {
		logger.Error(context.Background(), "init admission controller failed", zap.Error(err))
		return
	}
	intake, err := service.NewIntake(admission, submissionStore, pool)
	if err != nil {
		logger.Error(context.Background(), "init intake failed", zap.Error(err))
		return
	}

	judgeCtx, cancelJudging := context.WithCancel(context.Background())
	defer cancelJudging()
	pool.Start(judgeCtx)

	httpServer := buildHTTPServer(appCfg, intake, orchestrator, submissionStore, scoreboardRepo)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "judged http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}

	// Drain queued submissions before cancelling in-flight executions.
	pool.Stop()
}

func buildHTTPServer(cfg *AppConfig, intake *service.Intake, orchestrator *service.Orchestrator,
	submissions repository.SubmissionStore, scoreboardRepo scoreboard.Repository) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	judgeController := controller.NewJudgeController(intake, orchestrator, submissions, cfg.Layout)
	scoreboardController := controller.NewScoreboardController(scoreboardRepo)

	api := router.Group("/api/v1")
	api.POST("/submissions", judgeController.Submit)
	api.GET("/submissions/:id", judgeController.GetSubmission)
	api.DELETE("/submissions/:id", judgeController.DeleteSubmission)
	api.GET("/contests/:id/scoreboard", scoreboardController.GetScoreboard)

	return &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		logger.Info(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
