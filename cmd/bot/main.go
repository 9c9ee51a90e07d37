package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"go.uber.org/zap"

	"github.com/classbot/nz-schedule-bot/internal/bot"
	"github.com/classbot/nz-schedule-bot/internal/handler"
	"github.com/classbot/nz-schedule-bot/internal/models"
	"github.com/classbot/nz-schedule-bot/internal/notify"
	"github.com/classbot/nz-schedule-bot/internal/portal"
	"github.com/classbot/nz-schedule-bot/internal/repository"
	"github.com/classbot/nz-schedule-bot/internal/service"
	"github.com/classbot/nz-schedule-bot/pkg/cache"
	"github.com/classbot/nz-schedule-bot/pkg/config"
	"github.com/classbot/nz-schedule-bot/pkg/database"
	"github.com/classbot/nz-schedule-bot/pkg/logger"
	"github.com/classbot/nz-schedule-bot/pkg/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	if err := run(cfg, log); err != nil {
		log.Fatal("bot terminated", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	location, err := time.LoadLocation(cfg.Sync.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %s: %w", cfg.Sync.Timezone, err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	// Repositories.
	cacheRepo := repository.NewCacheRepository(redisClient, log)
	scheduleCache := repository.NewScheduleCache(cacheRepo)
	userRepo := repository.NewUserRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	conferenceRepo := repository.NewConferenceRepository(db)
	requestCounter := repository.NewRequestCounter(cacheRepo)

	// Services.
	metrics := service.NewMetricsService()
	portalClient := portal.NewClient(cfg.Portal, metrics, log)
	builder := service.NewScheduleBuilder(portalClient, conferenceRepo, cfg.Meet.Domain, location, log)
	schedules := service.NewScheduleService(scheduleCache, metrics, cfg.Sync.ScheduleTTL, cfg.Sync.StaleAfter, log)
	statistics := service.NewStatisticsService(userRepo, requestCounter, conferenceRepo, cacheRepo, time.Hour, log)

	// Telegram delivery.
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("authorize telegram bot: %w", err)
	}
	log.Info("telegram bot authorized", zap.String("username", botAPI.Self.UserName))

	dispatcher := notify.NewDispatcher(notify.NewTelegramSender(botAPI, log), cfg.Notify, metrics, log)

	syncService := service.NewSyncService(
		builder, portalClient, schedules, scheduleCache,
		settingsRepo, userRepo, dispatcher, metrics,
		portalCredentials(cfg.Portal), cfg.Portal.TokenTTL, location, log,
	)
	digest := service.NewDigestService(schedules, userRepo, dispatcher, location, log)

	commandBot, err := bot.New(botAPI, userRepo, settingsRepo, schedules, requestCounter, cfg.Telegram.SuperAdminID, location, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	go commandBot.Run(ctx)

	jobs := scheduler.New(log)
	for _, class := range []models.Class{models.Class11A, models.Class11B} {
		class := class
		jobs.Every("sync-"+string(class), cfg.Sync.Interval, func(ctx context.Context) error {
			return syncService.SyncClass(ctx, class)
		})
	}
	jobs.DailyAt("daily-schedule", cfg.Sync.DailyHour, cfg.Sync.DailyMinute, location, digest.SendDailySchedules)
	jobs.Start(ctx)
	defer jobs.Stop()

	server := newHTTPServer(cfg, log, metrics, schedules, statistics, conferenceRepo, requestCounter)
	serverErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.Int("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	return nil
}

func newHTTPServer(
	cfg *config.Config,
	log *zap.Logger,
	metrics *service.MetricsService,
	schedules *service.ScheduleService,
	statistics *service.StatisticsService,
	conferences *repository.ConferenceRepository,
	requests *repository.RequestCounter,
) *http.Server {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), logger.GinMiddleware(log))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/meet/:conferenceId", handler.NewMeetHandler(conferences, log).Redirect)

	api := router.Group("/api/v1")
	api.GET("/schedules/:class", handler.NewScheduleHandler(schedules, requests).Get)
	api.GET("/statistics", handler.NewStatisticsHandler(statistics).Get)

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}
}

// portalCredentials maps the string-keyed configuration onto the typed
// class/account identifiers the sync service works with.
func portalCredentials(cfg config.PortalConfig) map[models.Class]service.ClassCredentials {
	credentials := make(map[models.Class]service.ClassCredentials, len(cfg.Classes))
	for class, accounts := range cfg.Classes {
		classCreds := make(service.ClassCredentials, len(accounts))
		for account, creds := range accounts {
			classCreds[models.Account(account)] = service.AccountCredentials{
				Username: creds.Username,
				Password: creds.Password,
			}
		}
		credentials[models.Class(class)] = classCreds
	}
	return credentials
}
