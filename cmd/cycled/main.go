package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"billing_cycle_bot/internal/app"
	"billing_cycle_bot/internal/domain/reminder"
	"billing_cycle_bot/internal/domain/settings"
	"billing_cycle_bot/internal/infra/config"
	idb "billing_cycle_bot/internal/infra/database"
	"billing_cycle_bot/internal/infra/logger"
	"billing_cycle_bot/internal/infra/metrics"
	"billing_cycle_bot/internal/infra/queue"
	"billing_cycle_bot/internal/infra/scheduler"
	"billing_cycle_bot/internal/infra/telegram"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("Could not load application configuration: %v", err)
	}
	logger.Init(cfg, "cycled")
	log := logger.For("main")
	log.Infof("Configuration loaded. LogLevel: %s, Environment: %s, Timezone: %s", cfg.LogLevel, cfg.Environment, cfg.Timezone)

	if cfg.RedisURL == "" {
		log.Fatal("REDIS_URL is not set")
	}

	// Database
	db, err := idb.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Could not connect to database: %v", err)
	}
	defer db.Close()
	if err := idb.Migrate(db); err != nil {
		log.Fatalf("Could not apply migrations: %v", err)
	}
	log.WithField("dialect", db.Dialect).Info("Database connection established and migrated.")

	settingsRepo := idb.NewSettingsRepository(db)
	projectRepo := idb.NewProjectRepository(db)
	cycleRepo := idb.NewCycleRepository(db)
	reminderLogs := idb.NewReminderLogRepository(db)

	base := logrus.NewEntry(logger.Log)
	adminService := app.NewAdminService(settingsRepo, projectRepo, cycleRepo, base, cfg.Location)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	seedSettings(ctx, adminService, cfg.PolicyFile, log)

	// Redis queue
	redisClient, err := queue.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Could not connect to redis: %v", err)
	}
	defer redisClient.Close()
	reminderQueue := queue.NewRedisQueue(redisClient, "")

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(registry)

	// Delivery
	var (
		deliverer reminder.Deliverer
		bot       *telebot.Bot
	)
	if cfg.TelegramToken != "" {
		bot, err = telegram.NewBot(cfg.TelegramToken)
		if err != nil {
			log.Fatalf("Could not create Telegram bot: %v", err)
		}
		bot.OnError = func(err error, c telebot.Context) {
			entry := log.WithError(err)
			if c != nil && c.Chat() != nil {
				entry = entry.WithField("chat_id", c.Chat().ID)
			}
			entry.Error("Telegram handler error")
		}
		telegram.NewMemberHandlers(projectRepo, base).Register(ctx, bot)
		deliverer = telegram.NewReminderSender(telegram.NewTelebotAdapter(bot), base)
		log.Info("Telegram delivery enabled.")
	} else {
		deliverer = telegram.NewLogDeliverer(base)
		log.Warn("TELEGRAM_TOKEN is not set, reminders will only be logged.")
	}
	worker := queue.NewWorker(reminderQueue, deliverer, cfg.ReminderMaxAttempts, appMetrics, base)

	// Lifecycle
	manager := app.NewManager(settingsRepo, projectRepo, cycleRepo, reminderLogs, reminderQueue, appMetrics, base, cfg.Location)
	runner := app.NewBatchRunner(manager, cfg.BatchWorkers)
	lifecycleScheduler := scheduler.NewLifecycleScheduler(runner, reminderQueue, base, scheduler.Specs{
		Generate:           cfg.CronSpecGenerate,
		Archive:            cfg.CronSpecArchive,
		Reminders:          cfg.CronSpecReminders,
		ScheduledReminders: cfg.CronSpecScheduledReminders,
	}, cfg.Location)
	if err := lifecycleScheduler.Start(); err != nil {
		log.Fatalf("Could not start scheduler: %v", err)
	}

	opsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           newOpsRouter(registry, db, redisClient),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infof("Ops endpoint listening on %s", cfg.MetricsAddr)
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Ops endpoint failed: %v", err)
		}
	}()

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		_ = worker.Run(ctx)
	}()
	if bot != nil {
		go bot.Start()
	}

	log.Info("Application setup complete. Scheduler, worker and ops endpoint are running.")
	<-ctx.Done()

	log.Info("Shutting down application...")
	lifecycleScheduler.Stop()
	if bot != nil {
		bot.Stop()
	}
	<-workerDone
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Ops endpoint shutdown: %v", err)
	}
	log.Info("Application shut down gracefully.")
}

// seedSettings applies the policy file, if any, to the settings singleton. Without a
// policy file a missing singleton is only reported; passes skip until it exists.
func seedSettings(ctx context.Context, admin *app.AdminService, policyFile string, log *logrus.Entry) {
	if policyFile == "" {
		if _, err := admin.CurrentConfig(ctx); errors.Is(err, settings.ErrSettingsNotFound) {
			log.Warn("Lifecycle settings are not configured; run `cyclectl config set` or set POLICY_FILE.")
		}
		return
	}
	u, err := config.LoadPolicyFile(policyFile)
	if err != nil {
		log.Fatalf("Could not read policy file: %v", err)
	}
	res, err := admin.UpdateConfig(ctx, u)
	if err != nil {
		log.Fatalf("Could not apply policy file: %v", err)
	}
	if len(res.ValidationErrors) > 0 {
		log.Fatalf("Policy file rejected: %v", res.ValidationErrors)
	}
	log.WithField("created", res.Created).Infof("Lifecycle settings seeded from %s", policyFile)
}
