package main

import (
	"fmt"
	"os"
	"strconv"

	"billing_cycle_bot/internal/app"
	"billing_cycle_bot/internal/domain/reminder"
	"billing_cycle_bot/internal/infra/config"
	idb "billing_cycle_bot/internal/infra/database"
	"billing_cycle_bot/internal/infra/logger"
	"billing_cycle_bot/internal/infra/queue"
	"billing_cycle_bot/internal/infra/telegram"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	root, c := newRootCmd()
	err := root.Execute()
	c.close()
	if err != nil {
		os.Exit(1)
	}
}

// env is everything a command needs, opened once per invocation.
type env struct {
	cfg      *config.AppConfig
	db       *idb.DB
	redis    *redis.Client
	projects *idb.ProjectRepository
	cycles   *idb.CycleRepository
	logs     *idb.ReminderLogRepository
	admin    *app.AdminService
	manager  *app.Manager
	runner   *app.BatchRunner
}

func openEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	// Logs go to stderr so command output can be piped.
	logger.InitWithOutput(cfg, "cyclectl", os.Stderr)
	base := logrus.NewEntry(logger.Log)

	db, err := idb.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := idb.Migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	e := &env{
		cfg:      cfg,
		db:       db,
		projects: idb.NewProjectRepository(db),
		cycles:   idb.NewCycleRepository(db),
		logs:     idb.NewReminderLogRepository(db),
	}
	settingsRepo := idb.NewSettingsRepository(db)

	var dispatcher reminder.Dispatcher
	if cfg.RedisURL != "" {
		e.redis, err = queue.NewRedisClient(cfg.RedisURL)
		if err != nil {
			db.Close()
			return nil, err
		}
		dispatcher = queue.NewRedisQueue(e.redis, "")
	} else {
		dispatcher = queue.NewInlineDispatcher(newDeliverer(cfg, base), base)
	}

	e.admin = app.NewAdminService(settingsRepo, e.projects, e.cycles, base, cfg.Location)
	e.manager = app.NewManager(settingsRepo, e.projects, e.cycles, e.logs, dispatcher, nil, base, cfg.Location)
	e.runner = app.NewBatchRunner(e.manager, cfg.BatchWorkers)
	return e, nil
}

func newDeliverer(cfg *config.AppConfig, base *logrus.Entry) reminder.Deliverer {
	if cfg.TelegramToken == "" {
		return telegram.NewLogDeliverer(base)
	}
	bot, err := telegram.NewBot(cfg.TelegramToken)
	if err != nil {
		base.Warnf("Could not create Telegram bot, reminders will only be logged: %v", err)
		return telegram.NewLogDeliverer(base)
	}
	return telegram.NewReminderSender(telegram.NewTelebotAdapter(bot), base)
}

func (e *env) close() {
	if e.redis != nil {
		e.redis.Close()
	}
	e.db.Close()
}

type cli struct {
	env *env
}

// newRootCmd builds the command tree. The environment is opened lazily by the first
// command that runs; callers release it with cli.close.
func newRootCmd() (*cobra.Command, *cli) {
	c := &cli{}
	root := &cobra.Command{
		Use:          "cyclectl",
		Short:        "Administer billing cycles of shared subscriptions",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			c.env = e
			return nil
		},
	}
	root.AddCommand(c.configCmd(), c.cycleCmd(), c.runCmd(), c.statsCmd(), c.projectCmd(), c.paymentCmd())
	return root, c
}

func (c *cli) close() {
	if c.env != nil {
		c.env.close()
		c.env = nil
	}
}

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s ID %q", what, s)
	}
	return id, nil
}

func printValidation(cmd *cobra.Command, errs []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Settings are invalid:")
	for _, e := range errs {
		fmt.Fprintf(out, "  - %s\n", e)
	}
	return fmt.Errorf("%d validation error(s)", len(errs))
}
