package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/limbopet/brain/internal/config"
	"github.com/limbopet/brain/internal/notifier"
	"github.com/limbopet/brain/internal/queue"
	"github.com/limbopet/brain/internal/runner"
)

var (
	runMode         string
	runModel        string
	runOpenAIModel  string
	runPollInterval string
	runOnce         bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the brain loop (poll jobs, submit results)",
	Long:  "Poll the job queue and process jobs one at a time; blocks until SIGINT/SIGTERM unless --once is set.",
	Args:  cobra.NoArgs,
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runMode, "mode", "", "generator mode: mock, openai, xai, anthropic, google, proxy (default: LIMBOPET_MODE or mock)")
	runCmd.Flags().StringVar(&runModel, "model", "", "model name (default: LIMBOPET_MODEL or the provider default)")
	runCmd.Flags().StringVar(&runOpenAIModel, "openai-model", "", "deprecated alias for --model")
	runCmd.Flags().MarkHidden("openai-model")
	runCmd.Flags().StringVar(&runPollInterval, "poll-interval", "", "idle poll interval, e.g. 1s or 2.5 (default: LIMBOPET_POLL_INTERVAL or 1s)")
	runCmd.Flags().BoolVar(&runOnce, "once", false, "process at most one job and exit")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug).With("run_id", uuid.NewString())

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	interval := cfg.PollInterval
	if runPollInterval != "" {
		interval, err = config.ParseDuration(runPollInterval)
		if err != nil || interval <= 0 {
			logger.Error("invalid --poll-interval", "value", runPollInterval, "error", err)
			os.Exit(1)
		}
		if err := config.CheckBackoff(interval, cfg.MaxBackoff); err != nil {
			logger.Error("invalid --poll-interval", "value", runPollInterval, "error", err)
			os.Exit(1)
		}
	}

	if cfg.API.Key == "" {
		logger.Error("LIMBOPET_API_KEY is required")
		os.Exit(1)
	}

	modelName := runModel
	if modelName == "" {
		modelName = runOpenAIModel
	}
	gen, gc, err := buildGenerator(cfg, runMode, modelName, logger)
	if err != nil {
		logger.Error("failed to set up generator", "error", err)
		os.Exit(1)
	}

	logger.Info("config loaded",
		"api_url", cfg.API.URL,
		"mode", gc.Mode,
		"model", gc.Model,
		"poll_interval", interval.String(),
		"max_backoff", cfg.MaxBackoff.String(),
		"notification", cfg.Notification.Type,
	)

	client := queue.NewClient(cfg.API.URL, cfg.API.Key, &http.Client{Timeout: cfg.API.Timeout})
	n := notifier.New(cfg.Notification.Type, os.Stdout, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := runner.New(client, gen, n, interval, cfg.MaxBackoff, logger).Run(ctx, runOnce)
	if code != 0 {
		stop()
		os.Exit(code)
	}

	logger.Info("goodbye")
	return nil
}
