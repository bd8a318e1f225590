package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/limbopet/brain/internal/config"
	"github.com/limbopet/brain/internal/generator"
	"github.com/limbopet/brain/internal/model"
	"github.com/limbopet/brain/internal/ratelimit"
)

const defaultConfigFile = "limbopet-brain.yaml"

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "limbopet-brain",
	Short: "Local brain for LIMBOPET pets",
	Long: "limbopet-brain polls the LIMBOPET brain job queue, writes each job's result " +
		"with a mock or remote LLM generator, and submits it back.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Variables already set in the environment win over .env entries.
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: LIMBOPET_BRAIN_CONFIG env var or ./"+defaultConfigFile+" if present)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// resolveConfigPath picks the config file.
// Priority: explicit path > LIMBOPET_BRAIN_CONFIG > ./limbopet-brain.yaml if it
// exists > none (defaults and environment only).
func resolveConfigPath(path string, getenv config.Getenv, exists func(string) bool) string {
	if path != "" {
		return path
	}
	if env := getenv("LIMBOPET_BRAIN_CONFIG"); env != "" {
		return env
	}
	if exists(defaultConfigFile) {
		return defaultConfigFile
	}
	return ""
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func loadConfig(path string) (*config.Config, error) {
	return config.Load(resolveConfigPath(path, os.Getenv, fileExists), os.Getenv)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

// buildGenerator resolves mode and model against cfg and applies the
// configured rate limit.
func buildGenerator(cfg *config.Config, mode, modelName string, logger *slog.Logger) (model.Generator, config.GeneratorConfig, error) {
	gc, err := cfg.Generator(mode, modelName)
	if err != nil {
		return nil, gc, err
	}
	gen, err := generator.New(gc, nil)
	if err != nil {
		return nil, gc, err
	}
	return ratelimit.Wrap(gen, cfg.RateLimit.MinDelay, logger), gc, nil
}
