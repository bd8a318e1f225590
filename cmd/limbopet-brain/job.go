package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/limbopet/brain/internal/queue"
)

var jobCmd = &cobra.Command{
	Use:   "job <id>",
	Short: "Fetch one job from the queue and print it as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runJob,
}

func init() {
	rootCmd.AddCommand(jobCmd)
}

func runJob(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.API.Key == "" {
		return fmt.Errorf("LIMBOPET_API_KEY is required")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	client := queue.NewClient(cfg.API.URL, cfg.API.Key, &http.Client{Timeout: cfg.API.Timeout})
	job, err := client.GetJob(ctx, args[0])
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job %s not found", args[0])
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(job)
}
