package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/limbopet/brain/internal/model"
)

var (
	generateType  string
	generateInput string
	generateMode  string
	generateModel string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run the generator once on a local input and print the result",
	Long: "Runs the configured generator for one job type without touching the queue. " +
		"--input takes a JSON object, or - to read it from stdin.",
	Example: `  limbopet-brain generate --type DIALOGUE --input '{"stats":{"mood":80}}'
  limbopet-brain generate --type VOTE_DECISION --mode openai --input - < vote.json`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringVarP(&generateType, "type", "t", "", "job type, e.g. DIALOGUE or DAILY_SUMMARY")
	f.StringVarP(&generateInput, "input", "i", "", "job input as a JSON object, or - for stdin")
	f.StringVar(&generateMode, "mode", "", "generator mode (default: configured mode)")
	f.StringVar(&generateModel, "model", "", "model name (default: configured model)")
	generateCmd.MarkFlagRequired("type")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	input, err := readInput(generateInput, cmd.InOrStdin())
	if err != nil {
		return err
	}

	gen, gc, err := buildGenerator(cfg, generateMode, generateModel, logger)
	if err != nil {
		return err
	}
	logger.Debug("generating", "mode", gc.Mode, "model", gc.Model, "job_type", generateType)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobType := model.JobType(strings.ToUpper(strings.TrimSpace(generateType)))
	result, err := gen.Generate(ctx, jobType, input)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(result)
}

// readInput decodes the --input value. Empty means an empty object.
func readInput(value string, stdin io.Reader) (map[string]any, error) {
	raw := []byte(value)
	if value == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		raw = b
	}
	input := map[string]any{}
	if strings.TrimSpace(string(raw)) == "" {
		return input, nil
	}
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("--input must be a JSON object: %w", err)
	}
	return input, nil
}
