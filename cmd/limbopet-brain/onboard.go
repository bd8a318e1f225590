package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/limbopet/brain/internal/onboard"
)

var (
	onboardAPIURL         string
	onboardEmail          string
	onboardPetName        string
	onboardPetDescription string
	onboardMode           string
	onboardModel          string
	onboardEnvFile        string
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Create a dev user and pet, then write credentials to .env",
	Long: "Beginner onboarding: logs in to a dev LIMBOPET server, creates a pet, and " +
		"stores the pet's API key and the chosen generator settings in a .env file. " +
		"Missing values are prompted for when stdin is a terminal.",
	Args: cobra.NoArgs,
	RunE: runOnboard,
}

func init() {
	f := onboardCmd.Flags()
	f.StringVar(&onboardAPIURL, "api-url", "", "LIMBOPET API base URL (default: LIMBOPET_API_URL or http://localhost:3001/api/v1)")
	f.StringVar(&onboardEmail, "email", "", "email for dev login (default: LIMBOPET_EMAIL)")
	f.StringVar(&onboardPetName, "pet-name", "", "pet name (default: LIMBOPET_PET_NAME)")
	f.StringVar(&onboardPetDescription, "pet-description", "", "pet description (default: LIMBOPET_PET_DESCRIPTION)")
	f.StringVar(&onboardMode, "mode", "", "generator mode to store (default: LIMBOPET_MODE)")
	f.StringVar(&onboardModel, "model", "", "model to store for the chosen provider (default: LIMBOPET_MODEL)")
	f.StringVar(&onboardEnvFile, "env-file", "", "dotenv file to update (default: LIMBOPET_ENV_FILE or ./.env)")
	rootCmd.AddCommand(onboardCmd)
}

func runOnboard(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	opts := onboard.Options{
		APIURL:  onboardAPIURL,
		Email:   onboardEmail,
		PetName: onboardPetName,
		Mode:    onboardMode,
		EnvFile: onboardEnvFile,
	}
	if cmd.Flags().Changed("pet-description") {
		opts.PetDescription = &onboardPetDescription
	}
	if cmd.Flags().Changed("model") {
		opts.Model = &onboardModel
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	o := onboard.New(
		&http.Client{Timeout: 30 * time.Second},
		onboard.DefaultResolver(os.Stdin, os.Stdout),
		os.Getenv,
		logger,
	)
	res, err := o.Run(ctx, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "✅ onboard complete")
	fmt.Fprintf(out, "- pet_id: %s\n", res.PetID)
	fmt.Fprintf(out, "- wrote: %s to %s\n", strings.Join(res.Updated, " / "), res.EnvFile)
	return nil
}
