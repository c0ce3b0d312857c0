package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "listen-cli",
	Short: "Listen CLI - command-line client for the listen-api",
	Long: `listen-cli drives listening rooms on a listen-api server.

It covers room management, presence, the shared queue, live broadcasts,
and a follow mode that keeps a simulated player in step with a room.

Examples:
  # Rooms
  listen-cli room create --name "Friday mix" --user alice
  listen-cli room get friday-mix

  # Queue
  listen-cli queue add friday-mix --ref spotify:track:1 --title "Intro" --duration 212
  listen-cli queue start friday-mix

  # Follow a room as a listener
  listen-cli follow friday-mix --user bob --ws`,
	Version: version,
}

var (
	serverURL      string
	userID         string
	userName       string
	bearer         string
	requestTimeout time.Duration
	jsonOutput     bool
)

func init() {
	rootCmd.AddCommand(roomCmd)
	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(leaveCmd)
	rootCmd.AddCommand(heartbeatCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(liveCmd)
	rootCmd.AddCommand(followCmd)
	rootCmd.AddCommand(schemaCmd)

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("LISTEN_API_URL", "http://localhost:8190"), "listen-api base URL")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", os.Getenv("LISTEN_USER"), "Identity sent as X-User-ID")
	rootCmd.PersistentFlags().StringVar(&userName, "name", "", "Display name sent as X-User-Name")
	rootCmd.PersistentFlags().StringVar(&bearer, "token", os.Getenv("LISTEN_TOKEN"), "Bearer token (when the server has auth enabled)")
	rootCmd.PersistentFlags().DurationVar(&requestTimeout, "timeout", 10*time.Second, "Request timeout")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print raw JSON responses")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newClient() *apiClient {
	return newAPIClient(clientOptions{
		BaseURL:  serverURL,
		UserID:   userID,
		UserName: userName,
		Token:    bearer,
		Timeout:  requestTimeout,
	})
}
