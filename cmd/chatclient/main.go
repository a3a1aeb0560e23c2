package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "chatclient",
	Short:         "Terminal client for the whisper chat service",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runChat,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive chat (the default command)",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

var (
	flagConfig      string
	flagServerURL   string
	flagTokenStore  string
	flagTokenPath   string
	flagLogLevel    string
	flagNATSURL     string
	flagMetricsAddr string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagConfig, "config", os.Getenv("CHAT_CONFIG"), "YAML config file (from env CHAT_CONFIG if set)")
	flags.StringVar(&flagServerURL, "server", "", "chat service base URL, e.g. http://localhost:8000")
	flags.StringVar(&flagTokenStore, "token-store", "", "where the access token is kept: memory, pebble or redis")
	flags.StringVar(&flagTokenPath, "token-path", "", "directory of the pebble token store")
	flags.StringVar(&flagLogLevel, "log-level", "", "debug, info, warn or error")
	flags.StringVar(&flagNATSURL, "nats-url", "", "publish incoming message notifications to this NATS server")
	flags.StringVar(&flagMetricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address")

	rootCmd.AddCommand(chatCmd, registerCmd, sendCmd, logoutCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("[chatclient] command failed")
	}
}
