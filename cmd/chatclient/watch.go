package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/whisper/chat-client/internal/messaging"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the message notifications a running chat publishes over NATS",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&flagUser, "user", "u", "", "whose notifications to print")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.NATS.URL == "" {
		return errors.New("watch needs --nats-url or nats.url in the config")
	}
	user := strings.TrimSpace(flagUser)
	if user == "" {
		return errors.New("watch needs --user")
	}
	logger, _, err := setupLogger(cfg.Log, false)
	if err != nil {
		return err
	}

	natsCfg := messaging.DefaultNATSConfig()
	natsCfg.URL = cfg.NATS.URL
	natsCfg.Name = "whisper-watch"
	nc, err := messaging.NewNATSClient(natsCfg, logger)
	if err != nil {
		return err
	}
	defer nc.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	subject := messaging.NotifySubject(user)
	err = nc.Subscribe(subject, func(data []byte) {
		n, err := messaging.DecodeNotification(data)
		if err != nil {
			logger.Warn().Err(err).Msg("[watch] skipping notification")
			return
		}
		printNotification(out, n)
	})
	if err != nil {
		return err
	}
	// The subscription is live on the server once Flush returns.
	if err := nc.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	logger.Info().Str("subject", subject).Msg("[watch] listening")

	<-ctx.Done()
	return nc.Unsubscribe(subject)
}

func printNotification(w io.Writer, n messaging.Notification) {
	var prefix string
	if !n.At.IsZero() {
		prefix = n.At.Local().Format("15:04") + " "
	}
	text := n.Text
	if n.Image {
		text = strings.TrimSpace("[image] " + text)
	}
	fmt.Fprintf(w, "%s%s: %s\n", prefix, n.From, text)
}
