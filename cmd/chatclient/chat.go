package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/whisper/chat-client/internal/chat"
	"github.com/whisper/chat-client/internal/config"
	"github.com/whisper/chat-client/internal/messaging"
	"github.com/whisper/chat-client/internal/metrics"
	"github.com/whisper/chat-client/internal/session"
	"github.com/whisper/chat-client/internal/tui"
)

// runChat runs the interactive terminal client, plus the metrics listener
// when one is configured.
func runChat(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, logFile, err := setupLogger(cfg.Log, true)
	if err != nil {
		return err
	}
	defer logFile.Close()

	store, err := openTokenStore(cfg.Token)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	view := tui.NewProgramView()
	var notifiers []session.Notifier
	if cfg.UI.Bell {
		notifiers = append(notifiers, tui.NewBell(os.Stderr))
	}

	var sess *session.Session
	if cfg.NATS.URL != "" {
		natsCfg := messaging.DefaultNATSConfig()
		natsCfg.URL = cfg.NATS.URL
		nc, err := messaging.NewNATSClient(natsCfg, logger)
		if err != nil {
			logger.Warn().Err(err).Str("url", cfg.NATS.URL).Msg("[chatclient] nats unavailable, notifications disabled")
		} else {
			defer func() {
				if err := nc.Flush(); err != nil {
					logger.Warn().Err(err).Msg("[chatclient] nats flush failed")
				}
				nc.Close()
			}()
			notifiers = append(notifiers, messaging.NewNotifier(nc, func() string { return sess.Username() }, logger))
		}
	}

	sess = newSession(cfg, view, store, logger, notifiers...)
	defer sess.Close()

	picker, err := chat.LoadStickers()
	if err != nil {
		logger.Warn().Err(err).Msg("[chatclient] stickers unavailable")
	}

	model := tui.New(sess, tui.Config{
		NoticeTimeout: cfg.UI.NoticeTimeout,
		Scrollback:    cfg.UI.Scrollback,
	}, picker, logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithReportFocus(), tea.WithContext(gctx))
	view.Attach(p)

	g.Go(func() error {
		defer cancel()
		defer view.Attach(nil)
		_, err := p.Run()
		if err != nil && gctx.Err() != nil {
			return nil
		}
		return err
	})
	if cfg.Metrics.Addr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.Metrics, logger)
		})
	}

	logger.Info().Str("server", cfg.ServerURL).Str("session", sess.ID()).Msg("[chatclient] started")
	return g.Wait()
}

// serveMetrics serves the metrics router until ctx is done.
func serveMetrics(ctx context.Context, cfg config.MetricsConfig, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           metrics.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("[metrics] listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			logger.Error().Err(err).Msg("[metrics] shutdown error")
		}
		return nil
	}
}
