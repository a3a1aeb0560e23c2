package ws

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// DefaultHeartbeatInterval is how often an open session pings the server.
const DefaultHeartbeatInterval = 30 * time.Second

// Heartbeat periodically calls a send function until stopped.
type Heartbeat struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// StartHeartbeat begins a background goroutine that calls send once per
// interval. The first call happens one interval after start. Send errors are
// logged and do not stop the ticker; a broken transport is detected by the
// read loop.
func StartHeartbeat(clk clock.Clock, interval time.Duration, send func() error, logger zerolog.Logger) *Heartbeat {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	h := &Heartbeat{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	ticker := clk.Ticker(interval)

	go func() {
		defer close(h.done)
		defer ticker.Stop()

		for {
			select {
			case <-h.stop:
				return
			case <-ticker.C:
				// A stop that raced with the tick wins.
				select {
				case <-h.stop:
					return
				default:
				}
				if err := send(); err != nil {
					logger.Warn().Err(err).Msg("[heartbeat] ping failed")
				}
			}
		}
	}()
	return h
}

// Stop halts the heartbeat and waits for its goroutine to exit. It must not
// be called from within send.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() { close(h.stop) })
	<-h.done
}
