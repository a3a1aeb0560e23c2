package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// callQueue runs controller calls in the order Update issued them.
// bubbletea runs each command on its own goroutine, so a command only
// drains the queue: whichever command gets there first performs every
// pending call, and each command then waits for its own call's result.
type callQueue struct {
	mu      sync.Mutex
	pending []*queuedCall
	running bool
}

type queuedCall struct {
	fn   func() tea.Msg
	done chan tea.Msg
}

func newCallQueue() *callQueue {
	return &callQueue{}
}

// push enqueues fn and returns the command that runs it. It must be called
// from Update so the queue order matches the order of user input.
func (q *callQueue) push(fn func() tea.Msg) tea.Cmd {
	c := &queuedCall{fn: fn, done: make(chan tea.Msg, 1)}
	q.mu.Lock()
	q.pending = append(q.pending, c)
	q.mu.Unlock()
	return func() tea.Msg {
		q.drain()
		return <-c.done
	}
}

func (q *callQueue) drain() {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	for len(q.pending) > 0 {
		c := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()
		c.done <- c.fn()
		q.mu.Lock()
	}
	q.running = false
	q.mu.Unlock()
}
