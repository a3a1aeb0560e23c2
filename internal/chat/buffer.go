package chat

import "sync"

// DefaultTranscriptSize is the scrollback kept by the terminal view.
const DefaultTranscriptSize = 500

// Transcript stores the last N rendered messages. It is goroutine-safe and
// uses a ring buffer internally.
type Transcript struct {
	mu    sync.RWMutex
	items []Message
	pos   int
	count int
}

// NewTranscript creates an empty transcript holding at most size messages.
// A non-positive size falls back to DefaultTranscriptSize.
func NewTranscript(size int) *Transcript {
	if size <= 0 {
		size = DefaultTranscriptSize
	}
	return &Transcript{items: make([]Message, size)}
}

// Add appends a message. If the buffer is full, the oldest message is
// overwritten.
func (t *Transcript) Add(msg Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.items[t.pos] = msg
	t.pos = (t.pos + 1) % len(t.items)
	if t.count < len(t.items) {
		t.count++
	}
}

// Messages returns the retained messages in chronological order (oldest
// first). Returns an empty slice if nothing was added.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	size := len(t.items)
	result := make([]Message, t.count)
	// The oldest message is at position (pos - count) mod size.
	start := (t.pos - t.count + size) % size
	for i := 0; i < t.count; i++ {
		result[i] = t.items[(start+i)%size]
	}
	return result
}

// Len returns the number of retained messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}

// Reset drops every retained message.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.items {
		t.items[i] = Message{}
	}
	t.pos = 0
	t.count = 0
}
