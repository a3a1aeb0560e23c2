package chat

import (
	"fmt"
	"sync"
	"testing"
)

func TestAddAndMessages(t *testing.T) {
	tr := NewTranscript(5)

	tr.Add(Message{From: "a", Text: "hello"})
	tr.Add(Message{From: "b", Text: "hi"})
	tr.Add(Message{From: "a", Text: "how are you?"})

	msgs := tr.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Text != "hello" {
		t.Errorf("expected first message 'hello', got %q", msgs[0].Text)
	}
	if msgs[1].Text != "hi" {
		t.Errorf("expected second message 'hi', got %q", msgs[1].Text)
	}
	if msgs[2].Text != "how are you?" {
		t.Errorf("expected third message 'how are you?', got %q", msgs[2].Text)
	}
}

func TestRingBufferWraparound(t *testing.T) {
	tr := NewTranscript(5)

	// Add 7 messages; the buffer holds only 5.
	for i := 1; i <= 7; i++ {
		tr.Add(Message{From: "sender", Text: fmt.Sprintf("msg-%d", i)})
	}

	msgs := tr.Messages()
	if len(msgs) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(msgs))
	}

	// Should contain messages 3 through 7 in order.
	for i, msg := range msgs {
		expected := fmt.Sprintf("msg-%d", i+3)
		if msg.Text != expected {
			t.Errorf("index %d: expected %q, got %q", i, expected, msg.Text)
		}
	}
}

func TestEmptyTranscript(t *testing.T) {
	tr := NewTranscript(0)

	msgs := tr.Messages()
	if msgs == nil {
		t.Fatal("expected non-nil empty slice, got nil")
	}
	if len(msgs) != 0 {
		t.Fatalf("expected 0 messages, got %d", len(msgs))
	}
	if len(tr.items) != DefaultTranscriptSize {
		t.Fatalf("expected default capacity %d, got %d", DefaultTranscriptSize, len(tr.items))
	}
}

func TestReset(t *testing.T) {
	tr := NewTranscript(5)

	tr.Add(Message{From: "a", Text: "hello"})
	tr.Add(Message{From: "b", Text: "hi"})

	tr.Reset()

	if tr.Len() != 0 {
		t.Fatalf("expected 0 messages after reset, got %d", tr.Len())
	}
	tr.Add(Message{From: "c", Text: "again"})
	msgs := tr.Messages()
	if len(msgs) != 1 || msgs[0].Text != "again" {
		t.Fatalf("unexpected messages after reset: %+v", msgs)
	}
}

func TestExactlyCapacity(t *testing.T) {
	tr := NewTranscript(5)

	for i := 1; i <= 5; i++ {
		tr.Add(Message{From: "sender", Text: fmt.Sprintf("msg-%d", i)})
	}

	msgs := tr.Messages()
	if len(msgs) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(msgs))
	}

	for i, msg := range msgs {
		expected := fmt.Sprintf("msg-%d", i+1)
		if msg.Text != expected {
			t.Errorf("index %d: expected %q, got %q", i, expected, msg.Text)
		}
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTranscript(5)
	goroutines := 100
	messagesPerGoroutine := 20

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for g := 0; g < goroutines; g++ {
		go func(id int) {
			defer wg.Done()
			for m := 0; m < messagesPerGoroutine; m++ {
				tr.Add(Message{
					From: fmt.Sprintf("sender-%d", id),
					Text: fmt.Sprintf("g%d-m%d", id, m),
				})
				// Interleave reads to stress the RWMutex.
				_ = tr.Messages()
			}
		}(g)
	}

	wg.Wait()

	if n := len(tr.Messages()); n != 5 {
		t.Fatalf("expected 5 messages after concurrent writes, got %d", n)
	}
}
