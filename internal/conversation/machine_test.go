package conversation

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"
)

type sentMessage struct {
	To   string
	Body string
}

// fakeSender records outbound messages on a channel so tests can wait for
// the fire-and-forget sends.
type fakeSender struct {
	ch chan sentMessage
}

func newFakeSender() *fakeSender {
	return &fakeSender{ch: make(chan sentMessage, 16)}
}

func (f *fakeSender) SendText(ctx context.Context, to, body string) error {
	f.ch <- sentMessage{To: to, Body: body}
	return nil
}

// waitForSend returns the next outbound message or fails the test.
func (f *fakeSender) waitForSend(t *testing.T) sentMessage {
	t.Helper()
	select {
	case m := <-f.ch:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outbound message")
		return sentMessage{}
	}
}

// assertNoMoreSends fails if another message arrives shortly after.
func (f *fakeSender) assertNoMoreSends(t *testing.T) {
	t.Helper()
	select {
	case m := <-f.ch:
		t.Fatalf("unexpected extra outbound message: %q to %s", m.Body, m.To)
	case <-time.After(100 * time.Millisecond):
	}
}

type fakeSaver struct {
	mu    sync.Mutex
	saved []sentMessage // To = user, Body = text
	err   error
}

func (f *fakeSaver) SaveTranscription(ctx context.Context, userID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, sentMessage{To: userID, Body: text})
	return nil
}

func (f *fakeSaver) savedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func newTestMachine(cfg MachineConfig) (*Machine, *StateTable, *fakeSender, *fakeSaver) {
	table := NewStateTable()
	sender := newFakeSender()
	saver := &fakeSaver{}
	logger := log.New(io.Discard, "", 0)
	m := NewMachine(cfg, table, sender, saver, nil, logger)
	return m, table, sender, saver
}

func TestBeginConfirmation(t *testing.T) {
	m, table, sender, _ := newTestMachine(MachineConfig{})
	ctx := context.Background()

	m.BeginConfirmation(ctx, "15551234567", "buy milk")

	pending, ok := table.Get("15551234567")
	if !ok {
		t.Fatal("expected a pending confirmation after BeginConfirmation")
	}
	if pending.CandidateText != "buy milk" {
		t.Errorf("CandidateText = %q, want %q", pending.CandidateText, "buy milk")
	}

	msg := sender.waitForSend(t)
	want := "Did you say:\n\n_\"buy milk\"_\n\nReply with *Y* to save or *N* to cancel."
	if msg.Body != want {
		t.Errorf("prompt = %q, want %q", msg.Body, want)
	}
	if msg.To != "15551234567" {
		t.Errorf("prompt sent to %s, want 15551234567", msg.To)
	}
	sender.assertNoMoreSends(t)
}

func TestBeginConfirmationOverwritesPending(t *testing.T) {
	m, table, sender, _ := newTestMachine(MachineConfig{})
	ctx := context.Background()

	m.BeginConfirmation(ctx, "user1", "first note")
	m.BeginConfirmation(ctx, "user1", "second note")

	if table.Len() != 1 {
		t.Errorf("table has %d entries, want 1 (last writer wins)", table.Len())
	}
	pending, _ := table.Get("user1")
	if pending.CandidateText != "second note" {
		t.Errorf("CandidateText = %q, want %q", pending.CandidateText, "second note")
	}

	// Both prompts still go out - one per audio message.
	sender.waitForSend(t)
	sender.waitForSend(t)
	sender.assertNoMoreSends(t)
}

func TestHandleReplySavesOnAffirmative(t *testing.T) {
	m, table, sender, saver := newTestMachine(MachineConfig{})
	ctx := context.Background()

	m.BeginConfirmation(ctx, "user1", "buy milk")
	sender.waitForSend(t) // prompt

	// Lowercase with surrounding whitespace still matches.
	m.HandleReply(ctx, "user1", "  y ")

	if saver.savedCount() != 1 {
		t.Fatalf("saved %d transcriptions, want 1", saver.savedCount())
	}
	if saver.saved[0].To != "user1" || saver.saved[0].Body != "buy milk" {
		t.Errorf("saved (%s, %q), want (user1, %q)", saver.saved[0].To, saver.saved[0].Body, "buy milk")
	}
	if _, ok := table.Get("user1"); ok {
		t.Error("pending entry should be removed after save")
	}

	msg := sender.waitForSend(t)
	if msg.Body != "Transcription saved successfully!" {
		t.Errorf("ack = %q, want save acknowledgment", msg.Body)
	}
	sender.assertNoMoreSends(t)
}

func TestHandleReplyDiscardsOnNegative(t *testing.T) {
	m, table, sender, saver := newTestMachine(MachineConfig{})
	ctx := context.Background()

	m.BeginConfirmation(ctx, "user1", "buy milk")
	sender.waitForSend(t) // prompt

	m.HandleReply(ctx, "user1", "n")

	if saver.savedCount() != 0 {
		t.Errorf("saved %d transcriptions, want 0", saver.savedCount())
	}
	if _, ok := table.Get("user1"); ok {
		t.Error("pending entry should be removed after discard")
	}

	msg := sender.waitForSend(t)
	if msg.Body != "Ok, I've discarded the transcription." {
		t.Errorf("ack = %q, want discard acknowledgment", msg.Body)
	}
	sender.assertNoMoreSends(t)
}

func TestHandleReplyRepromptsOnAmbiguous(t *testing.T) {
	m, table, sender, saver := newTestMachine(MachineConfig{})
	ctx := context.Background()

	m.BeginConfirmation(ctx, "user1", "buy milk")
	sender.waitForSend(t) // prompt

	m.HandleReply(ctx, "user1", "maybe?")

	// The pending entry is preserved unchanged.
	pending, ok := table.Get("user1")
	if !ok {
		t.Fatal("pending entry should survive an ambiguous reply")
	}
	if pending.CandidateText != "buy milk" {
		t.Errorf("CandidateText = %q, want %q", pending.CandidateText, "buy milk")
	}
	if saver.savedCount() != 0 {
		t.Errorf("saved %d transcriptions, want 0", saver.savedCount())
	}

	// Exactly one re-prompt.
	msg := sender.waitForSend(t)
	if msg.Body != "Please reply with either *Y* (Yes) or *N* (No)." {
		t.Errorf("reprompt = %q", msg.Body)
	}
	sender.assertNoMoreSends(t)
}

func TestHandleReplyGreetsWhenIdle(t *testing.T) {
	m, table, sender, saver := newTestMachine(MachineConfig{})
	ctx := context.Background()

	// Affirmative token with nothing pending is just free text.
	m.HandleReply(ctx, "user1", "Y")

	if saver.savedCount() != 0 {
		t.Errorf("saved %d transcriptions, want 0", saver.savedCount())
	}
	if table.Len() != 0 {
		t.Errorf("table has %d entries, want 0", table.Len())
	}

	msg := sender.waitForSend(t)
	if msg.Body != "Hi there! Send me an audio message, and I'll transcribe it for you." {
		t.Errorf("greeting = %q", msg.Body)
	}
	sender.assertNoMoreSends(t)
}

func TestHandleReplySaveFailure(t *testing.T) {
	m, table, sender, saver := newTestMachine(MachineConfig{})
	saver.err = fmt.Errorf("database unavailable")
	ctx := context.Background()

	m.BeginConfirmation(ctx, "user1", "buy milk")
	sender.waitForSend(t) // prompt

	m.HandleReply(ctx, "user1", "Y")

	if _, ok := table.Get("user1"); ok {
		t.Error("pending entry should be removed even when persistence fails")
	}
	msg := sender.waitForSend(t)
	if msg.Body != "Sorry, something went wrong. Please try again." {
		t.Errorf("failure message = %q", msg.Body)
	}
	sender.assertNoMoreSends(t)
}

func TestCustomTokens(t *testing.T) {
	m, table, sender, saver := newTestMachine(MachineConfig{YesToken: "ja", NoToken: "nee"})
	ctx := context.Background()

	m.BeginConfirmation(ctx, "user1", "koop melk")
	msg := sender.waitForSend(t)
	if msg.Body != "Did you say:\n\n_\"koop melk\"_\n\nReply with *JA* to save or *NEE* to cancel." {
		t.Errorf("prompt = %q", msg.Body)
	}

	// The default tokens no longer resolve the confirmation.
	m.HandleReply(ctx, "user1", "y")
	sender.waitForSend(t) // reprompt
	if _, ok := table.Get("user1"); !ok {
		t.Fatal("pending entry should survive a default-token reply under custom tokens")
	}

	m.HandleReply(ctx, "user1", "JA")
	sender.waitForSend(t) // save ack
	if saver.savedCount() != 1 {
		t.Errorf("saved %d transcriptions, want 1", saver.savedCount())
	}
}

func TestStateTableTakeRemovesEntry(t *testing.T) {
	table := NewStateTable()
	table.Set(PendingConfirmation{UserID: "user1", CandidateText: "buy milk"})

	p, ok := table.Take("user1")
	if !ok || p.CandidateText != "buy milk" {
		t.Fatalf("Take = (%+v, %v), want the pending entry", p, ok)
	}
	if _, ok := table.Take("user1"); ok {
		t.Error("second Take should find nothing")
	}
	if table.Len() != 0 {
		t.Errorf("table has %d entries, want 0", table.Len())
	}
}

func TestHandleReplyConcurrentAffirmatives(t *testing.T) {
	m, table, sender, saver := newTestMachine(MachineConfig{})
	ctx := context.Background()

	m.BeginConfirmation(ctx, "user1", "buy milk")
	sender.waitForSend(t) // prompt

	// Two racing affirmative replies resolve the entry at most once.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.HandleReply(ctx, "user1", "Y")
		}()
	}
	wg.Wait()

	if saver.savedCount() != 1 {
		t.Errorf("saved %d transcriptions, want exactly 1", saver.savedCount())
	}
	if _, ok := table.Get("user1"); ok {
		t.Error("pending entry should be removed")
	}

	// One save acknowledgment and one greeting for the losing reply.
	replies := map[string]int{}
	replies[sender.waitForSend(t).Body]++
	replies[sender.waitForSend(t).Body]++
	if replies["Transcription saved successfully!"] != 1 {
		t.Errorf("save acks = %d, want 1 (replies: %v)", replies["Transcription saved successfully!"], replies)
	}
	sender.assertNoMoreSends(t)
}

func TestStateTableConcurrentAccess(t *testing.T) {
	table := NewStateTable()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			user := fmt.Sprintf("user%d", n)
			table.Set(PendingConfirmation{UserID: user, CandidateText: "note"})
			table.Get(user)
			table.Delete(user)
		}(i)
	}
	wg.Wait()

	if table.Len() != 0 {
		t.Errorf("table has %d entries after concurrent churn, want 0", table.Len())
	}
}
