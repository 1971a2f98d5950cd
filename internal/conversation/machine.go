package conversation

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/payasgoyal/voicenote-bridge/internal/eventlog"
	"github.com/payasgoyal/voicenote-bridge/internal/metrics"
)

// Sender sends a plain-text message to a user.
type Sender interface {
	SendText(ctx context.Context, to, body string) error
}

// Saver persists a confirmed transcription.
type Saver interface {
	SaveTranscription(ctx context.Context, userID, text string) error
}

// Machine drives per-user confirmation state. Transitions mutate the state
// table synchronously; outbound acknowledgments are fired on a goroutine and
// never gate a transition.
type Machine struct {
	table    *StateTable
	sender   Sender
	saver    Saver
	eventLog *eventlog.Logger
	logger   *log.Logger

	yesToken string
	noToken  string
}

// MachineConfig holds configuration for the confirmation machine.
type MachineConfig struct {
	YesToken string // affirmative reply token (default "Y")
	NoToken  string // negative reply token (default "N")
}

// NewMachine creates a confirmation machine over the given state table.
func NewMachine(cfg MachineConfig, table *StateTable, sender Sender, saver Saver, el *eventlog.Logger, logger *log.Logger) *Machine {
	yes := strings.ToUpper(strings.TrimSpace(cfg.YesToken))
	if yes == "" {
		yes = "Y"
	}
	no := strings.ToUpper(strings.TrimSpace(cfg.NoToken))
	if no == "" {
		no = "N"
	}
	return &Machine{
		table:    table,
		sender:   sender,
		saver:    saver,
		eventLog: el,
		logger:   logger,
		yesToken: yes,
		noToken:  no,
	}
}

// BeginConfirmation stores a successful transcription as pending and prompts
// the user for confirmation. Any prior pending entry for the user is
// silently overwritten.
func (m *Machine) BeginConfirmation(ctx context.Context, userID, text string) {
	m.table.Set(PendingConfirmation{
		UserID:        userID,
		CandidateText: text,
		CreatedAt:     time.Now().UTC(),
	})

	prompt := fmt.Sprintf("Did you say:\n\n_\"%s\"_\n\nReply with *%s* to save or *%s* to cancel.",
		text, m.yesToken, m.noToken)
	m.sendAsync(userID, prompt)
	m.eventLog.LogAsync(userID, eventlog.EventConfirmationPrompted, map[string]any{"text": text})
}

// HandleReply interprets a text message against the user's pending state.
// With no pending confirmation the reply gets the generic greeting; with one
// pending, the affirmative token saves, the negative token discards, and
// anything else re-prompts while preserving the entry.
func (m *Machine) HandleReply(ctx context.Context, userID, body string) {
	reply := strings.ToUpper(strings.TrimSpace(body))

	if reply != m.yesToken && reply != m.noToken {
		if _, ok := m.table.Get(userID); !ok {
			m.sendAsync(userID, "Hi there! Send me an audio message, and I'll transcribe it for you.")
			return
		}
		metrics.Confirmations.WithLabelValues("reprompted").Inc()
		m.sendAsync(userID, fmt.Sprintf("Please reply with either *%s* (Yes) or *%s* (No).", m.yesToken, m.noToken))
		m.eventLog.LogAsync(userID, eventlog.EventRepromptSent, nil)
		return
	}

	// Take removes the entry atomically, so a duplicated or racing reply
	// finds nothing and falls through to the greeting instead of resolving
	// (and persisting) the same transcription twice.
	pending, ok := m.table.Take(userID)
	if !ok {
		m.sendAsync(userID, "Hi there! Send me an audio message, and I'll transcribe it for you.")
		return
	}

	if reply == m.yesToken {
		if err := m.saver.SaveTranscription(ctx, userID, pending.CandidateText); err != nil {
			m.logger.Printf("conversation: failed to save transcription for %s: %v", userID, err)
			sentry.CaptureException(err)
			metrics.Confirmations.WithLabelValues("save_failed").Inc()
			m.sendAsync(userID, "Sorry, something went wrong. Please try again.")
			return
		}
		metrics.Confirmations.WithLabelValues("saved").Inc()
		m.sendAsync(userID, "Transcription saved successfully!")
		m.eventLog.LogAsync(userID, eventlog.EventTranscriptionSaved, map[string]any{"text": pending.CandidateText})
		return
	}

	metrics.Confirmations.WithLabelValues("discarded").Inc()
	m.sendAsync(userID, "Ok, I've discarded the transcription.")
	m.eventLog.LogAsync(userID, eventlog.EventTranscriptionDiscarded, nil)
}

// sendAsync fires an outbound message without blocking the caller. Send
// failures are logged, not retried.
func (m *Machine) sendAsync(userID, body string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := m.sender.SendText(ctx, userID, body); err != nil {
			m.logger.Printf("conversation: failed to send message to %s: %v", userID, err)
		}
	}()
}
