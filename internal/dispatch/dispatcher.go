// Package dispatch routes inbound webhook messages: audio kicks off the
// transcription pipeline, text is matched against the user's pending
// confirmation, anything else is ignored.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"github.com/payasgoyal/voicenote-bridge/internal/conversation"
	"github.com/payasgoyal/voicenote-bridge/internal/eventlog"
	"github.com/payasgoyal/voicenote-bridge/internal/metrics"
	"github.com/payasgoyal/voicenote-bridge/internal/transcribe"
	"github.com/payasgoyal/voicenote-bridge/internal/whatsapp"
)

// Platform is the messaging-platform surface the dispatcher needs: outbound
// sends and media resolution for inbound audio.
type Platform interface {
	SendText(ctx context.Context, to, body string) error
	GetMediaURL(ctx context.Context, mediaID string) (string, error)
	DownloadMedia(ctx context.Context, mediaURL string) ([]byte, error)
}

// Submitter submits audio to the transcription backend.
type Submitter interface {
	Submit(ctx context.Context, audio []byte, filename string) (string, error)
}

// StatusPoller polls a submitted job until a terminal result.
type StatusPoller interface {
	PollUntilDone(ctx context.Context, jobID string) transcribe.Result
}

// Dispatcher classifies inbound messages and drives the audio pipeline.
// Every failure in the pipeline is contained here: the user gets exactly one
// apologetic message, no state-table entry is left behind, and nothing
// propagates to the webhook handler.
type Dispatcher struct {
	platform  Platform
	submitter Submitter
	poller    StatusPoller
	machine   *conversation.Machine
	eventLog  *eventlog.Logger
	logger    *log.Logger
}

// New creates a dispatcher.
func New(platform Platform, submitter Submitter, poller StatusPoller, machine *conversation.Machine, el *eventlog.Logger, logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		platform:  platform,
		submitter: submitter,
		poller:    poller,
		machine:   machine,
		eventLog:  el,
		logger:    logger,
	}
}

// Handle processes one inbound message. It is called on its own goroutine
// per message; blocking on the poll only delays this message, not others.
func (d *Dispatcher) Handle(ctx context.Context, msg *whatsapp.Message) {
	msgID := msg.ID
	if msgID == "" {
		msgID = uuid.New().String()
	}
	metrics.MessagesReceived.WithLabelValues(msg.Type).Inc()
	d.eventLog.LogAsync(msg.From, eventlog.EventMessageReceived, map[string]any{
		"message_id": msgID,
		"type":       msg.Type,
	})

	switch msg.Type {
	case "audio":
		if msg.Audio == nil || msg.Audio.ID == "" {
			d.logger.Printf("dispatch: audio message %s from %s has no media ID", msgID, msg.From)
			d.reportFailure(msg.From, "Sorry, something went wrong. Please try again.")
			return
		}
		d.handleAudio(ctx, msgID, msg.From, msg.Audio.ID)

	case "text":
		if msg.Text == nil {
			return
		}
		d.machine.HandleReply(ctx, msg.From, msg.Text.Body)

	default:
		// Images, stickers, reactions, location - out of scope. No reply,
		// no state change.
		d.logger.Printf("dispatch: ignoring message %s of type %q from %s", msgID, msg.Type, msg.From)
	}
}

// handleAudio runs the full audio pipeline: resolve media, download, submit,
// poll, then hand the result to the confirmation machine.
func (d *Dispatcher) handleAudio(ctx context.Context, msgID, from, audioID string) {
	d.logger.Printf("dispatch: received audio message %s (media %s) from %s", msgID, audioID, from)

	mediaURL, err := d.platform.GetMediaURL(ctx, audioID)
	if err != nil {
		d.failAudio(ctx, from, msgID, fmt.Errorf("could not retrieve media URL: %w", err))
		return
	}

	audio, err := d.platform.DownloadMedia(ctx, mediaURL)
	if err != nil {
		d.failAudio(ctx, from, msgID, fmt.Errorf("could not download media: %w", err))
		return
	}
	d.eventLog.LogAsync(from, eventlog.EventMediaResolved, map[string]any{
		"message_id": msgID,
		"media_id":   audioID,
		"bytes":      len(audio),
	})

	start := time.Now()
	jobID, err := d.submitter.Submit(ctx, audio, audioID+".ogg")
	if err != nil {
		d.failAudio(ctx, from, msgID, fmt.Errorf("could not submit transcription job: %w", err))
		return
	}
	d.logger.Printf("dispatch: transcription job %s started for message %s", jobID, msgID)
	d.eventLog.LogAsync(from, eventlog.EventJobSubmitted, map[string]any{
		"message_id": msgID,
		"job_id":     jobID,
	})

	result := d.poller.PollUntilDone(ctx, jobID)
	metrics.TranscriptionDuration.Observe(time.Since(start).Seconds())
	metrics.TranscriptionJobs.WithLabelValues(string(result.Status)).Inc()

	if !result.Succeeded() {
		d.logger.Printf("dispatch: job %s for message %s ended without a transcription: %s (%s)",
			jobID, msgID, result.Status, result.Reason)
		d.eventLog.LogAsync(from, eventlog.EventJobFailed, map[string]any{
			"message_id": msgID,
			"job_id":     jobID,
			"status":     string(result.Status),
			"reason":     result.Reason,
		})
		d.reportFailure(from, "Sorry, I couldn't understand the audio. Please try again.")
		return
	}

	d.logger.Printf("dispatch: transcription result for message %s: %q", msgID, result.Text)
	d.eventLog.LogAsync(from, eventlog.EventJobCompleted, map[string]any{
		"message_id": msgID,
		"job_id":     jobID,
	})
	d.machine.BeginConfirmation(ctx, from, result.Text)
}

// failAudio handles a pipeline error before a terminal poll result: log,
// capture, tell the user once. No state-table entry exists at this point.
func (d *Dispatcher) failAudio(ctx context.Context, from, msgID string, err error) {
	d.logger.Printf("dispatch: failed to process audio message %s from %s: %v", msgID, from, err)
	sentry.CaptureException(err)
	d.eventLog.LogAsync(from, eventlog.EventProcessingFailed, map[string]any{
		"message_id": msgID,
		"error":      err.Error(),
	})
	d.reportFailure(from, "Sorry, something went wrong. Please try again.")
}

// reportFailure sends a single failure message without blocking the caller.
func (d *Dispatcher) reportFailure(from, body string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := d.platform.SendText(ctx, from, body); err != nil {
			d.logger.Printf("dispatch: failed to send failure message to %s: %v", from, err)
		}
	}()
}
