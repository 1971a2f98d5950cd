// Package metrics defines the Prometheus collectors shared across the
// bridge. Collectors are registered with the default registry at init time
// and exposed by the router's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesReceived counts inbound webhook messages by declared type.
	MessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicenote_messages_received_total",
		Help: "Inbound webhook messages by type",
	}, []string{"type"})

	// TranscriptionJobs counts transcription jobs by terminal status.
	TranscriptionJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicenote_transcription_jobs_total",
		Help: "Transcription jobs by terminal status",
	}, []string{"status"})

	// PollAttempts counts individual status queries against the
	// transcription backend.
	PollAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicenote_poll_attempts_total",
		Help: "Status queries issued while polling transcription jobs",
	})

	// TranscriptionDuration measures submit-to-terminal-result latency.
	TranscriptionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voicenote_transcription_duration_seconds",
		Help:    "Time from job submission to terminal poll result",
		Buckets: []float64{1, 3, 5, 10, 20, 30, 60, 90},
	})

	// OutboundSends counts WhatsApp send attempts by outcome.
	OutboundSends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicenote_outbound_sends_total",
		Help: "Outbound WhatsApp message sends by outcome",
	}, []string{"status"})

	// Confirmations counts confirmation resolutions by outcome.
	Confirmations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicenote_confirmations_total",
		Help: "Pending confirmation resolutions by outcome",
	}, []string{"outcome"})
)
