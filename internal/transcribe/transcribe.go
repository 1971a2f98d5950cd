// Package transcribe talks to the external transcription service: it submits
// audio as a background job and polls the job until a terminal result.
package transcribe

// Status is the terminal outcome of a transcription job.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
)

// Result is the terminal outcome of polling a transcription job. Exactly one
// of Text (for StatusSucceeded) or Reason (for StatusFailed) is meaningful.
type Result struct {
	Status Status
	Text   string
	Reason string
}

// Succeeded reports whether the job produced a transcription.
func (r Result) Succeeded() bool {
	return r.Status == StatusSucceeded
}
