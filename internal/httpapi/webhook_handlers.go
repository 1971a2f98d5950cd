package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/payasgoyal/voicenote-bridge/internal/whatsapp"
)

// maxWebhookBodySize caps inbound webhook payloads. Meta's envelopes are a
// few KB; anything larger is not a genuine notification.
const maxWebhookBodySize = 1 << 20

// defaultHandlerTimeout bounds a single message's processing when the
// router config does not carry a derived timeout. Covers the default
// polling budget (20 attempts at 3s) with headroom.
const defaultHandlerTimeout = 2 * time.Minute

// handleWebhookVerify implements Meta's webhook verification handshake:
// echo hub.challenge when hub.mode is "subscribe" and the verify token
// matches.
func (r *Router) handleWebhookVerify(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode == "" || token == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if mode != "subscribe" || token != r.cfg.VerifyToken {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	r.logger.Printf("webhook: verification handshake succeeded")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

// handleWebhookEvent receives message notifications from Meta. The raw body
// is read first so the signature can be verified over the exact bytes, then
// the message is handed off to a goroutine and the request acknowledged
// immediately - Meta redelivers events that are not answered promptly.
func (r *Router) handleWebhookEvent(w http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(io.LimitReader(req.Body, maxWebhookBodySize))
	if err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}

	if r.cfg.AppSecret != "" {
		if err := verifySignature(body, req.Header.Get("X-Hub-Signature-256"), r.cfg.AppSecret); err != nil {
			r.logger.Printf("webhook: rejected request: %v", err)
			w.WriteHeader(http.StatusForbidden)
			return
		}
	}

	var payload whatsapp.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		r.logger.Printf("webhook: malformed payload: %v", err)
		w.WriteHeader(http.StatusForbidden)
		return
	}

	value := payload.FirstChangeValue()
	if value == nil {
		// Not a webhook notification at all: no entry or change value.
		w.WriteHeader(http.StatusNotFound)
		return
	}

	msg := payload.FirstMessage()
	if msg == nil {
		// Delivery/read status updates and other non-message notifications.
		// Acknowledged so the platform does not redeliver them.
		w.WriteHeader(http.StatusOK)
		return
	}

	if !r.messages.Add() {
		// Draining for shutdown; ack so Meta redelivers to the next instance.
		r.logger.Printf("webhook: draining, dropping message %s", msg.ID)
		w.WriteHeader(http.StatusOK)
		return
	}

	go func() {
		defer r.messages.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.handlerTimeout())
		defer cancel()
		r.dispatcher.Handle(ctx, msg)
	}()

	w.WriteHeader(http.StatusOK)
}
