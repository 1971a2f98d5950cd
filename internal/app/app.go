package app

import (
	"context"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/payasgoyal/voicenote-bridge/internal/conversation"
	"github.com/payasgoyal/voicenote-bridge/internal/dispatch"
	"github.com/payasgoyal/voicenote-bridge/internal/eventlog"
	"github.com/payasgoyal/voicenote-bridge/internal/httpapi"
	"github.com/payasgoyal/voicenote-bridge/internal/store"
	"github.com/payasgoyal/voicenote-bridge/internal/transcribe"
	"github.com/payasgoyal/voicenote-bridge/internal/whatsapp"
)

type App struct {
	cfg        Config
	logger     *log.Logger
	db         *pgxpool.Pool
	store      *store.Store
	eventLog   *eventlog.Logger
	dispatcher *dispatch.Dispatcher
	httpClient *http.Client // Shared HTTP client with connection pooling
}

func New(cfg Config, logger *log.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s := store.New(db)
	el := eventlog.New(db)

	// Migrations are applied externally by the CI deploy job (docker exec psql).
	// No automatic migration runner at startup.

	// Shared HTTP client with connection pooling. Keeps TCP connections
	// alive across Graph API sends and transcription status queries.
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	wa := whatsapp.NewClient(whatsapp.ClientConfig{
		Token:         cfg.WhatsAppToken,
		PhoneNumberID: cfg.WhatsAppPhoneNumberID,
		BaseURL:       cfg.GraphAPIBaseURL,
		HTTPClient:    httpClient,
	}, logger)

	submitter := transcribe.NewClient(transcribe.Config{
		BaseURL:    cfg.TranscriptionServiceURL,
		HTTPClient: httpClient,
	})
	poller := transcribe.NewPoller(transcribe.PollerConfig{
		BaseURL:     cfg.TranscriptionServiceURL,
		HTTPClient:  httpClient,
		Interval:    cfg.PollInterval,
		MaxAttempts: cfg.PollMaxAttempts,
	}, logger)

	machine := conversation.NewMachine(conversation.MachineConfig{
		YesToken: cfg.ConfirmYesToken,
		NoToken:  cfg.ConfirmNoToken,
	}, conversation.NewStateTable(), wa, s, el, logger)

	d := dispatch.New(wa, submitter, poller, machine, el, logger)

	return &App{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		store:      s,
		eventLog:   el,
		dispatcher: d,
		httpClient: httpClient,
	}, nil
}

func (a *App) Router(messages *httpapi.MessageRegistry) http.Handler {
	routerCfg := httpapi.RouterConfig{
		VerifyToken:    a.cfg.VerifyToken,
		AppSecret:      a.cfg.AppSecret,
		HandlerTimeout: a.cfg.HandlerTimeout(),
		MetricsEnabled: a.cfg.MetricsEnabled,
	}
	return httpapi.NewRouter(routerCfg, a.logger, a.dispatcher, a.store, messages)
}

func (a *App) Close() error {
	if a.db != nil {
		a.db.Close()
	}
	return nil
}
