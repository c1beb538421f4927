// Package app assembles and runs the Iskra bot: storage, Telegram transport,
// completion provider, access gate, orchestrator, payments, and the optional
// HTTP server.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/iskralabs/iskra/internal/iskra/gate"
	"github.com/iskralabs/iskra/internal/iskra/mood"
	"github.com/iskralabs/iskra/internal/iskra/nlp"
	"github.com/iskralabs/iskra/internal/iskra/payments"
	"github.com/iskralabs/iskra/internal/iskra/persona"
	"github.com/iskralabs/iskra/internal/iskra/session"
	"github.com/iskralabs/iskra/internal/iskra/store"
	"github.com/iskralabs/iskra/internal/iskra/telegram"
)

// PaymentsConfig bundles the optional payment gateway settings. Enabled only
// when both the gateway credentials and the webhook secret are present.
type PaymentsConfig struct {
	Gateway       payments.ClientConfig
	WebhookSecret string

	// GrantDays is the access period per payment. <= 0 uses
	// payments.DefaultGrantDays.
	GrantDays int
}

// Config holds application configuration.
type Config struct {
	DatabasePath string
	Telegram     telegram.Config
	NLP          nlp.Config

	// PersonaPath is an optional persona YAML file. Empty uses the built-in
	// persona.
	PersonaPath string

	// FreeLimit is the free-message quota. <= 0 uses gate.DefaultFreeLimit.
	FreeLimit int

	// MemoryWindow is the number of recent turns the memory extractor sees.
	// <= 0 uses memory.DefaultWindow.
	MemoryWindow int

	// AdminUserID may run /grant and /stats. 0 disables admin commands.
	AdminUserID int64

	// OperatorChatID receives contact-consent notifications. 0 disables them.
	OperatorChatID int64

	// HTTPAddr is the TCP address for the health/status/webhook HTTP server
	// (e.g. ":8080"). When empty the server is disabled and payment
	// confirmations cannot be received.
	HTTPAddr string

	// Payments is optional; nil disables the payment flow entirely and the
	// consent flow takes over for quota-exhausted users.
	Payments *PaymentsConfig
}

// App is the assembled Iskra application.
type App struct {
	config     *Config
	store      *store.Store
	telegram   *telegram.Client
	httpServer *HTTPServer
}

// New creates the application from config.
func New(config *Config) (*App, error) {
	slog.Info("opening database", "path", config.DatabasePath)
	st, err := store.New(config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	p := persona.Default()
	if config.PersonaPath != "" {
		p, err = persona.Load(config.PersonaPath)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to load persona: %w", err)
		}
		slog.Info("persona loaded", "path", config.PersonaPath)
	}

	classifier := mood.New(mood.Keywords{
		Joy:     p.Keywords.Joy,
		Sadness: p.Keywords.Sadness,
		Anger:   p.Keywords.Anger,
		Calm:    p.Keywords.Calm,
	})

	provider := nlp.New(config.NLP)
	g := gate.New(st, config.FreeLimit)
	slog.Info("access gate ready", "free_limit", g.FreeLimit())

	var paymentClient *payments.Client
	if config.Payments != nil {
		paymentClient = payments.NewClient(config.Payments.Gateway, st)
		slog.Info("payment gateway client ready", "base_url", config.Payments.Gateway.BaseURL)
	}

	orchCfg := session.Config{
		Store:          st,
		Gate:           g,
		Provider:       provider,
		Classifier:     classifier,
		Persona:        p,
		MemoryWindow:   config.MemoryWindow,
		OperatorChatID: config.OperatorChatID,
		AdminUserID:    config.AdminUserID,
	}
	if paymentClient != nil {
		orchCfg.Payments = paymentClient
	}

	// The orchestrator and transport reference each other: the client feeds
	// events in, the orchestrator sends replies out. The orchestrator is
	// built after the client via a config it holds by value, so construct
	// the client with a handler that closes over the orchestrator pointer.
	var orch *session.Orchestrator
	tg, err := telegram.New(config.Telegram, func(ctx context.Context, evt telegram.Event) {
		orch.HandleEvent(ctx, evt)
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to initialize Telegram client: %w", err)
	}
	orchCfg.Sender = tg
	orch = session.New(orchCfg)

	var httpServer *HTTPServer
	if config.HTTPAddr != "" {
		httpServer = NewHTTPServer(config.HTTPAddr, st)

		if config.Payments != nil && config.Payments.WebhookSecret != "" {
			wh := payments.NewWebhookHandler(st, tg, config.Payments.WebhookSecret)
			if config.Payments.GrantDays > 0 {
				wh.GrantDays = config.Payments.GrantDays
			}
			wh.RegisterRoutes(httpServer.Router())
			slog.Info("payment webhook mounted", "grant_days", wh.GrantDays)
		}
		slog.Info("http server configured", "addr", config.HTTPAddr)
	} else if config.Payments != nil {
		slog.Warn("payments configured without HTTP_ADDR; webhook confirmations cannot be received")
	}

	return &App{
		config:     config,
		store:      st,
		telegram:   tg,
		httpServer: httpServer,
	}, nil
}

// Run starts the application and blocks until SIGINT/SIGTERM.
func (a *App) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start http server: %w", err)
		}
	}

	slog.Info("Iskra is running; press Ctrl+C to stop")

	// Blocks until ctx is cancelled by a signal.
	a.telegram.Start(ctx)

	slog.Info("shutting down")
	return nil
}

// Stop releases application resources.
func (a *App) Stop() {
	if a.httpServer != nil {
		slog.Info("stopping http server")
		a.httpServer.Stop()
	}

	slog.Info("closing database")
	a.store.Close()
}
