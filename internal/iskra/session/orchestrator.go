// Package session drives the conversation: it holds the per-user state
// machine, routes normalized transport events, assembles completion prompts
// and enforces the access gate on every user turn.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/iskralabs/iskra/common/redact"
	"github.com/iskralabs/iskra/common/trace"
	"github.com/iskralabs/iskra/internal/iskra/gate"
	"github.com/iskralabs/iskra/internal/iskra/memory"
	"github.com/iskralabs/iskra/internal/iskra/mood"
	"github.com/iskralabs/iskra/internal/iskra/nlp"
	"github.com/iskralabs/iskra/internal/iskra/persona"
	"github.com/iskralabs/iskra/internal/iskra/store"
	"github.com/iskralabs/iskra/internal/iskra/telegram"
)

// User-facing texts. The bot speaks Russian; labels are matched verbatim
// against consent answers, so they live next to the prompts that show them.
const (
	msgIdleHint  = "Чтобы начать сессию, напиши /start."
	msgCancelled = "Сессия завершена. Когда захочешь вернуться — напиши /start."
	msgReset     = "История очищена. Начнём с чистого листа — напиши /start."

	msgPaywall     = "Бесплатные сообщения закончились.\n\nЧтобы продолжить без ограничений, оформи доступ на 30 дней."
	payButtonLabel = "Оплатить доступ"

	msgConsentPrompt   = "Бесплатные сообщения закончились.\n\nХочешь, чтобы с тобой связался человек и рассказал, как продолжить?"
	msgConsentAccepted = "Хорошо, мы свяжемся с тобой в ближайшее время."
	msgConsentDeclined = "Понимаю. Если передумаешь — просто напиши."
	consentYes         = "Да"
	consentNo          = "Нет"

	msgError = "Что-то пошло не так. Попробуй ещё раз чуть позже."
)

// quotaNoticeFormat is appended to metered replies.
const quotaNoticeFormat = "\n\nОсталось бесплатных сообщений: %d"

// moodInstructions steer the model toward the user's detected mood. Injected
// only when the mood changed since the previous turn; a repeated mood would
// just restate what the history already conveys.
var moodInstructions = map[mood.Mood]string{
	mood.Joy:     "Собеседник сейчас в приподнятом настроении. Раздели его радость.",
	mood.Sadness: "Собеседнику сейчас грустно. Будь особенно бережным и поддержи его.",
	mood.Anger:   "Собеседник сейчас злится. Не спорь, помоги ему выразить злость словами.",
	mood.Calm:    "Собеседник сейчас спокоен. Поддерживай ровный, вдумчивый тон.",
}

// Store is the persistence surface the orchestrator needs. *store.Store
// satisfies it; tests substitute an in-memory fake.
type Store interface {
	GetSession(ctx context.Context, userID int64) (*store.Session, error)
	SaveSession(ctx context.Context, sess *store.Session) error
	AppendTurn(ctx context.Context, userID int64, role, content string) error
	GetHistory(ctx context.Context, userID int64) ([]store.Turn, error)
	ClearHistory(ctx context.Context, userID int64) error
	SetGrant(ctx context.Context, userID int64, expiresAt time.Time) error
	ResetUsage(ctx context.Context, userID int64) error
	UserCount(ctx context.Context) (int, error)
	ActiveGrantCount(ctx context.Context, now time.Time) (int, error)
}

// Sender is the outbound transport surface; *telegram.Client satisfies it.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendTextWithKeyboard(ctx context.Context, chatID int64, text string, buttons []string) error
	SendTextWithLinkButton(ctx context.Context, chatID int64, text, label, url string) error
	SetTyping(ctx context.Context, chatID int64)
}

// PaymentLinker issues hosted checkout links; *payments.Client satisfies it.
type PaymentLinker interface {
	CreatePayment(ctx context.Context, userID int64) (redirectURL, orderID string, err error)
}

// Config wires the orchestrator's dependencies.
type Config struct {
	Store      Store
	Gate       *gate.Gate
	Provider   nlp.Provider
	Sender     Sender
	Classifier *mood.Classifier
	Persona    persona.Config

	// Payments is optional. When nil, quota-exhausted users get the operator
	// consent flow instead of a payment link.
	Payments PaymentLinker

	// MemoryWindow is the number of recent turns the memory extractor sees.
	// <= 0 uses memory.DefaultWindow.
	MemoryWindow int

	// OperatorChatID receives contact-consent notifications. 0 disables them.
	OperatorChatID int64

	// AdminUserID may run /grant and /stats. 0 disables admin commands.
	AdminUserID int64
}

// Orchestrator routes events through the per-user state machine. Events for
// the same user are handled strictly one at a time.
type Orchestrator struct {
	cfg   Config
	locks *userLocks

	// now is injectable for tests.
	now func() time.Time
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		cfg:   cfg,
		locks: newUserLocks(),
		now:   time.Now,
	}
}

// HandleEvent processes one normalized inbound event. It never panics the
// transport loop: failures are logged and answered with a generic apology.
func (o *Orchestrator) HandleEvent(ctx context.Context, evt telegram.Event) {
	ctx = trace.WithTraceID(ctx, trace.GenerateID())

	unlock := o.locks.lock(evt.UserID)
	defer unlock()

	var err error
	switch evt.Kind {
	case telegram.KindCommand:
		err = o.handleCommand(ctx, evt)
	default:
		// Button presses carry their answer in Text and flow through the same
		// state machine as typed messages.
		err = o.handleMessage(ctx, evt)
	}

	if err != nil {
		slog.Error("event handling failed",
			"trace_id", trace.FromContext(ctx),
			"user_id", evt.UserID,
			"err", err)
		if sendErr := o.cfg.Sender.SendText(ctx, evt.ChatID, msgError); sendErr != nil {
			slog.Warn("failed to send error notice", "user_id", evt.UserID, "err", sendErr)
		}
	}
}

// handleMessage dispatches a non-command message on the session state.
func (o *Orchestrator) handleMessage(ctx context.Context, evt telegram.Event) error {
	sess, err := o.cfg.Store.GetSession(ctx, evt.UserID)
	if err != nil {
		return err
	}

	switch sess.State {
	case store.StateAwaitingConsent:
		return o.handleConsent(ctx, evt, sess)
	case store.StateInSession:
		return o.converse(ctx, evt, sess)
	default:
		return o.cfg.Sender.SendText(ctx, evt.ChatID, msgIdleHint)
	}
}

// converse runs one metered conversation turn.
func (o *Orchestrator) converse(ctx context.Context, evt telegram.Event, sess *store.Session) error {
	decision, err := o.cfg.Gate.Evaluate(ctx, evt.UserID, o.now())
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return o.paywall(ctx, evt, sess)
	}

	if err := o.cfg.Store.AppendTurn(ctx, evt.UserID, store.RoleUser, evt.Text); err != nil {
		return err
	}
	history, err := o.cfg.Store.GetHistory(ctx, evt.UserID)
	if err != nil {
		return err
	}

	m := o.cfg.Classifier.Classify(evt.Text)
	hint := memory.Extract(history, o.cfg.MemoryWindow)
	prompt := o.buildPrompt(sess, m, hint, history)

	o.cfg.Sender.SetTyping(ctx, evt.ChatID)
	resp, err := o.cfg.Provider.Complete(ctx, nlp.CompletionRequest{Messages: prompt})
	if err != nil {
		// The user turn stays in the transcript, but no quota is consumed for
		// a reply that never arrived.
		return fmt.Errorf("completion: %w", err)
	}

	reply := resp.Content
	if !decision.Unlimited {
		remaining, err := o.cfg.Gate.Commit(ctx, evt.UserID)
		if err != nil {
			// The reply is already generated; losing one quota tick is better
			// than discarding it.
			slog.Error("quota commit failed", "user_id", evt.UserID, "err", err)
			remaining = decision.Remaining
		}
		reply += fmt.Sprintf(quotaNoticeFormat, remaining)
	}

	// The transcript stores the bare assistant turn; the quota notice is
	// presentation, not conversation.
	if err := o.cfg.Store.AppendTurn(ctx, evt.UserID, store.RoleAssistant, resp.Content); err != nil {
		return err
	}

	sess.State = store.StateInSession
	sess.LastMood = string(m)
	sess.MemoryHint = hint
	if err := o.cfg.Store.SaveSession(ctx, sess); err != nil {
		return err
	}

	attrs := []any{
		"trace_id", trace.FromContext(ctx),
		"user_id", evt.UserID,
		"mood", string(m),
		"preview", redact.Preview(evt.Text, 48),
	}
	if resp.Usage != nil {
		attrs = append(attrs, "tokens", resp.Usage.TotalTokens)
	}
	slog.Info("turn completed", attrs...)

	return o.cfg.Sender.SendText(ctx, evt.ChatID, reply)
}

// paywall answers a blocked user: a hosted payment link when the gateway is
// configured, the operator consent flow otherwise.
func (o *Orchestrator) paywall(ctx context.Context, evt telegram.Event, sess *store.Session) error {
	if o.cfg.Payments != nil {
		url, orderID, err := o.cfg.Payments.CreatePayment(ctx, evt.UserID)
		if err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		slog.Info("payment link issued", "user_id", evt.UserID, "order_id", orderID)
		return o.cfg.Sender.SendTextWithLinkButton(ctx, evt.ChatID, msgPaywall, payButtonLabel, url)
	}

	sess.State = store.StateAwaitingConsent
	if err := o.cfg.Store.SaveSession(ctx, sess); err != nil {
		return err
	}
	return o.cfg.Sender.SendTextWithKeyboard(ctx, evt.ChatID, msgConsentPrompt, []string{consentYes, consentNo})
}

// handleConsent resolves the awaiting-consent state. Either answer returns the
// user to the in-session state; only an affirmative one notifies the operator.
func (o *Orchestrator) handleConsent(ctx context.Context, evt telegram.Event, sess *store.Session) error {
	answer := strings.ToLower(strings.TrimSpace(evt.Text))
	affirmative := answer == strings.ToLower(consentYes) || answer == "yes"

	reply := msgConsentDeclined
	if affirmative {
		reply = msgConsentAccepted
		if o.cfg.OperatorChatID != 0 {
			note := fmt.Sprintf("Пользователь %d исчерпал бесплатный лимит и просит связаться с ним.", evt.UserID)
			if err := o.cfg.Sender.SendText(ctx, o.cfg.OperatorChatID, note); err != nil {
				slog.Warn("failed to notify operator", "user_id", evt.UserID, "err", err)
			}
		}
		slog.Info("contact consent given", "user_id", evt.UserID)
	}

	sess.State = store.StateInSession
	if err := o.cfg.Store.SaveSession(ctx, sess); err != nil {
		return err
	}
	return o.cfg.Sender.SendText(ctx, evt.ChatID, reply)
}

// buildPrompt assembles the completion request: persona instruction, optional
// mood and memory steering, then the full chronological transcript.
func (o *Orchestrator) buildPrompt(sess *store.Session, m mood.Mood, hint string, history []store.Turn) []nlp.Message {
	msgs := make([]nlp.Message, 0, len(history)+3)
	msgs = append(msgs, nlp.Message{Role: nlp.RoleSystem, Content: o.cfg.Persona.System})

	if instruction, ok := moodInstructions[m]; ok && string(m) != sess.LastMood {
		msgs = append(msgs, nlp.Message{Role: nlp.RoleSystem, Content: instruction})
	}
	if hint != "" {
		msgs = append(msgs, nlp.Message{
			Role:    nlp.RoleSystem,
			Content: "Собеседник часто возвращается к темам: " + hint + ". Учитывай это.",
		})
	}

	// Transcript roles match completion roles by construction.
	for _, t := range history {
		msgs = append(msgs, nlp.Message{Role: t.Role, Content: t.Content})
	}
	return msgs
}
