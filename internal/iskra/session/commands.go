package session

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/iskralabs/iskra/internal/iskra/payments"
	"github.com/iskralabs/iskra/internal/iskra/store"
	"github.com/iskralabs/iskra/internal/iskra/telegram"
)

const (
	msgUnknownCommand = "Не знаю такой команды. Доступно: /start, /cancel, /reset."
	msgBuyUnavailable = "Оплата пока не подключена. Напиши /start, чтобы продолжить разговор."
	msgNotAuthorized  = "Эта команда недоступна."
	grantUsage        = "Использование: /grant <user_id> [days]"
	refillUsage       = "Использование: /refill <user_id>"
)

// handleCommand dispatches a parsed slash command.
func (o *Orchestrator) handleCommand(ctx context.Context, evt telegram.Event) error {
	switch evt.Command {
	case "start":
		return o.handleStart(ctx, evt)
	case "cancel":
		return o.handleCancel(ctx, evt)
	case "reset":
		return o.handleReset(ctx, evt)
	case "buy":
		return o.handleBuy(ctx, evt)
	case "grant":
		return o.handleGrant(ctx, evt)
	case "refill":
		return o.handleRefill(ctx, evt)
	case "stats":
		return o.handleStats(ctx, evt)
	default:
		return o.cfg.Sender.SendText(ctx, evt.ChatID, msgUnknownCommand)
	}
}

// handleStart opens (or re-opens) a session. The persisted transcript is kept:
// a returning user continues where they left off.
func (o *Orchestrator) handleStart(ctx context.Context, evt telegram.Event) error {
	sess, err := o.cfg.Store.GetSession(ctx, evt.UserID)
	if err != nil {
		return err
	}
	sess.State = store.StateInSession
	if err := o.cfg.Store.SaveSession(ctx, sess); err != nil {
		return err
	}

	slog.Info("session started", "user_id", evt.UserID)
	return o.cfg.Sender.SendText(ctx, evt.ChatID, o.cfg.Persona.Greeting)
}

// handleCancel closes the session. Transcript and annotations stay; only the
// state returns to idle.
func (o *Orchestrator) handleCancel(ctx context.Context, evt telegram.Event) error {
	sess, err := o.cfg.Store.GetSession(ctx, evt.UserID)
	if err != nil {
		return err
	}
	sess.State = store.StateIdle
	if err := o.cfg.Store.SaveSession(ctx, sess); err != nil {
		return err
	}

	slog.Info("session cancelled", "user_id", evt.UserID)
	return o.cfg.Sender.SendText(ctx, evt.ChatID, msgCancelled)
}

// handleReset wipes the user's transcript and annotations. The usage counter
// is untouched: forgetting the conversation does not refill the quota.
func (o *Orchestrator) handleReset(ctx context.Context, evt telegram.Event) error {
	if err := o.cfg.Store.ClearHistory(ctx, evt.UserID); err != nil {
		return err
	}

	sess, err := o.cfg.Store.GetSession(ctx, evt.UserID)
	if err != nil {
		return err
	}
	sess.State = store.StateIdle
	sess.LastMood = ""
	sess.MemoryHint = ""
	if err := o.cfg.Store.SaveSession(ctx, sess); err != nil {
		return err
	}

	slog.Info("history reset", "user_id", evt.UserID)
	return o.cfg.Sender.SendText(ctx, evt.ChatID, msgReset)
}

// handleBuy issues a payment link on demand, without waiting for the quota to
// run out.
func (o *Orchestrator) handleBuy(ctx context.Context, evt telegram.Event) error {
	if o.cfg.Payments == nil {
		return o.cfg.Sender.SendText(ctx, evt.ChatID, msgBuyUnavailable)
	}

	url, orderID, err := o.cfg.Payments.CreatePayment(ctx, evt.UserID)
	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	slog.Info("payment link issued", "user_id", evt.UserID, "order_id", orderID)
	return o.cfg.Sender.SendTextWithLinkButton(ctx, evt.ChatID, msgPaywall, payButtonLabel, url)
}

// handleGrant gives a user unlimited access for a number of days, counted from
// now. Admin only.
func (o *Orchestrator) handleGrant(ctx context.Context, evt telegram.Event) error {
	if !o.isAdmin(evt.UserID) {
		return o.cfg.Sender.SendText(ctx, evt.ChatID, msgNotAuthorized)
	}

	fields := strings.Fields(evt.Args)
	if len(fields) == 0 || len(fields) > 2 {
		return o.cfg.Sender.SendText(ctx, evt.ChatID, grantUsage)
	}

	userID, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || userID <= 0 {
		return o.cfg.Sender.SendText(ctx, evt.ChatID, grantUsage)
	}

	days := payments.DefaultGrantDays
	if len(fields) == 2 {
		days, err = strconv.Atoi(fields[1])
		if err != nil || days <= 0 {
			return o.cfg.Sender.SendText(ctx, evt.ChatID, grantUsage)
		}
	}

	expiresAt := o.now().AddDate(0, 0, days)
	if err := o.cfg.Store.SetGrant(ctx, userID, expiresAt); err != nil {
		return err
	}

	slog.Info("manual grant issued", "admin_id", evt.UserID, "user_id", userID, "days", days)
	reply := fmt.Sprintf("Доступ выдан: пользователь %d, %d дн., до %s.",
		userID, days, expiresAt.Format("2006-01-02 15:04 MST"))
	return o.cfg.Sender.SendText(ctx, evt.ChatID, reply)
}

// handleRefill zeroes a user's free-message counter. Admin only.
func (o *Orchestrator) handleRefill(ctx context.Context, evt telegram.Event) error {
	if !o.isAdmin(evt.UserID) {
		return o.cfg.Sender.SendText(ctx, evt.ChatID, msgNotAuthorized)
	}

	userID, err := strconv.ParseInt(strings.TrimSpace(evt.Args), 10, 64)
	if err != nil || userID <= 0 {
		return o.cfg.Sender.SendText(ctx, evt.ChatID, refillUsage)
	}

	if err := o.cfg.Store.ResetUsage(ctx, userID); err != nil {
		return err
	}

	slog.Info("quota refilled", "admin_id", evt.UserID, "user_id", userID)
	reply := fmt.Sprintf("Счётчик сброшен: пользователь %d снова получает %d бесплатных сообщений.",
		userID, o.cfg.Gate.FreeLimit())
	return o.cfg.Sender.SendText(ctx, evt.ChatID, reply)
}

// handleStats reports usage totals. Admin only.
func (o *Orchestrator) handleStats(ctx context.Context, evt telegram.Event) error {
	if !o.isAdmin(evt.UserID) {
		return o.cfg.Sender.SendText(ctx, evt.ChatID, msgNotAuthorized)
	}

	users, err := o.cfg.Store.UserCount(ctx)
	if err != nil {
		return err
	}
	grants, err := o.cfg.Store.ActiveGrantCount(ctx, o.now())
	if err != nil {
		return err
	}

	reply := fmt.Sprintf("Пользователей: %d\nАктивных подписок: %d", users, grants)
	return o.cfg.Sender.SendText(ctx, evt.ChatID, reply)
}

func (o *Orchestrator) isAdmin(userID int64) bool {
	return o.cfg.AdminUserID != 0 && userID == o.cfg.AdminUserID
}
