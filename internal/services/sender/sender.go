package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Maksim200738-droid/rockvpn/internal/lib/sl"
	"github.com/Maksim200738-droid/rockvpn/internal/models"
)

const dateLayout = "02.01.2006 15:04 MST"

// Префиксы callback-данных кнопок подтверждения платежа.
const (
	CallbackApprove = "admin_confirm_"
	CallbackReject  = "admin_reject_"
)

// ErrUnsupportedKind уведомление неизвестного типа.
var ErrUnsupportedKind = errors.New("unsupported notification kind")

// BotAPI часть клиента Telegram, нужная для отправки сообщений.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// SenderService доставляет уведомления из очереди пользователям и администраторам в Telegram.
type SenderService struct {
	bot      BotAPI
	adminIDs []int64
	log      *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(bot BotAPI, adminIDs []int64, log *slog.Logger) *SenderService {
	return &SenderService{
		bot:      bot,
		adminIDs: adminIDs,
		log:      log,
	}
}

// HandleNotification обрабатывает одно сообщение из очереди.
// Битый JSON, неизвестный тип и постоянные отказы Telegram (заблокированный бот,
// несуществующий чат) не возвращаются как ошибка, иначе сообщение будет возвращаться в очередь бесконечно.
func (s *SenderService) HandleNotification(ctx context.Context, body []byte) error {
	const op = "sender.HandleNotification"
	log := s.log.With(sl.Op(op))

	var n models.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		log.Error("failed to unmarshal notification, dropping", sl.Err(err))
		return nil
	}
	log = log.With(slog.String("kind", string(n.Kind)), slog.Int64("user_id", n.UserID))

	messages, err := s.Render(n)
	if err != nil {
		log.Error("failed to render notification, dropping", sl.Err(err))
		return nil
	}
	if len(messages) == 0 {
		log.Warn("notification has no recipients")
		return nil
	}

	for _, msg := range messages {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		default:
		}
		if _, err := s.bot.Send(msg); err != nil {
			if isPermanent(err) {
				log.Warn("telegram refused message, dropping", sl.Err(err))
				continue
			}
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	log.Info("notification delivered", slog.Int("messages", len(messages)))
	return nil
}

// Render строит сообщения Telegram для уведомления.
func (s *SenderService) Render(n models.Notification) ([]tgbotapi.Chattable, error) {
	if n.Kind == models.NotificationProofSubmitted {
		return s.renderProof(n), nil
	}

	var text string
	switch n.Kind {
	case models.NotificationSubscriptionActivated:
		head := "✅ Ваш платёж подтверждён!"
		if n.TransactionID == "" {
			head = "🎁 Администратор выдал вам подписку!"
		}
		text = fmt.Sprintf("%s\n\nТариф: %s\nДействует до: %s\n\nВаша ссылка для подключения:\n<code>%s</code>",
			head, escape(n.TariffName), formatDate(n), escape(n.Descriptor))
	case models.NotificationTrialActivated:
		text = fmt.Sprintf("🎉 Пробный период активирован!\n\nДействует до: %s\n\nВаша ссылка для подключения:\n<code>%s</code>",
			formatDate(n), escape(n.Descriptor))
	case models.NotificationPaymentRejected:
		text = "❌ Ваш платёж отклонён. Пожалуйста, свяжитесь с администратором."
	case models.NotificationSubscriptionRevoked:
		text = "❌ Ваша подписка была отменена администратором."
	case models.NotificationSubscriptionExpired:
		text = fmt.Sprintf("⌛ Срок действия подписки «%s» истёк.\n\nЧтобы продолжить пользоваться VPN, оформите новую подписку.",
			escape(n.TariffName))
	case models.NotificationReferralCommission:
		text = fmt.Sprintf("🎉 Вам начислено %s₽ за покупку вашего реферала!", n.Amount.StringFixed(2))
	case models.NotificationBalanceDebited:
		text = fmt.Sprintf("💰 С вашего баланса списано %s₽", n.Amount.StringFixed(2))
		if n.Balance != nil {
			text += fmt.Sprintf("\nТекущий баланс: %s₽", n.Balance.StringFixed(2))
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, n.Kind)
	}

	msg := tgbotapi.NewMessage(n.UserID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	return []tgbotapi.Chattable{msg}, nil
}

// renderProof строит сообщение о новом платеже для каждого администратора:
// скриншот с подписью, если он приложен, и кнопки подтверждения.
func (s *SenderService) renderProof(n models.Notification) []tgbotapi.Chattable {
	caption := fmt.Sprintf("💰 Новый платёж\n\nОт: <code>%d</code>\nТариф: %s\nСумма: %s₽\nID платежа: <code>%s</code>",
		n.UserID, escape(n.TariffName), n.Amount.StringFixed(2), escape(n.TransactionID))
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Подтвердить", CallbackApprove+n.TransactionID),
			tgbotapi.NewInlineKeyboardButtonData("❌ Отклонить", CallbackReject+n.TransactionID),
		),
	)

	out := make([]tgbotapi.Chattable, 0, len(s.adminIDs))
	for _, adminID := range s.adminIDs {
		if n.FileID != "" {
			photo := tgbotapi.NewPhoto(adminID, tgbotapi.FileID(n.FileID))
			photo.Caption = caption
			photo.ParseMode = tgbotapi.ModeHTML
			photo.ReplyMarkup = keyboard
			out = append(out, photo)
			continue
		}
		msg := tgbotapi.NewMessage(adminID, caption)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.ReplyMarkup = keyboard
		out = append(out, msg)
	}
	return out
}

func formatDate(n models.Notification) string {
	if n.EndDate == nil {
		return "не указано"
	}
	return n.EndDate.UTC().Format(dateLayout)
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeHTML, s)
}

// isPermanent сообщает, что Telegram отказал окончательно и повтор не поможет.
func isPermanent(err error) bool {
	var (
		ptrErr *tgbotapi.Error
		valErr tgbotapi.Error
		tgErr  tgbotapi.Error
	)
	switch {
	case errors.As(err, &ptrErr):
		tgErr = *ptrErr
	case errors.As(err, &valErr):
		tgErr = valErr
	default:
		return false
	}
	switch tgErr.Code {
	case http.StatusBadRequest, http.StatusForbidden:
		return true
	}
	return strings.Contains(tgErr.Message, "chat not found")
}
