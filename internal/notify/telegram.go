package notify

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/shopspring/decimal"
)

// TelegramNotifier pushes best-effort status messages to the user's chat.
// Failures are logged and swallowed: message delivery never gates a credit.
type TelegramNotifier struct {
	bot *tgbotapi.BotAPI
	log *slog.Logger
}

func NewTelegramNotifier(bot *tgbotapi.BotAPI, log *slog.Logger) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, log: log}
}

func (t *TelegramNotifier) PaymentSucceeded(tgid int64, tokens decimal.Decimal) {
	if t == nil || t.bot == nil {
		return
	}
	text := fmt.Sprintf("Оплата прошла успешно! Баланс пополнен на %s токенов.", tokens.String())
	msg := tgbotapi.NewMessage(tgid, text)
	if _, err := t.bot.Send(msg); err != nil {
		t.log.Error("send payment notification", "tgid", tgid, "err", err)
	}
}

func (t *TelegramNotifier) ReferralBonus(referrerTGID int64, bonus decimal.Decimal) {
	if t == nil || t.bot == nil {
		return
	}
	text := fmt.Sprintf("Ваш реферал пополнил баланс — вам начислено %s токенов.", bonus.String())
	msg := tgbotapi.NewMessage(referrerTGID, text)
	if _, err := t.bot.Send(msg); err != nil {
		t.log.Error("send referral notification", "tgid", referrerTGID, "err", err)
	}
}
