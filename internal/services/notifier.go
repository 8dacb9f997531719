package services

import (
	"context"
	"fmt"
	"html"
	"net/smtp"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/contadigital/backend/internal/models"
)

// WithdrawalNotification carries everything the notification boundary
// needs: the destination descriptor, the amount and the completion
// timestamp.
type WithdrawalNotification struct {
	WithdrawalID    string
	DestinationType string
	DestinationKey  string
	Amount          string
	ProcessedAt     time.Time
}

// Notifier is invoked only after a withdrawal reaches done without
// error. It is best effort: callers log failures and never let them
// touch withdrawal state.
type Notifier interface {
	NotifyWithdrawalCompleted(ctx context.Context, n WithdrawalNotification) error
}

// EmailNotifier delivers the completion notice over SMTP to the PIX
// email key.
type EmailNotifier struct {
	addr     string
	from     string
	fromName string
}

// NewEmailNotifier builds a notifier from mailer.* config.
func NewEmailNotifier() *EmailNotifier {
	viper.SetDefault("mailer.host", "localhost")
	viper.SetDefault("mailer.port", "1025")
	viper.SetDefault("mailer.from_address", "no-reply@contadigital.local")
	viper.SetDefault("mailer.from_name", "Conta Digital")

	return &EmailNotifier{
		addr:     viper.GetString("mailer.host") + ":" + viper.GetString("mailer.port"),
		from:     viper.GetString("mailer.from_address"),
		fromName: viper.GetString("mailer.from_name"),
	}
}

func (n *EmailNotifier) NotifyWithdrawalCompleted(ctx context.Context, wn WithdrawalNotification) error {
	if wn.DestinationType != models.DestinationTypeEmail {
		// Only email keys are deliverable today.
		return nil
	}

	msg := fmt.Sprintf("From: %s <%s>\r\nTo: %s\r\nSubject: Saque efetuado\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=utf-8\r\n\r\n%s",
		n.fromName, n.from, wn.DestinationKey, renderWithdrawalEmail(wn))

	if err := smtp.SendMail(n.addr, nil, n.from, []string{wn.DestinationKey}, []byte(msg)); err != nil {
		return fmt.Errorf("sending withdrawal email: %w", err)
	}
	return nil
}

func renderWithdrawalEmail(wn WithdrawalNotification) string {
	return fmt.Sprintf(
		"<h3>Saque efetuado</h3>"+
			"<p><strong>Data/Hora:</strong> %s</p>"+
			"<p><strong>Valor:</strong> R$ %s</p>"+
			"<p><strong>PIX (email):</strong> %s</p>",
		wn.ProcessedAt.Format("2006-01-02 15:04:05"),
		html.EscapeString(wn.Amount),
		html.EscapeString(wn.DestinationKey),
	)
}

// notifyAsync fires the notification on its own goroutine so its
// latency and failures stay off the withdrawal path. Outcomes are only
// logged.
func notifyAsync(logger zerolog.Logger, notifier Notifier, requestID string, n WithdrawalNotification) {
	if notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := notifier.NotifyWithdrawalCompleted(ctx, n); err != nil {
			logger.Error().Err(err).
				Str("request_id", requestID).
				Str("withdraw_id", n.WithdrawalID).
				Str("to", n.DestinationKey).
				Msg("withdraw.email.failed")
			return
		}
		logger.Info().
			Str("request_id", requestID).
			Str("withdraw_id", n.WithdrawalID).
			Str("to", n.DestinationKey).
			Msg("withdraw.email.sent")
	}()
}
