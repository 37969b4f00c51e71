package notification

import (
	"context"

	"github.com/rs/zerolog"
)

// LogEmailSender writes emails to the log instead of delivering them. It is
// the default until a real provider is configured.
type LogEmailSender struct {
	Logger zerolog.Logger
}

func (s LogEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.Logger.Info().
		Str("channel", string(ChannelEmail)).
		Str("to", to).
		Str("subject", subject).
		Int("body_len", len(body)).
		Msg("email sent")
	return nil
}

// LogSMSSender writes text messages to the log.
type LogSMSSender struct {
	Logger zerolog.Logger
}

func (s LogSMSSender) SendSMS(_ context.Context, to, body string) error {
	s.Logger.Info().
		Str("channel", string(ChannelSMS)).
		Str("to", to).
		Int("body_len", len(body)).
		Msg("sms sent")
	return nil
}
