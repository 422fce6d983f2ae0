package sender

import (
	"context"
	"log/slog"
)

// LogSender writes codes to the log instead of dispatching them. Local
// development only; never wire it in production, it defeats the gate.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) SendSMS(_ context.Context, destination, code string) (bool, error) {
	s.logger.Info("otp sms (dev sender)", "destination", destination, "code", code)
	return true, nil
}

func (s *LogSender) SendEmail(_ context.Context, destination, code string) (bool, error) {
	s.logger.Info("otp email (dev sender)", "destination", destination, "code", code)
	return true, nil
}
