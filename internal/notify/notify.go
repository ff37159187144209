package notify

import (
	"context"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type Notifier interface {
	Send(ctx context.Context, title, text string) error
}

// Multi fans a message out to every notifier. Nil entries are skipped and
// every failure is reported.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, title, text string) error {
	var err error
	for _, n := range m {
		if n == nil {
			continue
		}
		err = multierr.Append(err, n.Send(ctx, title, text))
	}
	return err
}

// Log writes alerts to the structured log. It never fails, so the API
// keeps an audit trail even without a webhook configured.
type Log struct {
	Logger *zap.Logger
}

func (l Log) Send(_ context.Context, title, text string) error {
	if l.Logger == nil {
		return nil
	}
	l.Logger.Warn("alert", zap.String("title", title), zap.String("text", text))
	return nil
}
