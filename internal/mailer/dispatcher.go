package mailer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Result counts the outcome of a batch.
type Result struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// Summary renders the batch outcome for logs and job results.
func (r Result) Summary() string {
	if r.Failed == 0 {
		return fmt.Sprintf("Successfully sent QR codes to all %d participants", r.Sent)
	}
	return fmt.Sprintf("Sent QR codes to %d participants, failed for %d participants", r.Sent, r.Failed)
}

// Dispatcher sends messages one at a time, pausing between sends to stay
// under the provider's rate limits.
type Dispatcher struct {
	sender Sender
	delay  time.Duration
	logger *zap.Logger
	sleep  func(context.Context, time.Duration) error
	// OnResult is called after every attempt; used for metrics.
	OnResult func(err error)
}

// NewDispatcher creates a dispatcher. A negative delay is treated as zero.
func NewDispatcher(sender Sender, delay time.Duration, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{sender: sender, delay: max(delay, 0), logger: logger, sleep: sleepCtx}
}

// SendAll delivers every message. Individual failures are counted, not
// returned; the error is non-nil only when ctx ends the batch early.
func (d *Dispatcher) SendAll(ctx context.Context, msgs []Message) (Result, error) {
	var res Result
	for i, msg := range msgs {
		if i > 0 && d.delay > 0 {
			if err := d.sleep(ctx, d.delay); err != nil {
				return res, err
			}
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		err := d.sender.Send(ctx, msg)
		if d.OnResult != nil {
			d.OnResult(err)
		}
		if err != nil {
			res.Failed++
			d.logger.Warn("email send failed", zap.String("to", msg.To), zap.Error(err))
			continue
		}
		res.Sent++
		d.logger.Info("email sent", zap.String("to", msg.To))
	}
	return res, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
