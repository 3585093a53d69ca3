// Package worker processes queued background jobs.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"slices"
	"strings"

	"go.uber.org/zap"

	"evently/internal/attendance"
	"evently/internal/mailer"
	"evently/internal/metrics"
	"evently/internal/qr"
	"evently/internal/queue"
)

// ErrPermanent marks failures a retry cannot fix.
var ErrPermanent = errors.New("permanent job failure")

// Processor sends participant QR code emails.
type Processor struct {
	svc        *attendance.Service
	signer     *qr.Signer
	mail       *mailer.Client
	dispatcher *mailer.Dispatcher
	queue      queue.Queue
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewProcessor wires a processor. metrics may be nil.
func NewProcessor(svc *attendance.Service, signer *qr.Signer, mail *mailer.Client, d *mailer.Dispatcher,
	q queue.Queue, m *metrics.Metrics, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{svc: svc, signer: signer, mail: mail, dispatcher: d, queue: q, metrics: m, logger: logger}
}

// Process executes one job.
func (p *Processor) Process(ctx context.Context, job queue.Job) (mailer.Result, error) {
	if job.Type != queue.JobSendQRCodes {
		return mailer.Result{}, fmt.Errorf("%w: unknown job type %q", ErrPermanent, job.Type)
	}
	var payload queue.SendQRCodesPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return mailer.Result{}, fmt.Errorf("%w: unmarshal payload: %v", ErrPermanent, err)
	}
	if !p.mail.Configured() {
		return mailer.Result{}, fmt.Errorf("%w: %v", ErrPermanent, mailer.ErrNotConfigured)
	}

	msgs, err := p.qrMessages(ctx, payload)
	if err != nil {
		if errors.Is(err, attendance.ErrEventNotFound) {
			return mailer.Result{}, fmt.Errorf("%w: %v", ErrPermanent, err)
		}
		return mailer.Result{}, err
	}
	res, err := p.dispatcher.SendAll(ctx, msgs)
	if err != nil {
		return res, err
	}
	// partial failures are not retried; that would resend delivered mail
	if res.Sent == 0 && res.Failed > 0 {
		return res, fmt.Errorf("all %d sends failed", res.Failed)
	}
	return res, nil
}

func (p *Processor) qrMessages(ctx context.Context, payload queue.SendQRCodesPayload) ([]mailer.Message, error) {
	ev, err := p.svc.GetEvent(ctx, payload.EventID)
	if err != nil {
		return nil, err
	}
	ps, err := p.svc.Participants(ctx, payload.EventID)
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	slices.SortStableFunc(ps, func(a, b attendance.Participant) int {
		return strings.Compare(strings.ToLower(a.FirstName), strings.ToLower(b.FirstName))
	})

	var msgs []mailer.Message
	for _, pt := range ps {
		if pt.Email == nil || *pt.Email == "" {
			continue
		}
		if len(payload.ParticipantIDs) > 0 && !slices.Contains(payload.ParticipantIDs, pt.ID) {
			continue
		}
		token, err := p.signer.Issue(pt.ID, ev.ID)
		if err != nil {
			return nil, fmt.Errorf("issue token: %w", err)
		}
		png, err := qr.PNG(token, qr.DefaultSize)
		if err != nil {
			return nil, err
		}
		body, err := mailer.RenderQRInvite(mailer.QRInvite{
			FullName:      pt.FullName(),
			EventName:     ev.EventName,
			EventDate:     ev.StartDate,
			EventLocation: ev.Location,
			QRDataURL:     template.URL(qr.DataURL(png)),
		})
		if err != nil {
			return nil, fmt.Errorf("render email: %w", err)
		}
		msgs = append(msgs, mailer.Message{
			To:      *pt.Email,
			Subject: "Your QR Code for " + ev.EventName,
			Body:    body,
		})
	}
	return msgs, nil
}

// Run consumes jobs until ctx is done. Transient failures are retried through
// the queue; permanent ones are logged and dropped.
func (p *Processor) Run(ctx context.Context) error {
	jobs, err := p.queue.Consume(ctx)
	if err != nil {
		return fmt.Errorf("queue consume init: %w", err)
	}
	p.logger.Info("worker started, waiting for jobs")
	for job := range jobs {
		p.handle(ctx, job)
	}
	p.logger.Info("worker stopped")
	return nil
}

func (p *Processor) handle(ctx context.Context, job queue.Job) {
	log := p.logger.With(zap.String("job_id", job.ID), zap.String("type", string(job.Type)), zap.Int("attempt", job.Attempt))
	log.Info("processing job")

	res, err := p.Process(ctx, job)
	switch {
	case err == nil:
		p.count(job.Type, "ok")
		log.Info("job done", zap.Int("sent", res.Sent), zap.Int("failed", res.Failed), zap.String("summary", res.Summary()))
	case errors.Is(err, ErrPermanent):
		p.count(job.Type, "dropped")
		log.Error("job failed permanently", zap.Error(err))
	case ctx.Err() != nil:
		log.Warn("job interrupted by shutdown", zap.Error(err))
		if _, rerr := p.queue.Retry(context.WithoutCancel(ctx), job); rerr != nil {
			log.Error("requeue failed", zap.Error(rerr))
		}
	default:
		dead, rerr := p.queue.Retry(ctx, job)
		if rerr != nil {
			log.Error("retry enqueue failed", zap.Error(rerr))
			return
		}
		if dead {
			p.count(job.Type, "dead_lettered")
			log.Warn("job moved to DLQ", zap.Error(err))
			return
		}
		p.count(job.Type, "retried")
		log.Warn("job failed, retrying", zap.Error(err))
	}
}

func (p *Processor) count(t queue.JobType, result string) {
	if p.metrics != nil {
		p.metrics.Jobs.WithLabelValues(string(t), result).Inc()
	}
}
