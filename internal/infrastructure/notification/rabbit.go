// Package notification publishes notification jobs for the mail worker.
package notification

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/oksasatya/rxcheck-identity/internal/domain/errs"
	"github.com/oksasatya/rxcheck-identity/internal/domain/port"
	"github.com/oksasatya/rxcheck-identity/pkg/mailer"
)

// Publisher puts a JSON body on the notification queue.
type Publisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// BreakerSettings tunes the circuit breaker around the broker.
type BreakerSettings struct {
	MaxFailures uint32
	Interval    time.Duration
	Timeout     time.Duration
}

// RabbitNotifier turns notifications into mailer jobs. After MaxFailures
// consecutive publish errors the breaker opens and sends fail fast until
// Timeout elapses.
type RabbitNotifier struct {
	pub     Publisher
	cb      *gobreaker.CircuitBreaker
	appName string
}

func NewRabbitNotifier(pub Publisher, appName string, bs BreakerSettings, logger *logrus.Logger) *RabbitNotifier {
	if bs.MaxFailures == 0 {
		bs.MaxFailures = 5
	}
	if bs.Timeout <= 0 {
		bs.Timeout = 30 * time.Second
	}
	st := gobreaker.Settings{
		Name:        "notifications",
		MaxRequests: 1,
		Interval:    bs.Interval,
		Timeout:     bs.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bs.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if logger != nil {
				logger.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).Warn("circuit breaker state")
			}
		},
	}
	return &RabbitNotifier{pub: pub, cb: gobreaker.NewCircuitBreaker(st), appName: appName}
}

func (n *RabbitNotifier) Send(ctx context.Context, kind port.NotificationKind, email string, data map[string]any) error {
	job := mailer.NewEmailJob(string(kind), email, data)
	if _, ok := job.Data["AppName"]; !ok && n.appName != "" {
		job.Data["AppName"] = n.appName
	}
	_, err := n.cb.Execute(func() (interface{}, error) {
		return nil, n.pub.PublishJSON(ctx, job)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return errs.Unavailable("notify", err)
		}
		return errs.Unavailable("publish", err)
	}
	return nil
}

// State exposes the breaker state for health reporting.
func (n *RabbitNotifier) State() string {
	return n.cb.State().String()
}
