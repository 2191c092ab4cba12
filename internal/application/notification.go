package application

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/rxcheck-identity/internal/domain/port"
	"github.com/oksasatya/rxcheck-identity/pkg/metrics"
)

// Notifications sends messages in the background. A failed send is logged
// and counted, never returned to the operation that triggered it.
type Notifications struct {
	notifier port.Notifier
	logger   *logrus.Logger
	timeout  time.Duration
	wg       sync.WaitGroup
}

// NewNotifications accepts a nil notifier, in which case Dispatch is a no-op.
func NewNotifications(n port.Notifier, logger *logrus.Logger, timeout time.Duration) *Notifications {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Notifications{notifier: n, logger: logger, timeout: timeout}
}

// Dispatch hands the message off without waiting for delivery. The caller's
// cancellation does not abort the send.
func (n *Notifications) Dispatch(ctx context.Context, kind port.NotificationKind, email string, data map[string]any) {
	if n == nil || n.notifier == nil {
		return
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer cancel()
		if err := n.notifier.Send(sendCtx, kind, email, data); err != nil {
			metrics.NotificationsFailed.WithLabelValues(string(kind)).Inc()
			if n.logger != nil {
				n.logger.WithError(err).WithFields(logrus.Fields{
					"kind":  kind,
					"email": email,
				}).Warn("notification dispatch failed")
			}
		}
	}()
}

// Wait blocks until every dispatched message has been handed off or failed.
func (n *Notifications) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}
