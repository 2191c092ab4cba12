package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/rxcheck-identity/pkg/mailer"
	mailtpl "github.com/oksasatya/rxcheck-identity/pkg/mailer/templates"
)

// sender is satisfied by *mailer.Mailgun.
type sender interface {
	Send(ctx context.Context, to, subject, text, html string) (string, error)
}

// errPermanent marks messages that will never succeed and must not be requeued.
var errPermanent = errors.New("permanent")

type worker struct {
	mail       sender
	appName    string
	supportURL string
	logger     *logrus.Logger
}

// handle renders and sends one queued job. Errors wrapping errPermanent mean
// the message should be dropped; any other error means retry.
func (w *worker) handle(ctx context.Context, body []byte) error {
	var job mailer.EmailJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("%w: decode: %v", errPermanent, err)
	}
	if job.To == "" {
		if v, ok := job.Data["Email"].(string); ok {
			job.To = v
		}
	}
	if job.To == "" {
		return fmt.Errorf("%w: missing recipient", errPermanent)
	}

	subject, text, html := job.Subject, job.Text, job.HTML
	if job.Template != "" {
		if !mailtpl.Known(job.Template) {
			return fmt.Errorf("%w: unknown template %q", errPermanent, job.Template)
		}
		appName := w.appName
		if v, ok := job.Data["AppName"].(string); ok && v != "" {
			appName = v
		}
		data := mailtpl.FromJob(job.Data, mailtpl.WithAppName(appName), mailtpl.WithSupportURL(w.supportURL))
		s, t, h, err := mailtpl.Render(job.Template, data)
		if err != nil {
			return fmt.Errorf("%w: render %s: %v", errPermanent, job.Template, err)
		}
		subject, text, html = s, t, h
	}

	id, err := w.mail.Send(ctx, job.To, subject, text, html)
	if err != nil {
		return err
	}
	w.logger.WithFields(logrus.Fields{"template": job.Template, "message_id": id}).Info("notification sent")
	return nil
}
