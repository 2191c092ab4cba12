package mailer

// EmailJob is the JSON payload put on the RabbitMQ queue for sending email.
// Template names a notification kind; the worker renders Subject, Text and
// HTML from it when they are empty.
type EmailJob struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject,omitempty"`
	Text     string         `json:"text,omitempty"`
	HTML     string         `json:"html,omitempty"`
	Template string         `json:"template,omitempty"` // e.g. "user_created", "password_reset"
	Data     map[string]any `json:"data,omitempty"`
}

// NewEmailJob builds a templated job. The recipient is copied into Data so
// templates can greet by address when no name is known.
func NewEmailJob(template, to string, data map[string]any) EmailJob {
	d := make(map[string]any, len(data)+1)
	for k, v := range data {
		d[k] = v
	}
	if _, ok := d["Email"]; !ok {
		d["Email"] = to
	}
	return EmailJob{To: to, Template: template, Data: d}
}
