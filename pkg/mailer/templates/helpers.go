package templates

import (
	"encoding/json"
	"time"
)

// EmailData defines the fields templates may read.
type EmailData struct {
	Name       string `json:"Name"`
	Email      string `json:"Email"`
	Role       string `json:"Role,omitempty"`
	AppName    string `json:"AppName"`
	SupportURL string `json:"SupportURL,omitempty"`

	Code          string `json:"Code,omitempty"`
	ExpiresAtText string `json:"ExpiresAtText,omitempty"`
}

// Option pattern
type Option func(*EmailData)

func WithAppName(name string) Option    { return func(d *EmailData) { d.AppName = name } }
func WithSupportURL(url string) Option { return func(d *EmailData) { d.SupportURL = url } }

// WithExpiresAt reads an RFC3339 timestamp, as carried on queued jobs.
func WithExpiresAt(raw string) Option {
	return func(d *EmailData) {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return
		}
		d.ExpiresAtText = t.UTC().Format("02 January 2006, 15:04 MST")
	}
}

// FromJob lifts a queued job's loose data map into EmailData and back into a
// map, filling defaults through opts.
func FromJob(data map[string]any, opts ...Option) map[string]any {
	var d EmailData
	b, _ := json.Marshal(data)
	_ = json.Unmarshal(b, &d)
	if raw, ok := data["ExpiresAt"].(string); ok {
		opts = append(opts, WithExpiresAt(raw))
	}
	for _, opt := range opts {
		opt(&d)
	}
	return ToMap(d)
}

// ToMap converts EmailData to a map[string]any for rendering.
func ToMap(d EmailData) map[string]any {
	b, _ := json.Marshal(d)
	var m map[string]any
	_ = json.Unmarshal(b, &m)
	return m
}
