// Package port declares the external capabilities the identity core relies on.
package port

import (
	"context"
	"io"
	"time"

	"github.com/oksasatya/rxcheck-identity/internal/domain/entity"
)

// SecondFactorProvider issues and checks time-based one-time codes.
type SecondFactorProvider interface {
	// GenerateSecret creates and stores a new secret for the subject.
	GenerateSecret(ctx context.Context, subjectID, email string) (secret, otpAuthURL string, err error)
	VerifyCode(ctx context.Context, subjectID, code string) (bool, error)
	// RenderChallengeImage writes the otpauth URL as a PNG QR code.
	RenderChallengeImage(otpAuthURL string, w io.Writer) error
}

// NotificationKind selects the message template.
type NotificationKind string

const (
	NotifyUserCreated         NotificationKind = "user_created"
	NotifyUserUpdated         NotificationKind = "user_updated"
	NotifyUserDeleted         NotificationKind = "user_deleted"
	NotifyPasswordReset       NotificationKind = "password_reset"
	NotifySecondFactorEnabled NotificationKind = "second_factor_enabled"
)

// Notifier hands a message to the delivery pipeline.
type Notifier interface {
	Send(ctx context.Context, kind NotificationKind, email string, data map[string]any) error
}

// ObjectStorage stores blobs under opaque keys.
type ObjectStorage interface {
	Upload(ctx context.Context, key, contentType string, r io.Reader) (string, error)
	Sign(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// UsedTokenStore remembers token ids that were already exchanged.
type UsedTokenStore interface {
	// MarkUsed records jti for ttl and reports whether this was the first use.
	MarkUsed(ctx context.Context, jti string, ttl time.Duration) (bool, error)
}

// IndexedUser is the searchable projection of a user.
type IndexedUser struct {
	ID         string      `json:"id"`
	Identifier string      `json:"identifier"`
	Email      string      `json:"email"`
	FullName   string      `json:"full_name"`
	Role       entity.Role `json:"role"`
	Active     bool        `json:"active"`
}

// UserIndex is a best-effort search index over users.
type UserIndex interface {
	Index(ctx context.Context, u *entity.User) error
	Search(ctx context.Context, query string, size int) ([]IndexedUser, error)
}
