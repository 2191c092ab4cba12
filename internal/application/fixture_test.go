package application_test

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/rxcheck-identity/internal/application"
	"github.com/oksasatya/rxcheck-identity/internal/domain/entity"
	"github.com/oksasatya/rxcheck-identity/internal/domain/port"
	"github.com/oksasatya/rxcheck-identity/internal/infrastructure/memory"
	"github.com/oksasatya/rxcheck-identity/pkg/helpers"
)

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Send(ctx context.Context, kind port.NotificationKind, email string, data map[string]any) error {
	return m.Called(ctx, kind, email, data).Error(0)
}

type mockSecondFactor struct{ mock.Mock }

func (m *mockSecondFactor) GenerateSecret(ctx context.Context, subjectID, email string) (string, string, error) {
	args := m.Called(ctx, subjectID, email)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *mockSecondFactor) VerifyCode(ctx context.Context, subjectID, code string) (bool, error) {
	args := m.Called(ctx, subjectID, code)
	return args.Bool(0), args.Error(1)
}

func (m *mockSecondFactor) RenderChallengeImage(otpAuthURL string, w io.Writer) error {
	return m.Called(otpAuthURL, w).Error(0)
}

type mockStorage struct {
	mu      sync.Mutex
	uploads map[string][]byte
}

func (s *mockStorage) Upload(_ context.Context, key, _ string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploads == nil {
		s.uploads = map[string][]byte{}
	}
	s.uploads[key] = buf.Bytes()
	return key, nil
}

func (s *mockStorage) Sign(_ context.Context, key string, ttl time.Duration) (string, error) {
	return "https://cdn.test/" + key + "?ttl=" + ttl.String(), nil
}

type fixture struct {
	ctx      context.Context
	now      time.Time
	repo     *memory.UserRepository
	creds    *application.CredentialManager
	jwt      *helpers.JWTManager
	notifier *mockNotifier
	notes    *application.Notifications
	logger   *logrus.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	notifier := &mockNotifier{}
	f := &fixture{
		ctx:      context.Background(),
		now:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		repo:     memory.NewUserRepository(),
		creds:    application.NewCredentialManager(helpers.NewBcryptHasher(bcrypt.MinCost)),
		notifier: notifier,
		notes:    application.NewNotifications(notifier, logger, time.Second),
		logger:   logger,
	}
	f.jwt = helpers.NewJWTManager("test-secret", "rxcheck-test", time.Hour, 5*time.Minute).WithClock(f.clock)
	t.Cleanup(f.notes.Wait)
	return f
}

func (f *fixture) clock() time.Time { return f.now }

// seed stores an active patient with the given plaintext password.
func (f *fixture) seed(t *testing.T, email, password string, mutate ...func(*entity.UserParams)) *entity.User {
	t.Helper()
	hash, err := f.creds.Hash(password)
	require.NoError(t, err)
	p := entity.UserParams{
		Name:          "Dante",
		FirstSurname:  "Gómez",
		SecondSurname: "Rivas",
		Identifier:    "GODE561231HDFRNS02",
		Email:         email,
		PasswordHash:  hash,
		Role:          entity.RolePatient,
	}
	for _, m := range mutate {
		m(&p)
	}
	u, err := entity.NewUser(p, f.now)
	require.NoError(t, err)
	created, err := f.repo.Create(f.ctx, u)
	require.NoError(t, err)
	return created
}
