package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/oksasatya/rxcheck-identity/internal/domain/entity"
	"github.com/oksasatya/rxcheck-identity/internal/domain/errs"
	"github.com/oksasatya/rxcheck-identity/internal/domain/port"
	repo "github.com/oksasatya/rxcheck-identity/internal/domain/repository"
	"github.com/oksasatya/rxcheck-identity/pkg/helpers"
)

// UserService manages the user directory.
type UserService struct {
	Repo          repo.UserRepository
	Credentials   *CredentialManager
	Storage       port.ObjectStorage
	Index         port.UserIndex
	Notifications *Notifications
	Logger        *logrus.Logger
	SignedURLTTL  time.Duration
	AvatarMaxPx   int
	Now           func() time.Time
}

func NewUserService(r repo.UserRepository, creds *CredentialManager, storage port.ObjectStorage, index port.UserIndex, n *Notifications, logger *logrus.Logger) *UserService {
	return &UserService{
		Repo:          r,
		Credentials:   creds,
		Storage:       storage,
		Index:         index,
		Notifications: n,
		Logger:        logger,
		SignedURLTTL:  15 * time.Minute,
		AvatarMaxPx:   512,
		Now:           time.Now,
	}
}

// UserWithAvatar pairs a user with a short-lived avatar URL.
type UserWithAvatar struct {
	User      *entity.User
	AvatarURL string
}

type CreateUserInput struct {
	Name                    string
	FirstSurname            string
	SecondSurname           string
	Identifier              string
	TaxID                   string
	Email                   string
	Password                string
	PasswordIsHashed        bool
	Role                    entity.Role
	BirthDate               string
	LicenseNumber           string
	Phone                   string
	Address                 string
	PrescriptionPermissions json.RawMessage
	TermsAcceptance         json.RawMessage
}

// UpdateUserInput merges non-empty fields into the stored user.
type UpdateUserInput struct {
	Name                    string
	FirstSurname            string
	SecondSurname           string
	TaxID                   string
	Email                   string
	Password                string
	PasswordIsHashed        bool
	Role                    entity.Role
	BirthDate               string
	LicenseNumber           string
	Phone                   string
	Address                 string
	PrescriptionPermissions json.RawMessage
	TermsAcceptance         json.RawMessage
}

func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*entity.User, error) {
	p := entity.UserParams{
		Name:                    in.Name,
		FirstSurname:            in.FirstSurname,
		SecondSurname:           in.SecondSurname,
		Identifier:              in.Identifier,
		TaxID:                   in.TaxID,
		Email:                   normalizeEmail(in.Email),
		Role:                    in.Role,
		BirthDate:               in.BirthDate,
		LicenseNumber:           in.LicenseNumber,
		Phone:                   in.Phone,
		Address:                 in.Address,
		PrescriptionPermissions: in.PrescriptionPermissions,
		TermsAcceptance:         in.TermsAcceptance,
	}
	if p.Role == entity.RolePharmacy {
		if strings.TrimSpace(in.TaxID) == "" {
			return nil, errs.Invalid("tax_id", "required for pharmacies")
		}
		p.Identifier = in.TaxID
	}

	hash, err := s.passwordHash(in.Password, in.PasswordIsHashed)
	if err != nil {
		return nil, err
	}
	p.PasswordHash = hash

	u, err := entity.NewUser(p, s.Now())
	if err != nil {
		return nil, err
	}
	created, err := s.Repo.Create(ctx, u)
	if err != nil {
		return nil, err
	}

	s.index(ctx, created)
	s.Notifications.Dispatch(ctx, port.NotifyUserCreated, created.Email, map[string]any{
		"Name": created.FullName(),
		"Role": string(created.Role),
	})
	return created, nil
}

// Get returns an active user by identifier.
func (s *UserService) Get(ctx context.Context, identifier string) (*UserWithAvatar, error) {
	u, err := s.Repo.FindByIdentifier(ctx, strings.ToUpper(strings.TrimSpace(identifier)))
	if err != nil {
		return nil, notFound(err)
	}
	return s.withAvatar(ctx, u), nil
}

// GetByID returns the active user behind a session.
func (s *UserService) GetByID(ctx context.Context, id string) (*UserWithAvatar, error) {
	u, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	if !u.Active {
		return nil, ErrUserNotFound
	}
	return s.withAvatar(ctx, u), nil
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*UserWithAvatar, error) {
	u, err := s.Repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, notFound(err)
	}
	if !u.Active {
		return nil, ErrUserNotFound
	}
	return s.withAvatar(ctx, u), nil
}

// List returns active users, newest first, signing avatar URLs concurrently.
func (s *UserService) List(ctx context.Context) ([]UserWithAvatar, error) {
	users, err := s.Repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]UserWithAvatar, len(users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, u := range users {
		out[i].User = u
		if u.AvatarKey == "" || s.Storage == nil {
			continue
		}
		g.Go(func() error {
			out[i].AvatarURL = s.sign(gctx, u.AvatarKey)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *UserService) Update(ctx context.Context, identifier string, in UpdateUserInput) (*entity.User, error) {
	u, err := s.Repo.FindByIdentifier(ctx, strings.ToUpper(strings.TrimSpace(identifier)))
	if err != nil {
		return nil, notFound(err)
	}

	p := u.Params()
	setIf(&p.Name, in.Name)
	setIf(&p.FirstSurname, in.FirstSurname)
	setIf(&p.SecondSurname, in.SecondSurname)
	setIf(&p.BirthDate, in.BirthDate)
	setIf(&p.LicenseNumber, in.LicenseNumber)
	setIf(&p.Phone, in.Phone)
	setIf(&p.Address, in.Address)
	if in.Email != "" {
		p.Email = normalizeEmail(in.Email)
	}
	if in.Role != "" {
		p.Role = in.Role
	}
	if in.TaxID != "" {
		p.TaxID = in.TaxID
		if p.Role == entity.RolePharmacy {
			p.Identifier = in.TaxID
		}
	}
	if len(in.PrescriptionPermissions) > 0 {
		p.PrescriptionPermissions = in.PrescriptionPermissions
	}
	if len(in.TermsAcceptance) > 0 {
		p.TermsAcceptance = in.TermsAcceptance
	}
	if in.Password != "" {
		hash, err := s.passwordHash(in.Password, in.PasswordIsHashed)
		if err != nil {
			return nil, err
		}
		p.PasswordHash = hash
	}

	next, err := u.Replace(p, s.Now())
	if err != nil {
		return nil, err
	}
	updated, err := s.Repo.Update(ctx, next)
	if err != nil {
		return nil, err
	}

	s.index(ctx, updated)
	s.Notifications.Dispatch(ctx, port.NotifyUserUpdated, updated.Email, map[string]any{
		"Name": updated.FullName(),
	})
	return updated, nil
}

// Delete deactivates the user; the record is kept.
func (s *UserService) Delete(ctx context.Context, identifier string) error {
	u, err := s.Repo.Delete(ctx, strings.ToUpper(strings.TrimSpace(identifier)))
	if err != nil {
		return notFound(err)
	}
	s.index(ctx, u)
	s.Notifications.Dispatch(ctx, port.NotifyUserDeleted, u.Email, map[string]any{
		"Name": u.FullName(),
	})
	return nil
}

// UploadAvatar resizes the image, stores it under users/<uuid>.<ext> and
// records the key on the user.
func (s *UserService) UploadAvatar(ctx context.Context, identifier string, r io.Reader, filename string) (*UserWithAvatar, error) {
	if s.Storage == nil {
		return nil, ErrStorageDisabled
	}
	u, err := s.Repo.FindByIdentifier(ctx, strings.ToUpper(strings.TrimSpace(identifier)))
	if err != nil {
		return nil, notFound(err)
	}

	avatar, err := helpers.NormalizeAvatar(r, filename, s.AvatarMaxPx)
	if err != nil {
		return nil, errs.Invalid("avatar", "unsupported image")
	}
	key, err := s.Storage.Upload(ctx, "users/"+uuid.NewString()+"."+avatar.Ext, avatar.ContentType, bytes.NewReader(avatar.Data))
	if err != nil {
		return nil, err
	}

	p := u.Params()
	p.AvatarKey = key
	next, err := u.Replace(p, s.Now())
	if err != nil {
		return nil, err
	}
	updated, err := s.Repo.Update(ctx, next)
	if err != nil {
		return nil, err
	}
	s.index(ctx, updated)
	return s.withAvatar(ctx, updated), nil
}

// Search queries the user index. Without an index it returns nothing.
func (s *UserService) Search(ctx context.Context, q string, size int) ([]port.IndexedUser, error) {
	if s.Index == nil {
		return []port.IndexedUser{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	return s.Index.Search(ctx, q, size)
}

func (s *UserService) passwordHash(password string, hashed bool) (string, error) {
	if hashed {
		if !s.Credentials.IsHash(password) {
			return "", errs.Invalid("password", "is not a valid password hash")
		}
		return password, nil
	}
	if err := checkPlaintext(password); err != nil {
		return "", err
	}
	return s.Credentials.Hash(password)
}

func (s *UserService) withAvatar(ctx context.Context, u *entity.User) *UserWithAvatar {
	out := &UserWithAvatar{User: u}
	if u.AvatarKey != "" && s.Storage != nil {
		out.AvatarURL = s.sign(ctx, u.AvatarKey)
	}
	return out
}

func (s *UserService) sign(ctx context.Context, key string) string {
	url, err := s.Storage.Sign(ctx, key, s.SignedURLTTL)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("key", key).Warn("sign avatar url failed")
		}
		return ""
	}
	return url
}

func (s *UserService) index(ctx context.Context, u *entity.User) {
	if s.Index == nil {
		return
	}
	if err := s.Index.Index(ctx, u); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Warn("user index failed")
	}
}

func notFound(err error) error {
	if errors.Is(err, errs.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
