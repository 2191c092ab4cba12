package application_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/rxcheck-identity/internal/application"
	"github.com/oksasatya/rxcheck-identity/internal/domain/entity"
	"github.com/oksasatya/rxcheck-identity/internal/domain/errs"
	"github.com/oksasatya/rxcheck-identity/internal/domain/port"
)

type mockIndex struct{ mock.Mock }

func (m *mockIndex) Index(ctx context.Context, u *entity.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *mockIndex) Search(ctx context.Context, q string, size int) ([]port.IndexedUser, error) {
	args := m.Called(ctx, q, size)
	out, _ := args.Get(0).([]port.IndexedUser)
	return out, args.Error(1)
}

func (f *fixture) userService(storage port.ObjectStorage, index port.UserIndex) *application.UserService {
	f.notifier.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	s := application.NewUserService(f.repo, f.creds, storage, index, f.notes, f.logger)
	s.Now = f.clock
	return s
}

func patientInput() application.CreateUserInput {
	return application.CreateUserInput{
		Name:          "Dante",
		FirstSurname:  "Gómez",
		SecondSurname: "Rivas",
		Identifier:    "gode561231hdfrns02",
		Email:         "Dante@Example.com",
		Password:      "s3cret-pass",
	}
}

func TestUserService_CreatePatient(t *testing.T) {
	f := newFixture(t)
	svc := f.userService(nil, nil)

	u, err := svc.Create(f.ctx, patientInput())
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "GODE561231HDFRNS02", u.Identifier)
	assert.Equal(t, "dante@example.com", u.Email)
	assert.Equal(t, entity.RolePatient, u.Role)
	assert.True(t, u.Active)
	assert.True(t, strings.HasPrefix(u.PasswordHash, "$2"))
	assert.True(t, f.creds.Verify("s3cret-pass", u.PasswordHash))

	f.notes.Wait()
	f.notifier.AssertCalled(t, "Send", mock.Anything, port.NotifyUserCreated, "dante@example.com", mock.Anything)
}

func TestUserService_CreateRejections(t *testing.T) {
	f := newFixture(t)
	svc := f.userService(nil, nil)
	_, err := svc.Create(f.ctx, patientInput())
	require.NoError(t, err)

	t.Run("duplicate identifier", func(t *testing.T) {
		in := patientInput()
		in.Email = "other@example.com"
		_, err := svc.Create(f.ctx, in)
		assert.ErrorIs(t, err, errs.ErrDuplicateIdentity)
	})
	t.Run("duplicate email", func(t *testing.T) {
		in := patientInput()
		in.Identifier = "MAPR900215MJCRRS05"
		_, err := svc.Create(f.ctx, in)
		assert.ErrorIs(t, err, errs.ErrDuplicateIdentity)
	})
	t.Run("short password", func(t *testing.T) {
		in := patientInput()
		in.Identifier = "PEPJ800101HDFRRN03"
		in.Email = "p@example.com"
		in.Password = "short"
		_, err := svc.Create(f.ctx, in)
		assert.ErrorIs(t, err, errs.ErrValidation)
	})
	t.Run("blacklisted identifier", func(t *testing.T) {
		in := patientInput()
		in.Identifier = "PUTO900101HDFRRN06"
		in.Email = "q@example.com"
		_, err := svc.Create(f.ctx, in)
		var ve *errs.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "identifier", ve.Field)
	})
	t.Run("pharmacy without tax id", func(t *testing.T) {
		_, err := svc.Create(f.ctx, application.CreateUserInput{
			Name:     "Farmacia Central",
			Email:    "farmacia@example.com",
			Password: "s3cret-pass",
			Role:     entity.RolePharmacy,
		})
		var ve *errs.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "tax_id", ve.Field)
	})
}

func TestUserService_CreatePharmacy(t *testing.T) {
	f := newFixture(t)
	svc := f.userService(nil, nil)

	u, err := svc.Create(f.ctx, application.CreateUserInput{
		Name:     "Farmacia Central",
		TaxID:    "FAR850312AB1",
		Email:    "farmacia@example.com",
		Password: "s3cret-pass",
		Role:     entity.RolePharmacy,
	})
	require.NoError(t, err)
	assert.Equal(t, "FAR850312AB1", u.Identifier)
	assert.Equal(t, "FAR850312AB1", u.TaxID)
}

func TestUserService_CreateWithExistingHash(t *testing.T) {
	f := newFixture(t)
	svc := f.userService(nil, nil)
	hash, err := f.creds.Hash("imported-pass")
	require.NoError(t, err)

	in := patientInput()
	in.Password = hash
	in.PasswordIsHashed = true
	u, err := svc.Create(f.ctx, in)
	require.NoError(t, err)
	assert.Equal(t, hash, u.PasswordHash)
	assert.True(t, f.creds.Verify("imported-pass", u.PasswordHash))
}

func TestUserService_RejectsFlaggedPlaintext(t *testing.T) {
	f := newFixture(t)
	svc := f.userService(nil, nil)

	in := patientInput()
	in.Password = "plaintext"
	in.PasswordIsHashed = true
	_, err := svc.Create(f.ctx, in)
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = svc.Create(f.ctx, patientInput())
	require.NoError(t, err)
	_, err = svc.Update(f.ctx, "GODE561231HDFRNS02", application.UpdateUserInput{
		Password:         "plaintext-password",
		PasswordIsHashed: true,
	})
	assert.ErrorIs(t, err, errs.ErrValidation)

	stored, err := f.repo.FindByIdentifier(f.ctx, "GODE561231HDFRNS02")
	require.NoError(t, err)
	assert.True(t, f.creds.IsHash(stored.PasswordHash))
	assert.True(t, f.creds.Verify("s3cret-pass", stored.PasswordHash))
}

func TestUserService_UpdateMergesFields(t *testing.T) {
	f := newFixture(t)
	svc := f.userService(nil, nil)
	created, err := svc.Create(f.ctx, patientInput())
	require.NoError(t, err)

	f.now = f.now.Add(time.Hour)
	updated, err := svc.Update(f.ctx, "gode561231hdfrns02", application.UpdateUserInput{
		Phone:    "+52 55 1234 5678",
		Password: "brand-new-pass",
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Dante", updated.Name)
	assert.Equal(t, "+52 55 1234 5678", updated.Phone)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, f.now, updated.UpdatedAt)
	assert.True(t, f.creds.Verify("brand-new-pass", updated.PasswordHash))

	_, err = svc.Update(f.ctx, "MAPR900215MJCRRS05", application.UpdateUserInput{Phone: "1"})
	assert.ErrorIs(t, err, application.ErrUserNotFound)
}

func TestUserService_DeleteDeactivates(t *testing.T) {
	f := newFixture(t)
	idx := &mockIndex{}
	idx.On("Index", mock.Anything, mock.Anything).Return(nil)
	svc := f.userService(nil, idx)
	created, err := svc.Create(f.ctx, patientInput())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(f.ctx, created.Identifier))

	_, err = svc.Get(f.ctx, created.Identifier)
	assert.ErrorIs(t, err, application.ErrUserNotFound)
	_, err = svc.GetByID(f.ctx, created.ID)
	assert.ErrorIs(t, err, application.ErrUserNotFound)
	assert.ErrorIs(t, svc.Delete(f.ctx, created.Identifier), application.ErrUserNotFound)

	stored, err := f.repo.FindByID(f.ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)

	idx.AssertNumberOfCalls(t, "Index", 2)
	f.notes.Wait()
	f.notifier.AssertCalled(t, "Send", mock.Anything, port.NotifyUserDeleted, "dante@example.com", mock.Anything)
}

func TestUserService_ListNewestFirstWithAvatars(t *testing.T) {
	f := newFixture(t)
	storage := &mockStorage{}
	svc := f.userService(storage, nil)

	first, err := svc.Create(f.ctx, patientInput())
	require.NoError(t, err)
	f.now = f.now.Add(time.Minute)
	in := patientInput()
	in.Identifier = "MAPR900215MJCRRS05"
	in.Email = "maria@example.com"
	second, err := svc.Create(f.ctx, in)
	require.NoError(t, err)

	_, err = svc.UploadAvatar(f.ctx, first.Identifier, bytes.NewReader(testPNG(t, 64, 64)), "me.png")
	require.NoError(t, err)

	list, err := svc.List(f.ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].User.ID)
	assert.Empty(t, list[0].AvatarURL)
	assert.Equal(t, first.ID, list[1].User.ID)
	assert.True(t, strings.HasPrefix(list[1].AvatarURL, "https://cdn.test/users/"))
}

func TestUserService_UploadAvatarResizes(t *testing.T) {
	f := newFixture(t)
	storage := &mockStorage{}
	svc := f.userService(storage, nil)
	created, err := svc.Create(f.ctx, patientInput())
	require.NoError(t, err)

	res, err := svc.UploadAvatar(f.ctx, created.Identifier, bytes.NewReader(testPNG(t, 1024, 512)), "photo.png")
	require.NoError(t, err)
	assert.Regexp(t, `^users/[0-9a-f-]{36}\.png$`, res.User.AvatarKey)
	assert.Contains(t, res.AvatarURL, res.User.AvatarKey)

	img, err := png.Decode(bytes.NewReader(storage.uploads[res.User.AvatarKey]))
	require.NoError(t, err)
	assert.Equal(t, 512, img.Bounds().Dx())
	assert.Equal(t, 256, img.Bounds().Dy())

	_, err = svc.UploadAvatar(f.ctx, created.Identifier, strings.NewReader("not an image"), "x.png")
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestUserService_UploadAvatarWithoutStorage(t *testing.T) {
	f := newFixture(t)
	svc := f.userService(nil, nil)

	_, err := svc.UploadAvatar(f.ctx, "GODE561231HDFRNS02", strings.NewReader(""), "x.png")
	assert.ErrorIs(t, err, application.ErrStorageDisabled)
	assert.ErrorIs(t, err, errs.ErrUnavailable)
}

func TestUserService_Search(t *testing.T) {
	f := newFixture(t)

	empty, err := f.userService(nil, nil).Search(f.ctx, "dante", 5)
	require.NoError(t, err)
	assert.Empty(t, empty)

	idx := &mockIndex{}
	hits := []port.IndexedUser{{ID: "u1", Identifier: "GODE561231HDFRNS02"}}
	idx.On("Search", mock.Anything, "dante", 10).Return(hits, nil)
	got, err := f.userService(nil, idx).Search(f.ctx, "dante", 500)
	require.NoError(t, err)
	assert.Equal(t, hits, got)
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
