// Package mongo stores users in a MongoDB collection.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/oksasatya/rxcheck-identity/internal/domain/entity"
	"github.com/oksasatya/rxcheck-identity/internal/domain/errs"
	"github.com/oksasatya/rxcheck-identity/internal/domain/repository"
)

type userDocument struct {
	ID                      string     `bson:"_id"`
	Name                    string     `bson:"name"`
	FirstSurname            string     `bson:"first_surname"`
	SecondSurname           string     `bson:"second_surname"`
	Identifier              string     `bson:"identifier"`
	TaxID                   string     `bson:"tax_id,omitempty"`
	AvatarKey               string     `bson:"avatar_key,omitempty"`
	Email                   string     `bson:"email"`
	PasswordHash            string     `bson:"password_hash"`
	SecondFactorSecret      string     `bson:"second_factor_secret,omitempty"`
	SecondFactorEnabled     bool       `bson:"second_factor_enabled"`
	Role                    string     `bson:"role"`
	Active                  bool       `bson:"active"`
	ResetCode               string     `bson:"reset_code,omitempty"`
	ResetCodeExpiresAt      *time.Time `bson:"reset_code_expires_at,omitempty"`
	BirthDate               string     `bson:"birth_date,omitempty"`
	LicenseNumber           string     `bson:"license_number,omitempty"`
	Phone                   string     `bson:"phone,omitempty"`
	Address                 string     `bson:"address,omitempty"`
	PrescriptionPermissions string     `bson:"prescription_permissions,omitempty"`
	TermsAcceptance         string     `bson:"terms_acceptance,omitempty"`
	CreatedAt               time.Time  `bson:"created_at"`
	UpdatedAt               time.Time  `bson:"updated_at"`
}

type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(col *mongo.Collection) *UserRepository {
	return &UserRepository{col: col}
}

// EnsureIndexes creates the unique indexes the repository relies on.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "identifier", Value: 1}}, Options: options.Index().SetUnique(true).SetName("identifier_unique")},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("email_unique")},
		{Keys: bson.D{{Key: "active", Value: 1}, {Key: "created_at", Value: -1}}, Options: options.Index().SetName("active_created")},
	})
	if err != nil {
		return errs.Unavailable("users.ensure_indexes", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) (*entity.User, error) {
	out := *u
	out.ID = uuid.NewString()
	if _, err := r.col.InsertOne(ctx, toDocument(&out)); err != nil {
		return nil, mapWriteErr("users.create", err)
	}
	return &out, nil
}

func (r *UserRepository) Update(ctx context.Context, u *entity.User) (*entity.User, error) {
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": u.ID}, toDocument(u))
	if err != nil {
		return nil, mapWriteErr("users.update", err)
	}
	if res.MatchedCount == 0 {
		return nil, errs.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (r *UserRepository) Delete(ctx context.Context, identifier string) (*entity.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	res := r.col.FindOneAndUpdate(ctx,
		bson.M{"identifier": identifier, "active": true},
		bson.M{"$set": bson.M{"active": false, "updated_at": time.Now().UTC()}},
		opts,
	)
	return decodeOne("users.delete", res)
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	return decodeOne("users.find_by_id", r.col.FindOne(ctx, bson.M{"_id": id}))
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return decodeOne("users.find_by_email", r.col.FindOne(ctx, bson.M{"email": email}))
}

func (r *UserRepository) FindByIdentifier(ctx context.Context, identifier string) (*entity.User, error) {
	return decodeOne("users.find_by_identifier", r.col.FindOne(ctx, bson.M{"identifier": identifier, "active": true}))
}

func (r *UserRepository) FindAll(ctx context.Context) ([]*entity.User, error) {
	cur, err := r.col.Find(ctx, bson.M{"active": true}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, errs.Unavailable("users.find_all", err)
	}
	defer cur.Close(ctx)

	var out []*entity.User
	for cur.Next(ctx) {
		var doc userDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, errs.Unavailable("users.find_all", err)
		}
		u, err := fromDocument(&doc)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := cur.Err(); err != nil {
		return nil, errs.Unavailable("users.find_all", err)
	}
	return out, nil
}

func decodeOne(op string, res *mongo.SingleResult) (*entity.User, error) {
	var doc userDocument
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errs.ErrNotFound
		}
		return nil, errs.Unavailable(op, err)
	}
	return fromDocument(&doc)
}

func mapWriteErr(op string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		if strings.Contains(err.Error(), "email") {
			return &errs.DuplicateError{Field: "email"}
		}
		return &errs.DuplicateError{Field: "identifier"}
	}
	return errs.Unavailable(op, err)
}

func toDocument(u *entity.User) *userDocument {
	return &userDocument{
		ID:                      u.ID,
		Name:                    u.Name,
		FirstSurname:            u.FirstSurname,
		SecondSurname:           u.SecondSurname,
		Identifier:              u.Identifier,
		TaxID:                   u.TaxID,
		AvatarKey:               u.AvatarKey,
		Email:                   u.Email,
		PasswordHash:            u.PasswordHash,
		SecondFactorSecret:      u.SecondFactorSecret,
		SecondFactorEnabled:     u.SecondFactorEnabled,
		Role:                    string(u.Role),
		Active:                  u.Active,
		ResetCode:               u.ResetCode,
		ResetCodeExpiresAt:      u.ResetCodeExpiresAt,
		BirthDate:               u.BirthDate,
		LicenseNumber:           u.LicenseNumber,
		Phone:                   u.Phone,
		Address:                 u.Address,
		PrescriptionPermissions: string(u.PrescriptionPermissions),
		TermsAcceptance:         string(u.TermsAcceptance),
		CreatedAt:               u.CreatedAt,
		UpdatedAt:               u.UpdatedAt,
	}
}

func fromDocument(d *userDocument) (*entity.User, error) {
	active := d.Active
	return entity.RestoreUser(entity.UserParams{
		ID:                      d.ID,
		Name:                    d.Name,
		FirstSurname:            d.FirstSurname,
		SecondSurname:           d.SecondSurname,
		Identifier:              d.Identifier,
		TaxID:                   d.TaxID,
		AvatarKey:               d.AvatarKey,
		Email:                   d.Email,
		PasswordHash:            d.PasswordHash,
		SecondFactorSecret:      d.SecondFactorSecret,
		SecondFactorEnabled:     d.SecondFactorEnabled,
		Role:                    entity.Role(d.Role),
		Active:                  &active,
		ResetCode:               d.ResetCode,
		ResetCodeExpiresAt:      d.ResetCodeExpiresAt,
		BirthDate:               d.BirthDate,
		LicenseNumber:           d.LicenseNumber,
		Phone:                   d.Phone,
		Address:                 d.Address,
		PrescriptionPermissions: rawJSON(d.PrescriptionPermissions),
		TermsAcceptance:         rawJSON(d.TermsAcceptance),
		CreatedAt:               d.CreatedAt.UTC(),
		UpdatedAt:               d.UpdatedAt.UTC(),
	})
}

func rawJSON(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	return json.RawMessage(s)
}

var _ repository.UserRepository = (*UserRepository)(nil)
