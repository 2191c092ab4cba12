// Package memory provides in-process stores for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/oksasatya/rxcheck-identity/internal/domain/entity"
	"github.com/oksasatya/rxcheck-identity/internal/domain/errs"
)

// UserRepository keeps users in a map guarded by a mutex. Identifier and email
// are unique across active and inactive records, like the SQL schema.
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]entity.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]entity.User)}
}

func (r *UserRepository) Create(_ context.Context, u *entity.User) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkUnique(u, ""); err != nil {
		return nil, err
	}
	cp := *u
	cp.ID = uuid.NewString()
	r.users[cp.ID] = cp
	out := cp
	return &out, nil
}

func (r *UserRepository) Update(_ context.Context, u *entity.User) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[u.ID]; !ok {
		return nil, errs.ErrNotFound
	}
	if err := r.checkUnique(u, u.ID); err != nil {
		return nil, err
	}
	cp := *u
	r.users[cp.ID] = cp
	out := cp
	return &out, nil
}

func (r *UserRepository) Delete(_ context.Context, identifier string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, u := range r.users {
		if u.Identifier == identifier && u.Active {
			u.Active = false
			r.users[id] = u
			out := u
			return &out, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (r *UserRepository) FindByID(_ context.Context, id string) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &u, nil
}

func (r *UserRepository) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	return r.findOne(func(u entity.User) bool { return u.Email == email })
}

func (r *UserRepository) FindByIdentifier(_ context.Context, identifier string) (*entity.User, error) {
	return r.findOne(func(u entity.User) bool { return u.Identifier == identifier && u.Active })
}

func (r *UserRepository) FindAll(_ context.Context) ([]*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entity.User, 0, len(r.users))
	for _, u := range r.users {
		if !u.Active {
			continue
		}
		cp := u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *UserRepository) findOne(match func(entity.User) bool) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (r *UserRepository) checkUnique(u *entity.User, selfID string) error {
	for id, other := range r.users {
		if id == selfID {
			continue
		}
		if other.Identifier == u.Identifier {
			return &errs.DuplicateError{Field: "identifier"}
		}
		if other.Email == u.Email {
			return &errs.DuplicateError{Field: "email"}
		}
	}
	return nil
}
