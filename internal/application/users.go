package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/userhub/internal/domain/user"
	"github.com/geocoder89/userhub/internal/observability"
	"github.com/geocoder89/userhub/internal/repo/dberr"
)

type PasswordHasher interface {
	Hash(plain string) (string, error)
}

// UserService runs the user write pipeline and the list query. Every
// operation opens its own transaction and surfaces errors as domain kinds.
type UserService struct {
	store  user.Store
	hasher PasswordHasher
	log    *slog.Logger
	prom   *observability.Prom
	now    func() time.Time
}

type Option func(*UserService)

// WithClock overrides the wall clock used for timestamps and age derivation.
func WithClock(now func() time.Time) Option {
	return func(s *UserService) { s.now = now }
}

func WithMetrics(prom *observability.Prom) Option {
	return func(s *UserService) { s.prom = prom }
}

func NewUserService(store user.Store, hasher PasswordHasher, log *slog.Logger, opts ...Option) *UserService {
	s := &UserService{
		store:  store,
		hasher: hasher,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// fail translates err once and logs unclassified storage failures with full detail.
func (s *UserService) fail(ctx context.Context, op string, err error) error {
	err = dberr.Translate(op, err)

	var se *user.StorageError
	switch {
	case errors.As(err, &se):
		s.log.ErrorContext(ctx, "storage error", "op", se.Op, "err", se.Err)
	case errors.Is(err, user.ErrPasswordHash):
		s.log.ErrorContext(ctx, "password hashing failed", "op", op, "err", err)
	}
	return err
}

// inTx runs fn inside one transaction, committing only when fn succeeds.
func (s *UserService) inTx(ctx context.Context, fn func(tx user.Tx) error) (err error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = fn(tx)
	if err != nil {
		return
	}

	err = tx.Commit(ctx)
	return
}

func (s *UserService) Create(ctx context.Context, req user.CreateUserRequest) (created user.User, err error) {
	defer func() { s.prom.ObserveWrite("create", err) }()

	now := s.now()

	err = s.inTx(ctx, func(tx user.Tx) error {
		_, e := s.store.FindByEmailTx(ctx, tx, req.Email)
		if e == nil {
			return &user.DuplicateEmailError{Email: req.Email}
		}
		if !errors.Is(e, user.ErrNotFound) {
			return e
		}

		var birthDate *time.Time
		age := 0
		if req.BirthDate != "" {
			bd, e := user.ParseDate(req.BirthDate)
			if e != nil {
				return e
			}
			if age, e = user.AgeAt(bd, now); e != nil {
				return e
			}
			birthDate = &bd
		}

		hash, e := s.hasher.Hash(req.Password)
		if e != nil {
			return fmt.Errorf("%w: %v", user.ErrPasswordHash, e)
		}

		created, e = s.store.InsertTx(ctx, tx, user.NewFromCreateRequest(req, hash, birthDate, age, now))
		return e
	})

	if err != nil {
		return user.User{}, s.fail(ctx, "users.create", err)
	}

	s.log.InfoContext(ctx, "user created", "user_id", created.ID, "role", created.Role)
	return created, nil
}

func (s *UserService) Update(ctx context.Context, id string, req user.UpdateUserRequest) (updated user.User, err error) {
	defer func() { s.prom.ObserveWrite("update", err) }()

	now := s.now()

	err = s.inTx(ctx, func(tx user.Tx) error {
		current, e := s.store.FindByIDTx(ctx, tx, id)
		if errors.Is(e, user.ErrNotFound) {
			return &user.NotFoundError{ID: id}
		}
		if e != nil {
			return e
		}

		// only a different user owning the new address is a collision
		if req.Email != nil && *req.Email != current.Email {
			owner, e := s.store.FindByEmailTx(ctx, tx, *req.Email)
			if e == nil && owner.ID != id {
				return &user.DuplicateEmailError{Email: *req.Email}
			}
			if e != nil && !errors.Is(e, user.ErrNotFound) {
				return e
			}
		}

		changes, e := s.deriveChanges(current, req, now)
		if e != nil {
			return e
		}

		updated, e = s.store.UpdateTx(ctx, tx, id, changes)
		if errors.Is(e, user.ErrNotFound) {
			return &user.NotFoundError{ID: id}
		}
		return e
	})

	if err != nil {
		return user.User{}, s.fail(ctx, "users.update", err)
	}

	s.log.InfoContext(ctx, "user updated", "user_id", updated.ID)
	return updated, nil
}

// deriveChanges maps the present request fields onto columns and recomputes
// the derived ones they touch.
func (s *UserService) deriveChanges(current user.User, req user.UpdateUserRequest, now time.Time) (user.Changes, error) {
	c := user.Changes{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		UpdatedAt: now,
	}

	if req.FirstName != nil || req.LastName != nil {
		first, last := current.FirstName, current.LastName
		if req.FirstName != nil {
			first = *req.FirstName
		}
		if req.LastName != nil {
			last = *req.LastName
		}
		full := user.FullName(first, last)
		c.FullName = &full
	}

	if req.BirthDate != nil {
		bd, err := user.ParseDate(*req.BirthDate)
		if err != nil {
			return user.Changes{}, err
		}
		age, err := user.AgeAt(bd, now)
		if err != nil {
			return user.Changes{}, err
		}
		c.BirthDate = &bd
		c.Age = &age
	}

	if req.Password != nil {
		hash, err := s.hasher.Hash(*req.Password)
		if err != nil {
			return user.Changes{}, fmt.Errorf("%w: %v", user.ErrPasswordHash, err)
		}
		c.PasswordHash = &hash
	}

	if req.Role != nil {
		role := user.Role(*req.Role)
		c.Role = &role
	}

	return c, nil
}

// Deactivate soft-deletes the user: the row stays, is_active flips to false.
func (s *UserService) Deactivate(ctx context.Context, id string) (deactivated user.User, err error) {
	defer func() { s.prom.ObserveWrite("deactivate", err) }()

	now := s.now()

	err = s.inTx(ctx, func(tx user.Tx) error {
		current, e := s.store.FindByIDTx(ctx, tx, id)
		if errors.Is(e, user.ErrNotFound) {
			return &user.NotFoundError{ID: id}
		}
		if e != nil {
			return e
		}

		if e := s.store.DeactivateTx(ctx, tx, id, now); e != nil {
			if errors.Is(e, user.ErrNotFound) {
				return &user.NotFoundError{ID: id}
			}
			return e
		}

		current.IsActive = false
		current.UpdatedAt = now
		deactivated = current
		return nil
	})

	if err != nil {
		return user.User{}, s.fail(ctx, "users.deactivate", err)
	}

	s.log.InfoContext(ctx, "user deactivated", "user_id", id)
	return deactivated, nil
}

// FindOne returns nil without an error when no user has the id. Inactive
// users are returned too.
func (s *UserService) FindOne(ctx context.Context, id string) (*user.User, error) {
	u, err := s.store.GetByID(ctx, id)
	if errors.Is(err, user.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.fail(ctx, "users.find_one", err)
	}
	return &u, nil
}

func (s *UserService) List(ctx context.Context, q user.ListUsersQuery) (user.Page, error) {
	page, limit := q.PageAndLimit()

	items, total, err := s.store.List(ctx, q.Filter())
	if err != nil {
		return user.Page{}, s.fail(ctx, "users.list", err)
	}

	return user.NewPage(items, total, page, limit), nil
}
