package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/userhub/internal/domain/user"
)

var errForeignTx = errors.New("memory: transaction was not started by this repository")

// UsersRepo keeps users in process. One transaction runs at a time: BeginTx
// holds the write slot until Commit or Rollback, so check-then-insert
// sequences never interleave.
type UsersRepo struct {
	mu    sync.RWMutex
	items map[string]user.User

	writeSlot chan struct{}
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items:     make(map[string]user.User),
		writeSlot: make(chan struct{}, 1),
	}
}

var _ user.Store = (*UsersRepo)(nil)

type tx struct {
	repo    *UsersRepo
	pending map[string]user.User
	once    sync.Once
	done    bool
}

func (t *tx) release() {
	t.once.Do(func() {
		t.done = true
		<-t.repo.writeSlot
	})
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return errors.New("memory: tx already closed")
	}

	t.repo.mu.Lock()
	for id, u := range t.pending {
		t.repo.items[id] = u
	}
	t.repo.mu.Unlock()

	t.release()
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	t.pending = nil
	t.release()
	return nil
}

func (r *UsersRepo) BeginTx(ctx context.Context) (user.Tx, error) {
	select {
	case r.writeSlot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return &tx{repo: r, pending: make(map[string]user.User)}, nil
}

func (r *UsersRepo) own(t user.Tx) (*tx, error) {
	mt, ok := t.(*tx)
	if !ok || mt.repo != r {
		return nil, errForeignTx
	}
	if mt.done {
		return nil, errors.New("memory: tx already closed")
	}
	return mt, nil
}

// view returns the row as the transaction sees it.
func (t *tx) view(id string) (user.User, bool) {
	if u, ok := t.pending[id]; ok {
		return u, true
	}

	t.repo.mu.RLock()
	u, ok := t.repo.items[id]
	t.repo.mu.RUnlock()
	return u, ok
}

func (t *tx) findByEmail(email string) (user.User, bool) {
	for _, u := range t.pending {
		if u.Email == email {
			return u, true
		}
	}

	t.repo.mu.RLock()
	defer t.repo.mu.RUnlock()

	for id, u := range t.repo.items {
		if _, shadowed := t.pending[id]; shadowed {
			continue
		}
		if u.Email == email {
			return u, true
		}
	}
	return user.User{}, false
}

func (r *UsersRepo) FindByEmailTx(ctx context.Context, t user.Tx, email string) (user.User, error) {
	mt, err := r.own(t)
	if err != nil {
		return user.User{}, err
	}

	u, ok := mt.findByEmail(email)
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) FindByIDTx(ctx context.Context, t user.Tx, id string) (user.User, error) {
	mt, err := r.own(t)
	if err != nil {
		return user.User{}, err
	}

	u, ok := mt.view(id)
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) InsertTx(ctx context.Context, t user.Tx, u user.User) (user.User, error) {
	mt, err := r.own(t)
	if err != nil {
		return user.User{}, err
	}

	// same guarantees as the table constraints
	if _, exists := mt.view(u.ID); exists {
		return user.User{}, &user.ColumnError{Kind: user.ErrDuplicateValue, Field: "id", Value: u.ID}
	}
	if _, taken := mt.findByEmail(u.Email); taken {
		return user.User{}, &user.ColumnError{Kind: user.ErrDuplicateValue, Field: "email", Value: u.Email}
	}

	mt.pending[u.ID] = u
	return u, nil
}

func (r *UsersRepo) UpdateTx(ctx context.Context, t user.Tx, id string, changes user.Changes) (user.User, error) {
	mt, err := r.own(t)
	if err != nil {
		return user.User{}, err
	}

	current, ok := mt.view(id)
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	if changes.Email != nil && *changes.Email != current.Email {
		if other, taken := mt.findByEmail(*changes.Email); taken && other.ID != id {
			return user.User{}, &user.ColumnError{Kind: user.ErrDuplicateValue, Field: "email", Value: *changes.Email}
		}
	}

	if changes.UpdatedAt.IsZero() {
		changes.UpdatedAt = time.Now().UTC()
	}

	updated := changes.Apply(current)
	mt.pending[id] = updated
	return updated, nil
}

func (r *UsersRepo) DeactivateTx(ctx context.Context, t user.Tx, id string, at time.Time) error {
	mt, err := r.own(t)
	if err != nil {
		return err
	}

	current, ok := mt.view(id)
	if !ok {
		return user.ErrNotFound
	}

	current.IsActive = false
	current.UpdatedAt = at
	mt.pending[id] = current
	return nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	r.mu.RLock()
	u, ok := r.items[id]
	r.mu.RUnlock()

	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) List(ctx context.Context, filter user.ListUsersFilter) ([]user.User, int, error) {
	r.mu.RLock()
	matched := make([]user.User, 0, len(r.items))
	for _, u := range r.items {
		if !u.IsActive {
			continue
		}
		if filter.MinAge != nil && u.Age < *filter.MinAge {
			continue
		}
		if filter.MaxAge != nil && u.Age > *filter.MaxAge {
			continue
		}
		matched = append(matched, u)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)

	start := filter.Offset
	if start > total {
		start = total
	}
	end := start + filter.Limit
	if filter.Limit <= 0 || end > total {
		end = total
	}

	return matched[start:end], total, nil
}
