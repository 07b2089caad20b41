package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"disasterwatch/api/internal/models"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already registered")
)

type UserRepository struct {
	mu         sync.RWMutex
	nextID     int64
	users      map[int64]models.User
	byUsername map[string]int64
	now        func() time.Time
}

func NewUserRepository(now func() time.Time) *UserRepository {
	if now == nil {
		now = time.Now
	}
	return &UserRepository{
		nextID:     1,
		users:      make(map[int64]models.User),
		byUsername: make(map[string]int64),
		now:        now,
	}
}

func (r *UserRepository) Create(ctx context.Context, in models.NewUser) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byUsername[in.Username]; exists {
		return models.User{}, ErrUsernameTaken
	}

	user := models.User{
		ID:           r.nextID,
		Username:     in.Username,
		PasswordHash: append([]byte(nil), in.PasswordHash...),
		CreatedAt:    r.now().UTC(),
	}
	r.nextID++
	r.users[user.ID] = user
	r.byUsername[user.Username] = user.ID

	return cloneUser(user), nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return cloneUser(user), nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[username]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return cloneUser(r.users[id]), nil
}

func cloneUser(u models.User) models.User {
	u.PasswordHash = append([]byte(nil), u.PasswordHash...)
	return u
}
