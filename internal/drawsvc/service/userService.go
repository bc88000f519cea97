package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avvvet/prizedraw-services/internal/drawsvc/models"
	"github.com/avvvet/prizedraw-services/internal/drawsvc/store"
)

var ErrInvalidPhone = errors.New("phone is required")

type UserService struct {
	users       UserRepository
	adminPhones map[string]bool
}

func NewUserService(users UserRepository, adminPhones []string) *UserService {
	admins := make(map[string]bool, len(adminPhones))
	for _, p := range adminPhones {
		admins[p] = true
	}
	return &UserService{users: users, adminPhones: admins}
}

func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.users.GetUser(ctx, id)
}

// GetOrCreateUser returns the account registered for phone, creating it on
// first sight. The role is fixed at creation from the admin phone list.
func (s *UserService) GetOrCreateUser(ctx context.Context, name, phone string) (*models.User, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, ErrInvalidPhone
	}

	u, err := s.users.GetUserByPhone(ctx, phone)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	role := models.RoleUser
	if s.adminPhones[phone] {
		role = models.RoleAdmin
	}
	u = &models.User{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		Phone:     phone,
		Role:      role,
		TicketIDs: []string{},
		CreatedAt: time.Now().UTC(),
	}

	err = s.users.CreateUser(ctx, u)
	if errors.Is(err, store.ErrDuplicatePhone) {
		// registered concurrently
		return s.users.GetUserByPhone(ctx, phone)
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}
