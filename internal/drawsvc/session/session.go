// Package session carries the authenticated caller through request contexts.
package session

import (
	"context"

	"github.com/avvvet/prizedraw-services/internal/drawsvc/models"
)

type Session struct {
	UserID string
	Name   string
	Phone  string
	Role   models.Role
}

func New(u *models.User) *Session {
	return &Session{
		UserID: u.ID,
		Name:   u.Name,
		Phone:  u.Phone,
		Role:   u.Role,
	}
}

func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == models.RoleAdmin
}

type ctxKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored by WithSession, nil if none.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}
