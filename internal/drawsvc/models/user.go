package models

import (
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User represents an account; Phone is the login identity.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Role      Role      `json:"role"`
	TicketIDs []string  `json:"ticketIds,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
