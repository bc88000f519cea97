package models

import (
	"errors"
	"time"
)

const TicketDigits = 6

var ErrInvalidNumbers = errors.New("ticket numbers must be exactly 6 digits")

type Ticket struct {
	ID           string    `json:"id"`
	DrawID       string    `json:"drawId"`
	UserID       string    `json:"userId"`
	Numbers      string    `json:"numbers"` // kept as string so leading zeros survive
	PurchaseDate time.Time `json:"purchaseDate"`
	IsReferral   bool      `json:"isReferral"`
}

// TicketWithUser is a pool entry: the ticket joined with its owner.
// User is nil when the owning user document is missing.
type TicketWithUser struct {
	Ticket
	User *User `json:"user,omitempty"`
}

func ValidateNumbers(numbers string) error {
	if len(numbers) != TicketDigits {
		return ErrInvalidNumbers
	}
	for i := 0; i < len(numbers); i++ {
		if numbers[i] < '0' || numbers[i] > '9' {
			return ErrInvalidNumbers
		}
	}
	return nil
}
