package domain

import "time"

// User represents a rider, created on first contact from an unseen
// phone number.
type User struct {
	ID         string
	Phone      string
	Registered bool
	CreatedAt  time.Time
}
