package domain

import (
	"errors"
	"time"
)

var ErrInvalidCredentials = errors.New("invalid credentials")
var ErrOperatorExists = errors.New("operator already exists")
var ErrOperatorNotFound = errors.New("operator not found")

// Operator models an account that owns exposed instances. Its ID is the
// owner_id recorded on every instance it registers.
type Operator struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
