package model

import "time"

type User struct {
	ID                        int64      `json:"id"`
	Email                     string     `json:"email"`
	Role                      string     `json:"role"`
	FirstName                 string     `json:"first_name"`
	LastName                  string     `json:"last_name"`
	VerificationCode          *string    `json:"-"`
	VerificationCodeExpiresAt *time.Time `json:"-"`
	CreatedAt                 time.Time  `json:"created_at"`
	UpdatedAt                 time.Time  `json:"updated_at"`
}

// DisplayName joins first and last name, skipping empty parts.
func (u User) DisplayName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

type Transaction struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Reference string    `json:"reference"`
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}
