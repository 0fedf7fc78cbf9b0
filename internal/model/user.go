package model

import "time"

type User struct {
	ID           int
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
}
