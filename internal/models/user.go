package models

import "time"

type User struct {
	ID           int64
	Username     string
	PasswordHash []byte
	CreatedAt    time.Time
}

type NewUser struct {
	Username     string
	PasswordHash []byte
}
