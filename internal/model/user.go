package model

import "time"

// User is the stored identity record. HashedPassword never leaves the server.
type User struct {
	ID             int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Username       string    `json:"username" gorm:"uniqueIndex;not null"`
	Email          string    `json:"email" gorm:"uniqueIndex;not null"`
	HashedPassword string    `json:"-" gorm:"not null"`
	FullName       string    `json:"full_name"`
	Position       string    `json:"position"`
	Phone          string    `json:"phone"`
	City           string    `json:"city"`
	Specialization string    `json:"specialization"`
	IsActive       bool      `json:"is_active" gorm:"not null"`
	IsSuperuser    bool      `json:"is_superuser" gorm:"not null"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type UserCreate struct {
	Username       string `json:"username"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	FullName       string `json:"full_name"`
	Position       string `json:"position"`
	Phone          string `json:"phone"`
	City           string `json:"city"`
	Specialization string `json:"specialization"`
	IsActive       *bool  `json:"is_active"`
	IsSuperuser    bool   `json:"is_superuser"`
}

// UserUpdate carries a partial update; nil fields are left untouched.
type UserUpdate struct {
	Username       *string `json:"username"`
	Email          *string `json:"email"`
	Password       *string `json:"password"`
	FullName       *string `json:"full_name"`
	Position       *string `json:"position"`
	Phone          *string `json:"phone"`
	City           *string `json:"city"`
	Specialization *string `json:"specialization"`
	IsActive       *bool   `json:"is_active"`
	IsSuperuser    *bool   `json:"is_superuser"`
}

type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type UserList struct {
	Users []User `json:"users"`
	Skip  int    `json:"skip"`
	Limit int    `json:"limit"`
	Total int    `json:"total"`
}

// FirstSuperuser holds the bootstrap credentials used to seed an empty directory.
type FirstSuperuser struct {
	Username string
	Email    string
	Password string
}

func (f FirstSuperuser) Configured() bool {
	return f.Username != "" && f.Email != "" && f.Password != ""
}
