package models

import (
	"time"
)

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"size:80;uniqueIndex;not null" json:"username"`
	Email     string    `gorm:"size:120;uniqueIndex;not null" json:"-"`
	Password  *string   `gorm:"size:128" json:"-"` // bcrypt hash, nil for accounts without a password
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	Active    bool      `gorm:"default:false" json:"active"`
	IsAdmin   bool      `gorm:"default:false" json:"is_admin"`
}

// UserView is the public projection embedded in relation and comment payloads.
type UserView struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

func (u *User) View() UserView {
	return UserView{ID: u.ID, Username: u.Username}
}
