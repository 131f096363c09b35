package models

import (
	"time"
)

// RootPostID is the bootstrap post every submission is linked under by default.
const RootPostID uint = 1

// MaxTitleLength applies to Post.Title in runes.
const MaxTitleLength = 140

type Post struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Title      string     `gorm:"size:140" json:"title"`
	Body       string     `gorm:"type:text" json:"body"`
	UserID     uint       `gorm:"not null;index" json:"user_id"`
	User       User       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	TimePosted time.Time  `gorm:"not null" json:"time_posted"`
	TimeEdited *time.Time `json:"time_edited"`
	Slug       string     `gorm:"column:url;size:160;uniqueIndex;not null" json:"url"`
}
