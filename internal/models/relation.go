package models

import (
	"time"
)

// Relation links a parent post to a child post. The same pair may be linked more than once.
type Relation struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ParentID   uint      `gorm:"not null;index" json:"parent_id"`
	Parent     Post      `gorm:"foreignKey:ParentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	ChildID    uint      `gorm:"not null;index" json:"child_id"`
	Child      Post      `gorm:"foreignKey:ChildID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	LinkedByID uint      `gorm:"not null;index" json:"linked_by_id"`
	LinkedBy   User      `gorm:"foreignKey:LinkedByID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	TimeLinked time.Time `gorm:"not null;index" json:"time_linked"`
}
