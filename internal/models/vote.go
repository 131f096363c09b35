package models

const (
	Upvote   = 1
	Downvote = -1
)

// Vote is keyed by (user, relation): a user holds at most one vote per relation.
type Vote struct {
	UserID     uint     `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	User       User     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	RelationID uint     `gorm:"primaryKey;autoIncrement:false;index" json:"rel_id"`
	Relation   Relation `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Value      int      `gorm:"not null" json:"value"` // 1 or -1
}

// NormalizeVote maps anything other than an explicit upvote to a downvote.
func NormalizeVote(value int) int {
	if value == Upvote {
		return Upvote
	}
	return Downvote
}
