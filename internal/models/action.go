package models

import (
	"strconv"
)

type ActionKind string

const (
	ActionComment  ActionKind = "Comment"
	ActionRelation ActionKind = "Relation"
)

// Action is one entry of a post's activity feed: a comment on the post or a
// relation under it. Only the id and kind are carried; callers load the entity.
type Action struct {
	ID   uint       `json:"id"`
	Kind ActionKind `json:"kind"`
}

// MarshalJSON keeps the compact [id, kind] pair shape clients consume.
func (a Action) MarshalJSON() ([]byte, error) {
	b := make([]byte, 0, 24)
	b = append(b, '[')
	b = strconv.AppendUint(b, uint64(a.ID), 10)
	b = append(b, ',')
	b = strconv.AppendQuote(b, string(a.Kind))
	b = append(b, ']')
	return b, nil
}
