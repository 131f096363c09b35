package query

import (
	"context"
	"time"

	"openthink/internal/models"
	"openthink/internal/utils"
)

// PostView is the post payload sent to clients.
type PostView struct {
	ID         uint       `json:"id"`
	Title      string     `json:"title"`
	Body       string     `json:"body"`
	BodyHTML   string     `json:"body_html"`
	UserID     uint       `json:"user_id"`
	TimePosted time.Time  `json:"time_posted"`
	TimeEdited *time.Time `json:"time_edited,omitempty"`
	URL        string     `json:"url"`
}

type RelationView struct {
	ID            uint            `json:"id"`
	ParentID      uint            `json:"parent_id"`
	ChildID       uint            `json:"child_id"`
	LinkedBy      models.UserView `json:"linked_by"`
	TimeLinked    time.Time       `json:"time_linked"`
	VoteCount     int             `json:"votecount"`
	UserVoteValue int             `json:"user_vote_value"`
}

type CommentView struct {
	ID         uint            `json:"id"`
	Body       string          `json:"body"`
	BodyHTML   string          `json:"body_html"`
	PostID     uint            `json:"post_id"`
	User       models.UserView `json:"user"`
	TimePosted time.Time       `json:"time_posted"`
}

func NewPostView(p *models.Post) PostView {
	v := PostView{
		ID:         p.ID,
		Title:      p.Title,
		Body:       p.Body,
		BodyHTML:   utils.RenderMarkdown(p.Body),
		UserID:     p.UserID,
		TimePosted: p.TimePosted.UTC(),
		URL:        p.Slug,
	}
	if p.TimeEdited != nil {
		edited := p.TimeEdited.UTC()
		v.TimeEdited = &edited
	}
	return v
}

// Posts loads the posts with the given ids as views.
func (q *Query) Posts(ctx context.Context, ids []uint) ([]PostView, error) {
	views := make([]PostView, 0, len(ids))
	if len(ids) == 0 {
		return views, nil
	}
	var posts []models.Post
	if err := q.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&posts).Error; err != nil {
		return nil, err
	}
	for i := range posts {
		views = append(views, NewPostView(&posts[i]))
	}
	return views, nil
}

// RelationViews decorates rels (with LinkedBy loaded) with vote totals and
// the viewer's own vote. viewerID 0 means anonymous.
func (q *Query) RelationViews(ctx context.Context, rels []models.Relation, viewerID uint) ([]RelationView, error) {
	views := make([]RelationView, 0, len(rels))
	if len(rels) == 0 {
		return views, nil
	}
	ids := relationIDs(rels)
	totals, err := q.VoteTotals(ctx, ids)
	if err != nil {
		return nil, err
	}
	mine, err := q.UserVotes(ctx, viewerID, ids)
	if err != nil {
		return nil, err
	}
	for _, r := range rels {
		views = append(views, RelationView{
			ID:            r.ID,
			ParentID:      r.ParentID,
			ChildID:       r.ChildID,
			LinkedBy:      r.LinkedBy.View(),
			TimeLinked:    r.TimeLinked.UTC(),
			VoteCount:     totals[r.ID],
			UserVoteValue: mine[r.ID],
		})
	}
	return views, nil
}

// Relations loads relations by id and returns their views.
func (q *Query) Relations(ctx context.Context, ids []uint, viewerID uint) ([]RelationView, error) {
	if len(ids) == 0 {
		return []RelationView{}, nil
	}
	var rels []models.Relation
	if err := q.db.WithContext(ctx).Preload("LinkedBy").Where("id IN ?", ids).Order("id ASC").Find(&rels).Error; err != nil {
		return nil, err
	}
	return q.RelationViews(ctx, rels, viewerID)
}

// Relation returns a single relation view.
func (q *Query) Relation(ctx context.Context, id uint, viewerID uint) (*RelationView, error) {
	views, err := q.Relations(ctx, []uint{id}, viewerID)
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, errRelationNotFound
	}
	return &views[0], nil
}

func (q *Query) Comments(ctx context.Context, ids []uint) ([]CommentView, error) {
	views := make([]CommentView, 0, len(ids))
	if len(ids) == 0 {
		return views, nil
	}
	var comments []models.Comment
	if err := q.db.WithContext(ctx).Preload("User").Where("id IN ?", ids).Order("id ASC").Find(&comments).Error; err != nil {
		return nil, err
	}
	for _, c := range comments {
		views = append(views, CommentView{
			ID:         c.ID,
			Body:       c.Body,
			BodyHTML:   utils.RenderMarkdown(c.Body),
			PostID:     c.PostID,
			User:       c.User.View(),
			TimePosted: c.TimePosted.UTC(),
		})
	}
	return views, nil
}

func relationIDs(rels []models.Relation) []uint {
	ids := make([]uint, len(rels))
	for i, r := range rels {
		ids[i] = r.ID
	}
	return ids
}

func childIDs(rels []models.Relation) []uint {
	seen := make(map[uint]bool, len(rels))
	ids := make([]uint, 0, len(rels))
	for _, r := range rels {
		if !seen[r.ChildID] {
			seen[r.ChildID] = true
			ids = append(ids, r.ChildID)
		}
	}
	return ids
}
