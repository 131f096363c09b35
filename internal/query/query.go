// Package query holds the read side: ranked child relations, the merged
// action feed of a post and the payload projections built from them.
package query

import (
	"context"
	"database/sql"
	"fmt"

	"openthink/internal/models"
	"openthink/internal/utils"

	"gorm.io/gorm"
)

const (
	ChildRelationsPerPage = 8
	ActionsPerPage        = 20
	ParentRelationsLimit  = 8
)

// SortTop orders child relations by vote total; any other sort value means newest first.
const SortTop = "top"

type Query struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Query {
	return &Query{db: db}
}

// ChildRelations returns page (0-based) of the relations whose parent is postID.
// With SortTop they are ordered by vote sum descending (no votes counts as 0),
// ties by relation id ascending; otherwise by time linked, newest first.
func (q *Query) ChildRelations(ctx context.Context, postID uint, page int, sortBy string) ([]models.Relation, error) {
	if page < 0 {
		page = 0
	}
	var rels []models.Relation
	tx := q.db.WithContext(ctx).Model(&models.Relation{}).Preload("LinkedBy")

	if sortBy == SortTop {
		counts := q.db.Model(&models.Vote{}).
			Select("relation_id, SUM(value) AS vote_count").
			Group("relation_id")
		tx = tx.Select("relations.*").
			Joins("LEFT JOIN (?) AS counts ON counts.relation_id = relations.id", counts).
			Where("relations.parent_id = ?", postID).
			Order("COALESCE(counts.vote_count, 0) DESC").
			Order("relations.id ASC")
	} else {
		tx = tx.Where("relations.parent_id = ?", postID).
			Order("relations.time_linked DESC").
			Order("relations.id DESC")
	}

	err := tx.Limit(ChildRelationsPerPage).Offset(page * ChildRelationsPerPage).Find(&rels).Error
	if err != nil {
		return nil, fmt.Errorf("child relations of post %d: %w", postID, err)
	}
	return rels, nil
}

// ParentRelations lists relations that point at postID, oldest first.
func (q *Query) ParentRelations(ctx context.Context, postID uint, limit int) ([]models.Relation, error) {
	var rels []models.Relation
	err := q.db.WithContext(ctx).Preload("LinkedBy").
		Where("child_id = ?", postID).
		Order("id ASC").
		Limit(limit).
		Find(&rels).Error
	return rels, err
}

const actionsSQL = `SELECT id, kind FROM (
	SELECT id, time_posted AS action_time, 'Comment' AS kind FROM comments WHERE post_id = @post
	UNION ALL
	SELECT id, time_linked AS action_time, 'Relation' AS kind FROM relations WHERE parent_id = @post
) actions
ORDER BY action_time ASC, kind ASC, id ASC
LIMIT @limit OFFSET @offset`

// ActionsFeed returns page (1-based) of the comments on postID merged with the
// relations under it, oldest first. Pages below 1 are treated as 1.
func (q *Query) ActionsFeed(ctx context.Context, postID uint, page int) ([]models.Action, error) {
	if page < 1 {
		page = 1
	}
	actions := make([]models.Action, 0, ActionsPerPage)
	err := q.db.WithContext(ctx).Raw(actionsSQL,
		sql.Named("post", postID),
		sql.Named("limit", ActionsPerPage),
		sql.Named("offset", (page-1)*ActionsPerPage),
	).Scan(&actions).Error
	if err != nil {
		return nil, fmt.Errorf("actions of post %d: %w", postID, err)
	}
	return actions, nil
}

// TotalActions counts the set ActionsFeed pages through.
func (q *Query) TotalActions(ctx context.Context, postID uint) (int64, error) {
	var comments, relations int64
	if err := q.db.WithContext(ctx).Model(&models.Comment{}).Where("post_id = ?", postID).Count(&comments).Error; err != nil {
		return 0, err
	}
	if err := q.db.WithContext(ctx).Model(&models.Relation{}).Where("parent_id = ?", postID).Count(&relations).Error; err != nil {
		return 0, err
	}
	return comments + relations, nil
}

// LastActionsPage is ceil(total / ActionsPerPage), the page shown when none is requested.
func LastActionsPage(total int64) int {
	return int(utils.CeilDiv(total, ActionsPerPage))
}

// VoteTotal sums the votes on a relation, 0 when it has none.
func (q *Query) VoteTotal(ctx context.Context, relationID uint) (int, error) {
	var total int64
	err := q.db.WithContext(ctx).Model(&models.Vote{}).
		Where("relation_id = ?", relationID).
		Select("COALESCE(SUM(value), 0)").
		Scan(&total).Error
	return int(total), err
}

// VoteTotals is VoteTotal for many relations; relations without votes are absent.
func (q *Query) VoteTotals(ctx context.Context, relationIDs []uint) (map[uint]int, error) {
	totals := make(map[uint]int, len(relationIDs))
	if len(relationIDs) == 0 {
		return totals, nil
	}
	type row struct {
		RelationID uint
		Total      int
	}
	var rows []row
	err := q.db.WithContext(ctx).Model(&models.Vote{}).
		Select("relation_id, SUM(value) AS total").
		Where("relation_id IN ?", relationIDs).
		Group("relation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		totals[r.RelationID] = r.Total
	}
	return totals, nil
}

// UserVotes returns the viewer's vote value per relation.
func (q *Query) UserVotes(ctx context.Context, userID uint, relationIDs []uint) (map[uint]int, error) {
	values := make(map[uint]int, len(relationIDs))
	if userID == 0 || len(relationIDs) == 0 {
		return values, nil
	}
	var votes []models.Vote
	err := q.db.WithContext(ctx).
		Where("user_id = ? AND relation_id IN ?", userID, relationIDs).
		Find(&votes).Error
	if err != nil {
		return nil, err
	}
	for _, v := range votes {
		values[v.RelationID] = v.Value
	}
	return values, nil
}

// RecentPosts returns up to limit posts, newest first.
func (q *Query) RecentPosts(ctx context.Context, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := q.db.WithContext(ctx).Order("time_posted DESC").Order("id DESC").Limit(limit).Find(&posts).Error
	return posts, err
}
