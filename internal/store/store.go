// Package store persists users, posts, relations, comments and votes and
// enforces their uniqueness rules.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"openthink/internal/apperr"
	"openthink/internal/models"
	"openthink/internal/utils"

	"gorm.io/gorm"
)

// MaxSlugAttempts bounds the suffix search for a free post url.
const MaxSlugAttempts = utils.MaxSlugSuffix

type Store struct {
	db  *gorm.DB
	now func() time.Time

	Users     *Repository[models.User]
	Posts     *Repository[models.Post]
	Relations *Repository[models.Relation]
	Comments  *Repository[models.Comment]
	Votes     *Repository[models.Vote]
}

func New(db *gorm.DB) *Store {
	return newStore(db, func() time.Time { return time.Now().UTC() })
}

func newStore(db *gorm.DB, now func() time.Time) *Store {
	return &Store{
		db:        db,
		now:       now,
		Users:     NewRepository[models.User](db, "user"),
		Posts:     NewRepository[models.Post](db, "post"),
		Relations: NewRepository[models.Relation](db, "relation"),
		Comments:  NewRepository[models.Comment](db, "comment"),
		Votes:     NewRepository[models.Vote](db, "vote"),
	}
}

// WithClock returns a store stamping rows with now instead of the wall clock.
func (s *Store) WithClock(now func() time.Time) *Store {
	return newStore(s.db, now)
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Now() time.Time {
	return s.now()
}

// Transaction runs fn against a store bound to a single database transaction.
// Nested calls use savepoints.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newStore(tx, s.now))
	})
}

// CreateUser inserts a user. passwordHash must already be hashed; nil leaves
// the account without a password.
func (s *Store) CreateUser(ctx context.Context, username, email string, passwordHash *string) (*models.User, error) {
	if err := s.checkUserUnique(ctx, username, email); err != nil {
		return nil, err
	}

	user := &models.User{
		Username:  username,
		Email:     email,
		Password:  passwordHash,
		CreatedAt: s.now(),
	}
	err := s.Transaction(ctx, func(tx *Store) error {
		return tx.Users.Create(ctx, user)
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// lost a race with a concurrent registration; report which column collided
		if uerr := s.checkUserUnique(ctx, username, email); uerr != nil {
			return nil, uerr
		}
		return nil, apperr.Wrap(apperr.ErrAccountExists, err)
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *Store) checkUserUnique(ctx context.Context, username, email string) error {
	taken, err := s.Users.Exists(ctx, "username = ?", username)
	if err != nil {
		return fmt.Errorf("check username: %w", err)
	}
	if taken {
		return apperr.ErrDuplicateUsername
	}
	taken, err = s.Users.Exists(ctx, "email = ?", email)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if taken {
		return apperr.ErrDuplicateEmail
	}
	return nil
}

// CreatePost inserts a post under the first free slug: the base slug, then
// "base.2", "base.3" and so on. A candidate taken by a concurrent insert is
// skipped like any other collision.
func (s *Store) CreatePost(ctx context.Context, title, body string, authorID uint) (*models.Post, error) {
	base := utils.BaseSlug(title, body)

	for n := 1; n <= MaxSlugAttempts; n++ {
		candidate := utils.SlugCandidate(base, n)

		taken, err := s.Posts.Exists(ctx, "url = ?", candidate)
		if err != nil {
			return nil, fmt.Errorf("check slug: %w", err)
		}
		if taken {
			continue
		}

		post := &models.Post{
			Title:      title,
			Body:       body,
			UserID:     authorID,
			TimePosted: s.now(),
			Slug:       candidate,
		}
		err = s.Transaction(ctx, func(tx *Store) error {
			return tx.Posts.Create(ctx, post)
		})
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create post: %w", err)
		}
		return post, nil
	}
	return nil, apperr.ErrSlugExhausted
}

// UpdatePost writes title, body and time_edited.
func (s *Store) UpdatePost(ctx context.Context, post *models.Post) error {
	return s.db.WithContext(ctx).Model(post).Select("title", "body", "time_edited").Updates(post).Error
}

func (s *Store) CreateRelation(ctx context.Context, parentID, childID, linkedByID uint) (*models.Relation, error) {
	rel := &models.Relation{
		ParentID:   parentID,
		ChildID:    childID,
		LinkedByID: linkedByID,
		TimeLinked: s.now(),
	}
	if err := s.Relations.Create(ctx, rel); err != nil {
		return nil, fmt.Errorf("create relation: %w", err)
	}
	return rel, nil
}

func (s *Store) CreateComment(ctx context.Context, postID, authorID uint, body string) (*models.Comment, error) {
	comment := &models.Comment{
		Body:       body,
		PostID:     postID,
		UserID:     authorID,
		TimePosted: s.now(),
	}
	if err := s.Comments.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return comment, nil
}

// UpsertVote records value (normalized to +1/-1) for the user on the relation.
// An identical existing vote is removed and nil is returned; an opposite one
// is flipped; otherwise a new vote is inserted.
func (s *Store) UpsertVote(ctx context.Context, userID, relationID uint, value int) (*models.Vote, error) {
	value = models.NormalizeVote(value)

	var result *models.Vote
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		result, err = s.upsertVoteOnce(ctx, userID, relationID, value)
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("upsert vote: %w", err)
	}
	return result, nil
}

func (s *Store) upsertVoteOnce(ctx context.Context, userID, relationID uint, value int) (*models.Vote, error) {
	var result *models.Vote
	err := s.Transaction(ctx, func(tx *Store) error {
		existing, err := tx.Votes.FindOne(ctx, "user_id = ? AND relation_id = ?", userID, relationID)
		switch {
		case apperr.IsKind(err, apperr.KindNotFound):
			vote := &models.Vote{UserID: userID, RelationID: relationID, Value: value}
			if err := tx.Votes.Create(ctx, vote); err != nil {
				return err
			}
			result = vote
			return nil
		case err != nil:
			return err
		case existing.Value == value:
			return tx.Votes.Delete(ctx, existing)
		default:
			existing.Value = value
			if err := tx.Votes.Save(ctx, existing); err != nil {
				return err
			}
			result = existing
			return nil
		}
	})
	return result, err
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.Users.FindOne(ctx, "username = ?", username)
}

func (s *Store) FindPostBySlug(ctx context.Context, slug string) (*models.Post, error) {
	return s.Posts.FindOne(ctx, "url = ?", slug)
}
