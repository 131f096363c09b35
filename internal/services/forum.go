package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"openthink/internal/apperr"
	"openthink/internal/models"
	"openthink/internal/store"

	"go.uber.org/zap"
)

// Workflow steps reported on submit failures.
const (
	OpCreatePost = "create-post"
	OpLinkPosts  = "link-posts"
)

var (
	errMissingData      = apperr.Validation(apperr.CodeMissingData, "missing data")
	errPostTextRequired = apperr.Validation(apperr.CodeMissingData, "you need to include text to submit a post")
	errTitleTooLong     = apperr.Validation(apperr.CodeTitleTooLong, "your title must be less than 140 characters long")
	errNotAuthor        = apperr.Validation(apperr.CodeForbidden, "you can only edit your own posts")
	errPostNotFound     = apperr.NotFound("Post not found")
	errRelationNotFound = apperr.NotFound("Relation not found")
)

// ForumService implements the write side: posts, links, comments and votes.
// Every operation runs in one store transaction.
type ForumService struct {
	store *store.Store
	log   *zap.Logger
}

func NewForumService(s *store.Store, log *zap.Logger) *ForumService {
	return &ForumService{store: s, log: log}
}

type SubmitPostInput struct {
	Text  string
	Title string
	// ParentID 为 0 时挂到根帖下
	ParentID uint
}

// SubmitPost creates a post and links it under its parent. The post and the
// relation are written together: a failed link leaves no post behind. The
// returned failure is tagged with OpCreatePost or OpLinkPosts.
func (f *ForumService) SubmitPost(ctx context.Context, user *models.User, in SubmitPostInput) (*models.Post, *models.Relation, error) {
	if user == nil || strings.TrimSpace(in.Text) == "" {
		return nil, nil, apperr.WithOp(errPostTextRequired, OpCreatePost)
	}
	if err := checkTitle(in.Title); err != nil {
		return nil, nil, apperr.WithOp(err, OpCreatePost)
	}
	parentID := in.ParentID
	if parentID == 0 {
		parentID = models.RootPostID
	}

	var post *models.Post
	var rel *models.Relation
	err := f.store.Transaction(ctx, func(tx *store.Store) error {
		var err error
		post, err = tx.CreatePost(ctx, in.Title, in.Text, user.ID)
		if err != nil {
			return apperr.WithOp(err, OpCreatePost)
		}
		rel, err = linkPosts(ctx, tx, parentID, post.ID, user)
		if err != nil {
			return apperr.WithOp(err, OpLinkPosts)
		}
		return nil
	})
	if err != nil {
		f.logFailure("submit post", err, zap.Uint("user_id", user.ID), zap.Uint("parent_id", parentID))
		return nil, nil, err
	}

	f.log.Info("post submitted",
		zap.Uint("post_id", post.ID),
		zap.String("url", post.Slug),
		zap.Uint("parent_id", parentID),
		zap.Uint("user_id", user.ID))
	return post, rel, nil
}

// LinkPosts relates an existing child post to an existing parent.
func (f *ForumService) LinkPosts(ctx context.Context, parentID, childID uint, user *models.User) (*models.Relation, error) {
	var rel *models.Relation
	err := f.store.Transaction(ctx, func(tx *store.Store) error {
		var err error
		rel, err = linkPosts(ctx, tx, parentID, childID, user)
		return err
	})
	if err != nil {
		f.logFailure("link posts", err, zap.Uint("parent_id", parentID), zap.Uint("child_id", childID))
		return nil, err
	}
	f.log.Info("posts linked", zap.Uint("relation_id", rel.ID), zap.Uint("parent_id", parentID), zap.Uint("child_id", childID))
	return rel, nil
}

func linkPosts(ctx context.Context, tx *store.Store, parentID, childID uint, user *models.User) (*models.Relation, error) {
	if parentID == 0 || childID == 0 || user == nil {
		return nil, errMissingData
	}
	for _, id := range []uint{parentID, childID} {
		ok, err := tx.Posts.Exists(ctx, "id = ?", id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errPostNotFound
		}
	}
	return tx.CreateRelation(ctx, parentID, childID, user.ID)
}

func (f *ForumService) SubmitComment(ctx context.Context, user *models.User, postID uint, body string) (*models.Comment, error) {
	if user == nil || postID == 0 || strings.TrimSpace(body) == "" {
		return nil, errMissingData
	}

	var comment *models.Comment
	err := f.store.Transaction(ctx, func(tx *store.Store) error {
		ok, err := tx.Posts.Exists(ctx, "id = ?", postID)
		if err != nil {
			return err
		}
		if !ok {
			return errPostNotFound
		}
		comment, err = tx.CreateComment(ctx, postID, user.ID, body)
		return err
	})
	if err != nil {
		f.logFailure("submit comment", err, zap.Uint("post_id", postID))
		return nil, err
	}
	return comment, nil
}

// SubmitVote casts the user's vote on a relation. A nil vote with a nil error
// means an identical earlier vote was withdrawn.
func (f *ForumService) SubmitVote(ctx context.Context, user *models.User, relationID uint, value int) (*models.Vote, error) {
	if user == nil || relationID == 0 {
		return nil, errMissingData
	}

	var vote *models.Vote
	err := f.store.Transaction(ctx, func(tx *store.Store) error {
		ok, err := tx.Relations.Exists(ctx, "id = ?", relationID)
		if err != nil {
			return err
		}
		if !ok {
			return errRelationNotFound
		}
		vote, err = tx.UpsertVote(ctx, user.ID, relationID, value)
		return err
	})
	if err != nil {
		f.logFailure("submit vote", err, zap.Uint("relation_id", relationID))
		return nil, err
	}
	return vote, nil
}

// EditPost replaces the title and body of a post written by user. The url
// stays as first assigned.
func (f *ForumService) EditPost(ctx context.Context, user *models.User, postID uint, title, body string) (*models.Post, error) {
	if user == nil || postID == 0 {
		return nil, errMissingData
	}
	if err := checkTitle(title); err != nil {
		return nil, err
	}

	var post *models.Post
	err := f.store.Transaction(ctx, func(tx *store.Store) error {
		var err error
		post, err = tx.Posts.FindByID(ctx, postID)
		if err != nil {
			if apperr.IsKind(err, apperr.KindNotFound) {
				return errPostNotFound
			}
			return err
		}
		if post.UserID != user.ID {
			return errNotAuthor
		}
		edited := tx.Now()
		post.Title = title
		post.Body = body
		post.TimeEdited = &edited
		return tx.UpdatePost(ctx, post)
	})
	if err != nil {
		f.logFailure("edit post", err, zap.Uint("post_id", postID))
		return nil, err
	}
	return post, nil
}

func checkTitle(title string) error {
	if utf8.RuneCountInString(title) > models.MaxTitleLength {
		return errTitleTooLong
	}
	return nil
}

// logFailure 只记录非用户输入导致的错误
func (f *ForumService) logFailure(msg string, err error, fields ...zap.Field) {
	if _, ok := apperr.As(err); ok {
		return
	}
	f.log.Error(msg+" failed", append(fields, zap.Error(err))...)
}
