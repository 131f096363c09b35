package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"openthink/internal/apperr"
	"openthink/internal/db/dbtest"
	"openthink/internal/models"
	"openthink/internal/query"
	"openthink/internal/store"
	"openthink/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type env struct {
	ctx   context.Context
	store *store.Store
	query *query.Query
	auth  *AuthService
	forum *ForumService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	conn := dbtest.New(t)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := store.New(conn).WithClock(func() time.Time {
		now = now.Add(time.Second)
		return now
	})
	log := zap.NewNop()
	ctx := context.Background()
	require.NoError(t, Bootstrap(ctx, s, AdminAccount{
		Username: "admin",
		Email:    "admin@example.com",
		Password: "admin-password",
	}, false, log))
	return &env{
		ctx:   ctx,
		store: s,
		query: query.New(conn),
		auth:  NewAuthService(s, log),
		forum: NewForumService(s, log),
	}
}

func (e *env) register(t *testing.T, name string) *models.User {
	t.Helper()
	u, err := e.auth.Register(e.ctx, RegisterInput{
		Username:        name,
		Email:           name + "@example.com",
		Password:        "secret123",
		ConfirmPassword: "secret123",
	})
	require.NoError(t, err)
	return u
}

func (e *env) postCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.store.DB().Model(&models.Post{}).Count(&n).Error)
	return n
}

func TestBootstrapSeedsRootOnce(t *testing.T) {
	e := newEnv(t)

	root, err := e.store.Posts.FindByID(e.ctx, models.RootPostID)
	require.NoError(t, err)
	assert.Equal(t, RootPostTitle, root.Title)
	assert.Equal(t, RootPostBody, root.Body)

	admin, err := e.store.FindUserByUsername(e.ctx, "admin")
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin)
	assert.Equal(t, admin.ID, root.UserID)

	require.NoError(t, Bootstrap(e.ctx, e.store, AdminAccount{Username: "admin", Email: "admin@example.com"}, false, zap.NewNop()))
	assert.EqualValues(t, 1, e.postCount(t))

	logged, err := e.auth.Login(e.ctx, "admin", "admin-password")
	require.NoError(t, err)
	require.NotNil(t, logged)
}

func TestBootstrapStopsOnAdminLookupFailure(t *testing.T) {
	conn := dbtest.New(t)
	s := store.New(conn)

	lookupErr := errors.New("users table unavailable")
	failed := false
	require.NoError(t, conn.Callback().Query().After("gorm:query").Register("test:fail_users", func(db *gorm.DB) {
		if db.Statement.Table == "users" && !failed {
			failed = true
			db.AddError(lookupErr)
		}
	}))

	err := Bootstrap(context.Background(), s, AdminAccount{Username: "admin", Email: "admin@example.com"}, false, zap.NewNop())
	require.Error(t, err)
	assert.True(t, failed)
	assert.ErrorIs(t, err, lookupErr)

	var users int64
	require.NoError(t, conn.Table("users").Count(&users).Error)
	assert.Zero(t, users, "no admin is created when the lookup fails")
}

func TestRegisterValidation(t *testing.T) {
	e := newEnv(t)
	e.register(t, "alice")

	cases := []struct {
		name string
		in   RegisterInput
		msg  string
	}{
		{"space in username", RegisterInput{"al ice", "a@b.co", "secret123", "secret123"}, "username can't contain spaces"},
		{"bad email", RegisterInput{"bob", "bob-at-example", "secret123", "secret123"}, "You must use a valid email address"},
		{"mismatch", RegisterInput{"bob", "bob@example.com", "secret123", "secret124"}, "Your passwords don't match"},
		{"short password", RegisterInput{"bob", "bob@example.com", "short", "short"}, "Your password must be at least 7 characters"},
		{"taken username", RegisterInput{"alice", "new@example.com", "secret123", "secret123"}, "That username is taken"},
		{"taken email", RegisterInput{"bob", "alice@example.com", "secret123", "secret123"}, "That email address is already in use"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u, err := e.auth.Register(e.ctx, tc.in)
			assert.Nil(t, u)
			ae, ok := apperr.As(err)
			require.True(t, ok)
			assert.Equal(t, tc.msg, ae.Message)
			assert.True(t, apperr.IsFailure(err))
		})
	}
}

func TestRegisterStoresHashNotPassword(t *testing.T) {
	e := newEnv(t)
	u := e.register(t, "alice")

	stored, err := e.store.Users.FindByID(e.ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Password)
	assert.NotEqual(t, "secret123", *stored.Password)
	assert.True(t, utils.CheckPasswordHash("secret123", *stored.Password))
}

func TestLogin(t *testing.T) {
	e := newEnv(t)
	u := e.register(t, "alice")

	got, err := e.auth.Login(e.ctx, "alice", "secret123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)

	got, err = e.auth.Login(e.ctx, "alice", "wrong-password")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = e.auth.Login(e.ctx, "nobody", "secret123")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSubmitPostValidation(t *testing.T) {
	e := newEnv(t)
	u := e.register(t, "alice")
	before := e.postCount(t)

	_, _, err := e.forum.SubmitPost(e.ctx, u, SubmitPostInput{Text: "body", Title: strings.Repeat("a", 141)})
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeTitleTooLong, ae.Code)
	assert.Equal(t, OpCreatePost, ae.Op)

	_, _, err = e.forum.SubmitPost(e.ctx, u, SubmitPostInput{Text: "  "})
	ae, ok = apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "you need to include text to submit a post", ae.Message)

	_, _, err = e.forum.SubmitPost(e.ctx, nil, SubmitPostInput{Text: "hi"})
	assert.True(t, apperr.IsFailure(err))

	assert.Equal(t, before, e.postCount(t))

	post, _, err := e.forum.SubmitPost(e.ctx, u, SubmitPostInput{Text: "body", Title: strings.Repeat("é", 140)})
	require.NoError(t, err)
	assert.NotEmpty(t, post.Slug)
}

func TestSubmitPostLinkFailureLeavesNoPost(t *testing.T) {
	e := newEnv(t)
	u := e.register(t, "alice")
	before := e.postCount(t)

	_, _, err := e.forum.SubmitPost(e.ctx, u, SubmitPostInput{Text: "orphan", ParentID: 999})
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, OpLinkPosts, ae.Op)
	assert.Equal(t, "Post not found", ae.Message)
	assert.Equal(t, before, e.postCount(t))
}

func TestRegisterLoginSubmitEndToEnd(t *testing.T) {
	e := newEnv(t)
	e.register(t, "alice")

	user, err := e.auth.Login(e.ctx, "alice", "secret123")
	require.NoError(t, err)
	require.NotNil(t, user)

	post, rel, err := e.forum.SubmitPost(e.ctx, user, SubmitPostInput{Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, models.RootPostID, rel.ParentID)
	assert.Equal(t, post.ID, rel.ChildID)
	assert.Equal(t, user.ID, rel.LinkedByID)
	assert.Equal(t, "hi", post.Slug)

	rels, err := e.query.ChildRelations(e.ctx, models.RootPostID, 0, query.SortTop)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, rel.ID, rels[0].ID)
}

func TestLinkPosts(t *testing.T) {
	e := newEnv(t)
	u := e.register(t, "alice")
	post, _, err := e.forum.SubmitPost(e.ctx, u, SubmitPostInput{Text: "child"})
	require.NoError(t, err)

	rel, err := e.forum.LinkPosts(e.ctx, models.RootPostID, post.ID, u)
	require.NoError(t, err)
	assert.Equal(t, post.ID, rel.ChildID)

	_, err = e.forum.LinkPosts(e.ctx, 0, post.ID, u)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "missing data", ae.Message)

	_, err = e.forum.LinkPosts(e.ctx, models.RootPostID, post.ID, nil)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = e.forum.LinkPosts(e.ctx, models.RootPostID, 999, u)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestSubmitComment(t *testing.T) {
	e := newEnv(t)
	u := e.register(t, "alice")

	c, err := e.forum.SubmitComment(e.ctx, u, models.RootPostID, "nice")
	require.NoError(t, err)
	assert.Equal(t, models.RootPostID, c.PostID)

	_, err = e.forum.SubmitComment(e.ctx, u, models.RootPostID, "")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	_, err = e.forum.SubmitComment(e.ctx, nil, models.RootPostID, "nice")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	_, err = e.forum.SubmitComment(e.ctx, u, 999, "nice")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestSubmitVoteToggles(t *testing.T) {
	e := newEnv(t)
	u := e.register(t, "alice")
	_, rel, err := e.forum.SubmitPost(e.ctx, u, SubmitPostInput{Text: "vote on me"})
	require.NoError(t, err)

	v, err := e.forum.SubmitVote(e.ctx, u, rel.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 1, v.Value)

	v, err = e.forum.SubmitVote(e.ctx, u, rel.ID, 1)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = e.forum.SubmitVote(e.ctx, u, rel.ID, 7)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, -1, v.Value)

	v, err = e.forum.SubmitVote(e.ctx, u, rel.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 1, v.Value)

	var rows int64
	require.NoError(t, e.store.DB().Model(&models.Vote{}).Where("relation_id = ?", rel.ID).Count(&rows).Error)
	assert.EqualValues(t, 1, rows)

	_, err = e.forum.SubmitVote(e.ctx, u, rel.ID+100, 1)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	_, err = e.forum.SubmitVote(e.ctx, nil, rel.ID, 1)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestEditPost(t *testing.T) {
	e := newEnv(t)
	alice := e.register(t, "alice")
	bob := e.register(t, "bob")
	post, _, err := e.forum.SubmitPost(e.ctx, alice, SubmitPostInput{Text: "draft", Title: "First"})
	require.NoError(t, err)

	edited, err := e.forum.EditPost(e.ctx, alice, post.ID, "Second", "final")
	require.NoError(t, err)
	require.NotNil(t, edited.TimeEdited)

	stored, err := e.store.Posts.FindByID(e.ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Second", stored.Title)
	assert.Equal(t, "final", stored.Body)
	assert.Equal(t, post.Slug, stored.Slug)
	assert.NotNil(t, stored.TimeEdited)

	_, err = e.forum.EditPost(e.ctx, bob, post.ID, "Hijack", "x")
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeForbidden, ae.Code)

	_, err = e.forum.EditPost(e.ctx, alice, post.ID, strings.Repeat("a", 141), "x")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = e.forum.EditPost(e.ctx, alice, 999, "x", "x")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}
