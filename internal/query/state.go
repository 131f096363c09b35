package query

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"openthink/internal/apperr"
	"openthink/internal/models"

	"gorm.io/gorm"
)

var (
	errPostNotFound     = apperr.NotFound("Post not found")
	errRelationNotFound = apperr.NotFound("relation not found")
)

// Asks understood by PostState.
const (
	AskChildren = "children"
	AskActions  = "actions"
)

// PostExists reports whether a post with id exists.
func (q *Query) PostExists(ctx context.Context, id uint) (bool, error) {
	if id == 0 {
		return false, nil
	}
	var count int64
	err := q.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// PostIDBySlug resolves a url slug to a post id.
func (q *Query) PostIDBySlug(ctx context.Context, slug string) (uint, error) {
	var post models.Post
	err := q.db.WithContext(ctx).Select("id").Where("url = ?", slug).Take(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, errPostNotFound
	}
	if err != nil {
		return 0, err
	}
	return post.ID, nil
}

// ResolvePostRef turns what a user pasted into a post id. Accepted forms are a
// bare id, a /post-by-id/<id> or /post/<slug> link (absolute or relative) and
// the site root, which means the root post.
func (q *Query) ResolvePostRef(ctx context.Context, text string) (uint, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, errPostNotFound
	}
	if id, err := strconv.ParseUint(text, 10, 64); err == nil {
		return q.existingPost(ctx, uint(id))
	}

	u, err := url.Parse(text)
	if err != nil {
		return 0, errPostNotFound
	}
	path := strings.TrimSuffix(u.Path, "/")
	switch {
	case path == "":
		return q.existingPost(ctx, models.RootPostID)
	case strings.HasPrefix(path, "/post-by-id/"):
		id, err := strconv.ParseUint(strings.TrimPrefix(path, "/post-by-id/"), 10, 64)
		if err != nil {
			return 0, errPostNotFound
		}
		return q.existingPost(ctx, uint(id))
	case strings.HasPrefix(path, "/post/"):
		slug := strings.TrimPrefix(path, "/post/")
		if slug == "" || strings.Contains(slug, "/") {
			return 0, errPostNotFound
		}
		return q.PostIDBySlug(ctx, slug)
	}
	return 0, errPostNotFound
}

func (q *Query) existingPost(ctx context.Context, id uint) (uint, error) {
	ok, err := q.PostExists(ctx, id)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errPostNotFound
	}
	return id, nil
}

// ActionsPage is one page of a post's action feed with every entity it references.
type ActionsPage struct {
	Actions     []models.Action       `json:"actions"`
	ActionCount int64                 `json:"action_count"`
	Posts       map[uint]PostView     `json:"posts"`
	Rels        map[uint]RelationView `json:"rels"`
	Comments    map[uint]CommentView  `json:"comments"`
	Page        int                   `json:"page"`
}

// ActionsPage loads page of postID's feed. A page below 1 selects the last page.
func (q *Query) ActionsPage(ctx context.Context, postID uint, page int, viewerID uint) (*ActionsPage, error) {
	if _, err := q.existingPost(ctx, postID); err != nil {
		return nil, err
	}
	total, err := q.TotalActions(ctx, postID)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = LastActionsPage(total)
	}
	actions, err := q.ActionsFeed(ctx, postID, page)
	if err != nil {
		return nil, err
	}

	var relIDs, commentIDs []uint
	for _, a := range actions {
		switch a.Kind {
		case models.ActionRelation:
			relIDs = append(relIDs, a.ID)
		case models.ActionComment:
			commentIDs = append(commentIDs, a.ID)
		}
	}

	out := &ActionsPage{
		Actions:     actions,
		ActionCount: total,
		Posts:       map[uint]PostView{},
		Rels:        map[uint]RelationView{},
		Comments:    map[uint]CommentView{},
		Page:        page,
	}

	if len(relIDs) > 0 {
		var rels []models.Relation
		if err := q.db.WithContext(ctx).Preload("LinkedBy").Where("id IN ?", relIDs).Find(&rels).Error; err != nil {
			return nil, err
		}
		if err := q.addRelations(ctx, out.Rels, out.Posts, rels, viewerID); err != nil {
			return nil, err
		}
	}

	comments, err := q.Comments(ctx, commentIDs)
	if err != nil {
		return nil, err
	}
	for _, c := range comments {
		out.Comments[c.ID] = c
	}
	return out, nil
}

// LinksPage is one page of ranked child relations and their child posts.
type LinksPage struct {
	Posts     map[uint]PostView     `json:"posts"`
	Rels      map[uint]RelationView `json:"rels"`
	NewRelIDs []uint                `json:"new_rel_ids"`
}

// LinksPage fails with not found for an unknown postID.
func (q *Query) LinksPage(ctx context.Context, postID uint, page int, sortBy string, viewerID uint) (*LinksPage, error) {
	if _, err := q.existingPost(ctx, postID); err != nil {
		return nil, err
	}
	rels, err := q.ChildRelations(ctx, postID, page, sortBy)
	if err != nil {
		return nil, err
	}
	out := &LinksPage{
		Posts:     map[uint]PostView{},
		Rels:      map[uint]RelationView{},
		NewRelIDs: relationIDs(rels),
	}
	if err := q.addRelations(ctx, out.Rels, out.Posts, rels, viewerID); err != nil {
		return nil, err
	}
	return out, nil
}

// PostState is the initial state of a post page: the post, optionally its
// first page of top children and a page of its actions.
type PostState struct {
	CurrentPost uint                  `json:"current_post"`
	Posts       map[uint]PostView     `json:"posts"`
	Rels        map[uint]RelationView `json:"rels"`
	Parents     []uint                `json:"parent_ids"`
	LinkIDs     []uint                `json:"link_ids,omitempty"`
	Actions     []models.Action       `json:"actions,omitempty"`
	ActionCount *int64                `json:"action_count,omitempty"`
	Page        *int                  `json:"page,omitempty"`
	Comments    map[uint]CommentView  `json:"comments,omitempty"`
	User        *models.UserView      `json:"user"`
}

// PostState assembles the payload for postID. page is forwarded to the action
// feed (below 1 selects the last page).
func (q *Query) PostState(ctx context.Context, postID uint, asks []string, page int, viewer *models.User) (*PostState, error) {
	var post models.Post
	err := q.db.WithContext(ctx).First(&post, postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errPostNotFound
	}
	if err != nil {
		return nil, err
	}

	var viewerID uint
	state := &PostState{
		CurrentPost: post.ID,
		Posts:       map[uint]PostView{post.ID: NewPostView(&post)},
		Rels:        map[uint]RelationView{},
	}
	if viewer != nil {
		viewerID = viewer.ID
		v := viewer.View()
		state.User = &v
	}

	parents, err := q.ParentRelations(ctx, post.ID, ParentRelationsLimit)
	if err != nil {
		return nil, err
	}
	state.Parents = relationIDs(parents)
	if err := q.addRelations(ctx, state.Rels, state.Posts, parents, viewerID); err != nil {
		return nil, err
	}
	parentPosts, err := q.Posts(ctx, parentIDs(parents))
	if err != nil {
		return nil, err
	}
	for _, p := range parentPosts {
		state.Posts[p.ID] = p
	}

	if hasAsk(asks, AskChildren) {
		links, err := q.LinksPage(ctx, post.ID, 0, SortTop, viewerID)
		if err != nil {
			return nil, err
		}
		state.LinkIDs = links.NewRelIDs
		merge(state.Posts, links.Posts)
		merge(state.Rels, links.Rels)
	}

	if hasAsk(asks, AskActions) {
		actions, err := q.ActionsPage(ctx, post.ID, page, viewerID)
		if err != nil {
			return nil, err
		}
		state.Actions = actions.Actions
		state.ActionCount = &actions.ActionCount
		state.Page = &actions.Page
		state.Comments = actions.Comments
		merge(state.Posts, actions.Posts)
		merge(state.Rels, actions.Rels)
	}
	return state, nil
}

// addRelations puts the views of rels and of their child posts into the maps.
func (q *Query) addRelations(ctx context.Context, relsOut map[uint]RelationView, postsOut map[uint]PostView, rels []models.Relation, viewerID uint) error {
	views, err := q.RelationViews(ctx, rels, viewerID)
	if err != nil {
		return err
	}
	for _, v := range views {
		relsOut[v.ID] = v
	}
	posts, err := q.Posts(ctx, childIDs(rels))
	if err != nil {
		return err
	}
	for _, p := range posts {
		postsOut[p.ID] = p
	}
	return nil
}

func parentIDs(rels []models.Relation) []uint {
	ids := make([]uint, 0, len(rels))
	for _, r := range rels {
		ids = append(ids, r.ParentID)
	}
	return ids
}

func hasAsk(asks []string, want string) bool {
	for _, a := range asks {
		if a == want {
			return true
		}
	}
	return false
}

func merge[V any](dst, src map[uint]V) {
	for k, v := range src {
		dst[k] = v
	}
}
