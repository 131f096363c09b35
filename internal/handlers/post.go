package handlers

import (
	"net/http"
	"strconv"

	"openthink/internal/apperr"
	"openthink/internal/middleware"
	"openthink/internal/models"
	"openthink/internal/query"
	"openthink/internal/services"

	"github.com/gin-gonic/gin"
)

var errBadPage = apperr.Validation(apperr.CodeInvalidInput, "page must be a number")

type PostHandler struct {
	forum *services.ForumService
	query *query.Query
	debug bool
}

func NewPostHandler(forum *services.ForumService, q *query.Query, debug bool) *PostHandler {
	return &PostHandler{forum: forum, query: q, debug: debug}
}

// Index 首页即根帖
func (h *PostHandler) Index(c *gin.Context) {
	h.show(c, models.RootPostID)
}

func (h *PostHandler) ShowByID(c *gin.Context) {
	id := paramID(c, "id")
	if id == 0 {
		RespondError(c, apperr.NotFound("Post not found"))
		return
	}
	h.show(c, id)
}

func (h *PostHandler) ShowBySlug(c *gin.Context) {
	id, err := h.query.PostIDBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		RespondError(c, err)
		return
	}
	h.show(c, id)
}

func (h *PostHandler) show(c *gin.Context, postID uint) {
	page, ok := queryPage(c, 0)
	if !ok {
		return
	}
	state, err := h.query.PostState(c.Request.Context(), postID,
		[]string{query.AskChildren, query.AskActions}, page, middleware.CurrentUser(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	renderState(c, state, h.debug)
}

// Actions returns one page of a post's activity; the last page when none is given.
func (h *PostHandler) Actions(c *gin.Context) {
	page, ok := queryPage(c, 0)
	if !ok {
		return
	}
	out, err := h.query.ActionsPage(c.Request.Context(), paramID(c, "postId"), page, viewerID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Links returns one page of child relations, top voted first unless sort says otherwise.
func (h *PostHandler) Links(c *gin.Context) {
	page, ok := queryPage(c, 0)
	if !ok {
		return
	}
	sortBy := c.DefaultQuery("sort", query.SortTop)
	out, err := h.query.LinksPage(c.Request.Context(), paramID(c, "postId"), page, sortBy, viewerID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type submitPostRequest struct {
	Text   string `form:"text" json:"text"`
	Title  string `form:"title" json:"title"`
	Parent uint   `form:"parent" json:"parent"`
	stateRequest
}

func (h *PostHandler) SubmitPost(c *gin.Context) {
	var req submitPostRequest
	if !bind(c, &req) {
		return
	}
	_, _, err := h.forum.SubmitPost(c.Request.Context(), middleware.CurrentUser(c), services.SubmitPostInput{
		Text:     req.Text,
		Title:    req.Title,
		ParentID: req.Parent,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	h.respondWithState(c, "posted successfully", req.stateRequest)
}

type linkPostRequest struct {
	Parent    uint   `form:"parent" json:"parent"`
	ChildText string `form:"child-text" json:"child-text"`
	stateRequest
}

// LinkPost links an existing post, named by id or by link, under a parent.
func (h *PostHandler) LinkPost(c *gin.Context) {
	var req linkPostRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	childID, err := h.query.ResolvePostRef(ctx, req.ChildText)
	if err != nil {
		RespondError(c, err)
		return
	}
	if _, err := h.forum.LinkPosts(ctx, req.Parent, childID, middleware.CurrentUser(c)); err != nil {
		RespondError(c, err)
		return
	}
	h.respondWithState(c, "linked successfully", req.stateRequest)
}

type commentRequest struct {
	Body string `form:"body" json:"body"`
}

// Comment adds a comment and returns the last page of the post's actions.
func (h *PostHandler) Comment(c *gin.Context) {
	var req commentRequest
	if !bind(c, &req) {
		return
	}
	postID := paramID(c, "id")
	user := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	if _, err := h.forum.SubmitComment(ctx, user, postID, req.Body); err != nil {
		RespondError(c, err)
		return
	}
	state, err := h.query.PostState(ctx, postID, []string{query.AskActions}, 0, user)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stateResponse{Success: "commented successfully", PostState: state})
}

type editPostRequest struct {
	Title string `form:"title" json:"title"`
	Body  string `form:"body" json:"body"`
}

func (h *PostHandler) Edit(c *gin.Context) {
	var req editPostRequest
	if !bind(c, &req) {
		return
	}
	post, err := h.forum.EditPost(c.Request.Context(), middleware.CurrentUser(c), paramID(c, "id"), req.Title, req.Body)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": "edited successfully", "post": query.NewPostView(post)})
}

func (h *PostHandler) respondWithState(c *gin.Context, success string, req stateRequest) {
	resp := stateResponse{Success: success}
	if req.wanted() {
		state, err := h.query.PostState(c.Request.Context(), req.CurrentPost, req.AskFor, req.page(), middleware.CurrentUser(c))
		if err != nil {
			RespondError(c, err)
			return
		}
		resp.PostState = state
	}
	c.JSON(http.StatusOK, resp)
}

// queryPage reads ?page=, falling back to def when absent.
func queryPage(c *gin.Context, def int) (int, bool) {
	raw, ok := c.GetQuery("page")
	if !ok || raw == "" {
		return def, true
	}
	page, err := strconv.Atoi(raw)
	if err != nil {
		RespondError(c, errBadPage)
		return 0, false
	}
	return page, true
}

func viewerID(c *gin.Context) uint {
	if user := middleware.CurrentUser(c); user != nil {
		return user.ID
	}
	return 0
}
