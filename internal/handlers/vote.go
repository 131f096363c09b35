package handlers

import (
	"net/http"

	"openthink/internal/middleware"
	"openthink/internal/query"
	"openthink/internal/services"

	"github.com/gin-gonic/gin"
)

type VoteHandler struct {
	forum *services.ForumService
	query *query.Query
}

func NewVoteHandler(forum *services.ForumService, q *query.Query) *VoteHandler {
	return &VoteHandler{forum: forum, query: q}
}

type voteRequest struct {
	RelationID uint `form:"rel_id" json:"rel_id"`
	Value      int  `form:"value" json:"value"`
}

// Vote toggles the current user's vote and returns the relation with its new total.
func (h *VoteHandler) Vote(c *gin.Context) {
	var req voteRequest
	if !bind(c, &req) {
		return
	}
	user := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	if _, err := h.forum.SubmitVote(ctx, user, req.RelationID, req.Value); err != nil {
		RespondError(c, err)
		return
	}
	rel, err := h.query.Relation(ctx, req.RelationID, user.ID)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rel": rel})
}
