package handlers

import (
	"encoding/json"
	"html/template"
	"net/http"

	"openthink/internal/apperr"
	"openthink/internal/middleware"
	"openthink/internal/query"
	"openthink/internal/utils"

	"github.com/gin-gonic/gin"
)

// BaseTemplate is the HTML shell the client app boots from.
const BaseTemplate = "base.html"

// Render helper to inject common variables like 'current user'
func Render(c *gin.Context, code int, name string, obj gin.H) {
	if obj == nil {
		obj = gin.H{}
	}
	if user := middleware.CurrentUser(c); user != nil {
		obj["CurrentUser"] = user.View()
	}
	obj["CurrentPath"] = c.Request.URL.Path
	c.HTML(code, name, obj)
}

// renderState writes the app state as JSON for data-only requests, otherwise
// embeds it in the HTML shell.
func renderState(c *gin.Context, state *query.PostState, debug bool) {
	if c.Query("data-only") != "" {
		c.JSON(http.StatusOK, state)
		return
	}
	raw, err := json.Marshal(state)
	if err != nil {
		RespondError(c, err)
		return
	}
	Render(c, http.StatusOK, BaseTemplate, gin.H{
		"AppState": template.JS(raw),
		"Debug":    debug,
	})
}

// RespondError renders a failure. Tagged failures become {"error": message}
// with a status by kind; anything else is logged and hidden behind a 500.
func RespondError(c *gin.Context, err error) {
	ae, ok := apperr.As(err)
	if !ok {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	body := gin.H{"error": ae.Message}
	if ae.Op != "" {
		body["error_type"] = ae.Op
	}
	c.AbortWithStatusJSON(statusFor(ae), body)
}

func statusFor(ae *apperr.Error) int {
	switch {
	case ae.Kind == apperr.KindNotFound:
		return http.StatusNotFound
	case ae.Kind == apperr.KindConflict:
		return http.StatusConflict
	case ae.Code == apperr.CodeBadCredentials:
		return http.StatusUnauthorized
	case ae.Code == apperr.CodeForbidden:
		return http.StatusForbidden
	}
	return http.StatusBadRequest
}

// paramID parses a numeric path parameter; 0 when malformed.
func paramID(c *gin.Context, name string) uint {
	return utils.StringToUint(c.Param(name))
}

// bind decodes a JSON or form body into req.
func bind(c *gin.Context, req interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBind(req); err != nil {
		RespondError(c, apperr.Validation(apperr.CodeInvalidInput, "malformed request"))
		return false
	}
	return true
}

// stateRequest is the optional part of a write request asking for fresh app
// state of the page the client is on.
type stateRequest struct {
	CurrentPost uint     `form:"current_post" json:"current_post"`
	AskFor      []string `form:"ask_for" json:"ask_for"`
	Page        *int     `form:"page" json:"page"`
}

func (r stateRequest) wanted() bool {
	return r.CurrentPost != 0 && len(r.AskFor) > 0
}

func (r stateRequest) page() int {
	if r.Page == nil {
		return 0
	}
	return *r.Page
}

// stateResponse is a success message optionally carrying app state.
type stateResponse struct {
	Success string `json:"success"`
	*query.PostState
}
