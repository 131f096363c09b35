package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"openthink/internal/db/dbtest"
	"openthink/internal/services"
	"openthink/internal/store"

	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type client struct {
	t       *testing.T
	engine  *gin.Engine
	cookies map[string]*http.Cookie
}

func newClient(t *testing.T) *client {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn := dbtest.New(t)
	log := zap.NewNop()
	require.NoError(t, services.Bootstrap(context.Background(), store.New(conn),
		services.AdminAccount{Username: "admin", Email: "admin@example.com"}, false, log))

	engine := New(Options{
		DB:           conn,
		Log:          log,
		SessionStore: cookie.NewStore([]byte("test-secret")),
		TemplatesDir: "../../web/templates",
		SiteURL:      "https://openthink.example/",
	})
	return &client{t: t, engine: engine, cookies: map[string]*http.Cookie{}}
}

func (c *client) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	c.t.Helper()
	var req *http.Request
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		req = httptest.NewRequest(method, path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}

	w := httptest.NewRecorder()
	c.engine.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		c.cookies[ck.Name] = ck
	}
	return w
}

func (c *client) json(method, path string, body interface{}) (int, map[string]interface{}) {
	c.t.Helper()
	w := c.do(method, path, body)
	var out map[string]interface{}
	require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func (c *client) register(name string) {
	c.t.Helper()
	code, out := c.json(http.MethodPost, "/register", gin.H{
		"username":   name,
		"email":      name + "@example.com",
		"password":   "secret123",
		"r-password": "secret123",
	})
	require.Equal(c.t, http.StatusOK, code, out)
	require.Equal(c.t, name, out["username"])
}

func (c *client) submit(text, title string) map[string]interface{} {
	c.t.Helper()
	code, out := c.json(http.MethodPost, "/submit-post", gin.H{
		"text":         text,
		"title":        title,
		"current_post": 1,
		"ask_for":      []string{"children"},
	})
	require.Equal(c.t, http.StatusOK, code, out)
	return out
}

func TestIndexRendersShell(t *testing.T) {
	c := newClient(t)
	w := c.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "window.APP_STATE")
	assert.Contains(t, w.Body.String(), "Welcome to Openthink!")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestPostByIDDataOnly(t *testing.T) {
	c := newClient(t)
	code, out := c.json(http.MethodGet, "/post-by-id/1?data-only=1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, out["current_post"])
	assert.Nil(t, out["user"])
	assert.EqualValues(t, 0, out["action_count"])
	assert.Contains(t, out["posts"], "1")

	code, out = c.json(http.MethodGet, "/post-by-id/999?data-only=1", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Post not found", out["error"])
}

func TestFeedsOfUnknownPost(t *testing.T) {
	c := newClient(t)
	for _, path := range []string{"/actions/999", "/links/999", "/links/999?sort=new"} {
		code, out := c.json(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, code, path)
		assert.Equal(t, "Post not found", out["error"], path)
	}
}

func TestPostBySlug(t *testing.T) {
	c := newClient(t)
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/post/missing", nil).Code)

	c.register("alice")
	c.submit("some text", "Hello There")
	code, out := c.json(http.MethodGet, "/post/hello-there?data-only=1", nil)
	require.Equal(t, http.StatusOK, code)
	posts := out["posts"].(map[string]interface{})
	current := posts[fmt.Sprint(out["current_post"])].(map[string]interface{})
	assert.Equal(t, "Hello There", current["title"])
	assert.Equal(t, "hello-there", current["url"])
	assert.Len(t, out["parent_ids"], 1)
}

func TestWritesRequireLogin(t *testing.T) {
	c := newClient(t)
	for _, path := range []string{"/submit-post", "/link-post", "/post/1/comment", "/vote", "/logout", "/post/1/edit"} {
		code, out := c.json(http.MethodPost, path, gin.H{})
		assert.Equal(t, http.StatusUnauthorized, code, path)
		assert.NotEmpty(t, out["error"], path)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	c := newClient(t)

	code, out := c.json(http.MethodPost, "/register", gin.H{
		"username": "bad name", "email": "x@y.z", "password": "secret123", "r-password": "secret123",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "username can't contain spaces", out["error"])

	c.register("alice")
	code, out = c.json(http.MethodPost, "/register", gin.H{
		"username": "alice", "email": "other@example.com", "password": "secret123", "r-password": "secret123",
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "That username is taken", out["error"])

	w := c.do(http.MethodPost, "/logout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `"Log out successful"`, w.Body.String())
	code, _ = c.json(http.MethodPost, "/logout", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, out = c.json(http.MethodPost, "/login", gin.H{"username": "alice", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "No user found", out["error"])

	code, out = c.json(http.MethodPost, "/login", gin.H{"username": "alice", "password": "secret123"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alice", out["username"])

	code, out = c.json(http.MethodGet, "/post-by-id/1?data-only=1", nil)
	require.Equal(t, http.StatusOK, code)
	user := out["user"].(map[string]interface{})
	assert.Equal(t, "alice", user["username"])
}

func TestSubmitVoteCommentFlow(t *testing.T) {
	c := newClient(t)
	c.register("alice")

	out := c.submit("hi", "")
	assert.Equal(t, "posted successfully", out["success"])
	linkIDs := out["link_ids"].([]interface{})
	require.Len(t, linkIDs, 1)
	relID := linkIDs[0]

	code, links := c.json(http.MethodGet, "/links/1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []interface{}{relID}, links["new_rel_ids"])

	code, vote := c.json(http.MethodPost, "/vote", gin.H{"rel_id": relID, "value": 1})
	require.Equal(t, http.StatusOK, code, vote)
	rel := vote["rel"].(map[string]interface{})
	assert.EqualValues(t, 1, rel["votecount"])
	assert.EqualValues(t, 1, rel["user_vote_value"])

	_, vote = c.json(http.MethodPost, "/vote", gin.H{"rel_id": relID, "value": 1})
	rel = vote["rel"].(map[string]interface{})
	assert.EqualValues(t, 0, rel["votecount"])
	assert.EqualValues(t, 0, rel["user_vote_value"])

	code, vote = c.json(http.MethodPost, "/vote", gin.H{"rel_id": 999, "value": 1})
	assert.Equal(t, http.StatusNotFound, code, vote)

	code, comment := c.json(http.MethodPost, "/post/1/comment", gin.H{"body": "first!"})
	require.Equal(t, http.StatusOK, code, comment)
	assert.Equal(t, "commented successfully", comment["success"])
	assert.EqualValues(t, 2, comment["action_count"])
	assert.Len(t, comment["comments"], 1)

	code, comment = c.json(http.MethodPost, "/post/1/comment", gin.H{"body": ""})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "missing data", comment["error"])

	code, actions := c.json(http.MethodGet, "/actions/1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, actions["action_count"])
	assert.EqualValues(t, 1, actions["page"])
	feed := actions["actions"].([]interface{})
	require.Len(t, feed, 2)
	assert.Equal(t, []interface{}{relID, "Relation"}, feed[0])

	code, _ = c.json(http.MethodGet, "/actions/1?page=abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSubmitPostFailuresAreTagged(t *testing.T) {
	c := newClient(t)
	c.register("alice")

	code, out := c.json(http.MethodPost, "/submit-post", gin.H{"text": "x", "title": strings.Repeat("t", 141)})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "create-post", out["error_type"])
	assert.Equal(t, "your title must be less than 140 characters long", out["error"])

	code, out = c.json(http.MethodPost, "/submit-post", gin.H{"text": "x", "parent": 999})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "link-posts", out["error_type"])
}

func TestLinkPostResolvesLinks(t *testing.T) {
	c := newClient(t)
	c.register("alice")
	c.submit("parent text", "Parent")
	c.submit("child text", "Child")

	_, parent := c.json(http.MethodGet, "/post/parent?data-only=1", nil)
	parentID := parent["current_post"]

	code, out := c.json(http.MethodPost, "/link-post", gin.H{
		"parent":       parentID,
		"child-text":   "https://openthink.example/post/child",
		"current_post": parentID,
		"ask_for":      []string{"children"},
	})
	require.Equal(t, http.StatusOK, code, out)
	assert.Equal(t, "linked successfully", out["success"])
	assert.Len(t, out["link_ids"], 1)

	code, out = c.json(http.MethodPost, "/link-post", gin.H{"parent": parentID, "child-text": "/post/nope"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Post not found", out["error"])

	code, out = c.json(http.MethodPost, "/link-post", gin.H{"child-text": "1"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "missing data", out["error"])
}

func TestEditPost(t *testing.T) {
	c := newClient(t)
	c.register("alice")
	c.submit("draft", "Draft")
	_, state := c.json(http.MethodGet, "/post/draft?data-only=1", nil)
	id := state["current_post"]

	code, out := c.json(http.MethodPost, fmt.Sprintf("/post/%v/edit", id), gin.H{"title": "Final", "body": "done"})
	require.Equal(t, http.StatusOK, code, out)
	post := out["post"].(map[string]interface{})
	assert.Equal(t, "Final", post["title"])
	assert.Equal(t, "draft", post["url"])
	assert.NotNil(t, post["time_edited"])

	code, _ = c.json(http.MethodPost, "/post/1/edit", gin.H{"title": "Mine now", "body": "x"})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestSitemapListsPosts(t *testing.T) {
	c := newClient(t)
	c.register("alice")
	c.submit("text", "Fresh Post")

	w := c.do(http.MethodGet, "/sitemap.xml", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "<loc>https://openthink.example/</loc>")
	assert.Contains(t, body, "<loc>https://openthink.example/post/fresh-post</loc>")
	assert.Contains(t, body, "<loc>https://openthink.example/post/welcome-to-openthink</loc>")

	w = c.do(http.MethodGet, "/robots.txt", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Sitemap: https://openthink.example/sitemap.xml")
}

func TestResponsesAreCompressedOnRequest(t *testing.T) {
	c := newClient(t)
	req := httptest.NewRequest(http.MethodGet, "/links/1", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	c.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
}
