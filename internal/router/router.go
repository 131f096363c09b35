package router

import (
	"path/filepath"

	"openthink/internal/handlers"
	"openthink/internal/middleware"
	"openthink/internal/query"
	"openthink/internal/services"
	"openthink/internal/store"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/multitemplate"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const SessionName = "openthink_session"

// Options wires the engine to its collaborators.
type Options struct {
	DB           *gorm.DB
	Log          *zap.Logger
	SessionStore sessions.Store
	TemplatesDir string
	SiteURL      string
	Debug        bool
}

// New builds the gin engine with middleware and every route.
func New(opts Options) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(opts.Log), gin.Recovery())
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(sessions.Sessions(SessionName, opts.SessionStore))
	r.HTMLRender = LoadTemplates(opts.TemplatesDir)

	s := store.New(opts.DB)
	q := query.New(opts.DB)
	auth := services.NewAuthService(s, opts.Log)
	forum := services.NewForumService(s, opts.Log)

	r.Use(middleware.LoadUser(auth))
	RegisterRoutes(r, auth, forum, q, opts)
	return r
}

func RegisterRoutes(r *gin.Engine, auth *services.AuthService, forum *services.ForumService, q *query.Query, opts Options) {
	// Handlers
	authHandler := handlers.NewAuthHandler(auth)
	postHandler := handlers.NewPostHandler(forum, q, opts.Debug)
	voteHandler := handlers.NewVoteHandler(forum, q)
	seoHandler := handlers.NewSEOHandler(q, opts.SiteURL)

	// 公共路由 (Public Routes)
	r.GET("/", postHandler.Index)                  // 根帖
	r.GET("/post-by-id/:id", postHandler.ShowByID) // 按 id 查看帖子
	r.GET("/post/:slug", postHandler.ShowBySlug)   // 按 url 查看帖子
	r.GET("/actions/:postId", postHandler.Actions) // 动态分页
	r.GET("/links/:postId", postHandler.Links)     // 子帖分页
	r.GET("/robots.txt", seoHandler.RobotsTxt)
	r.GET("/sitemap.xml", seoHandler.SitemapXML)

	r.POST("/login", authHandler.Login)       // 登录
	r.POST("/register", authHandler.Register) // 注册并登录

	// 受保护路由 (Protected Routes)
	authorized := r.Group("/")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.POST("/logout", authHandler.Logout)            // 退出登录
		authorized.POST("/submit-post", postHandler.SubmitPost)   // 发帖并挂到父帖下
		authorized.POST("/link-post", postHandler.LinkPost)       // 关联已有帖子
		authorized.POST("/post/:id/comment", postHandler.Comment) // 发表评论
		authorized.POST("/post/:id/edit", postHandler.Edit)       // 编辑帖子
		authorized.POST("/vote", voteHandler.Vote)                // 投票/取消投票
	}
}

// LoadTemplates registers the HTML shell.
func LoadTemplates(templatesDir string) multitemplate.Renderer {
	r := multitemplate.NewRenderer()
	r.AddFromFiles(handlers.BaseTemplate, filepath.Join(templatesDir, handlers.BaseTemplate))
	return r
}
