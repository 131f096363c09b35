package handlers

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"openthink/internal/query"

	"github.com/gin-gonic/gin"
)

// SitemapLimit 限制 sitemap 中的帖子数量
const SitemapLimit = 500

type SEOHandler struct {
	query   *query.Query
	siteURL string
}

func NewSEOHandler(q *query.Query, siteURL string) *SEOHandler {
	return &SEOHandler{query: q, siteURL: strings.TrimSuffix(siteURL, "/")}
}

// RobotsTxt 返回robots.txt内容
func (h *SEOHandler) RobotsTxt(c *gin.Context) {
	content := fmt.Sprintf(`User-agent: *
Allow: /

# 禁止爬取数据接口
Disallow: /actions/
Disallow: /links/

Sitemap: %s/sitemap.xml
`, h.siteURL)

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.String(http.StatusOK, content)
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

// SitemapXML lists the root page and the most recent posts by their url.
func (h *SEOHandler) SitemapXML(c *gin.Context) {
	posts, err := h.query.RecentPosts(c.Request.Context(), SitemapLimit)
	if err != nil {
		RespondError(c, err)
		return
	}

	set := urlSet{XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	set.URLs = append(set.URLs, sitemapURL{
		Loc:        h.siteURL + "/",
		LastMod:    time.Now().UTC().Format("2006-01-02"),
		ChangeFreq: "daily",
		Priority:   "1.0",
	})
	for _, p := range posts {
		lastmod := p.TimePosted
		if p.TimeEdited != nil {
			lastmod = *p.TimeEdited
		}
		// 越新的帖子优先级越高
		priority, changefreq := "0.6", "weekly"
		if time.Since(p.TimePosted) < 7*24*time.Hour {
			priority, changefreq = "0.8", "daily"
		}
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        h.siteURL + "/post/" + p.Slug,
			LastMod:    lastmod.UTC().Format("2006-01-02"),
			ChangeFreq: changefreq,
			Priority:   priority,
		})
	}

	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		RespondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/xml; charset=utf-8", append([]byte(xml.Header), out...))
}
