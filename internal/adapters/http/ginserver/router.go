package ginserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vshulcz/Deltaline/internal/adapters/publisher/httpjson"
)

// NewRouter builds the sink engine. Middlewares run in the given order
// before every route.
func NewRouter(h *Handler, middlewares ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.RedirectTrailingSlash = false
	r.RemoveExtraSlash = true

	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.String(http.StatusMethodNotAllowed, "method not allowed")
	})

	r.GET("/ping", h.Ping)

	r.POST(httpjson.MetricsPath, h.PostMetrics)
	r.GET(httpjson.MetricsPath, h.ListNames)
	r.GET(httpjson.MetricsPath+"/:name", h.GetLatest)

	return r
}
