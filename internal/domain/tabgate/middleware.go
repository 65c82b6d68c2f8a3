package tabgate

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HeaderTabID carries the originating tab of a proxied request.
const HeaderTabID = "X-Tab-Id"

// Middleware applies the gate to gin routes. Requests without a tab header
// count as NoTab and pass; cancelled requests end with 403.
func Middleware(g *Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := NoTab
		if raw := c.GetHeader(HeaderTabID); raw != "" {
			parsed, err := ParseTabID(raw)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			id = parsed
		}

		verdict := g.BeforeRequest(RequestDetails{
			TabID:  id,
			URL:    requestURL(c.Request),
			Method: c.Request.Method,
		})
		if verdict.Cancel {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":  "request cancelled: tab is not active",
				"tab_id": int(id),
			})
			return
		}

		c.Next()
	}
}

func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
