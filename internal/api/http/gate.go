package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/CacheOnHover/internal/domain/tabgate"
)

// GateRequest describes an outbound request to be checked against the gate.
type GateRequest struct {
	TabID  *int   `json:"tab_id" binding:"required"`
	URL    string `json:"url" binding:"required"`
	Method string `json:"method"`
}

// CheckRequest returns the gate's verdict for a request
func (h *Handlers) CheckRequest(c *gin.Context) {
	var req GateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.gate == nil {
		c.JSON(http.StatusOK, tabgate.BlockingResponse{})
		return
	}

	if req.Method == "" {
		req.Method = http.MethodGet
	}
	c.JSON(http.StatusOK, h.gate.BeforeRequest(tabgate.RequestDetails{
		TabID:  tabgate.TabID(*req.TabID),
		URL:    req.URL,
		Method: req.Method,
	}))
}

// Proxy fetches a subresource on behalf of the tab named in the X-Tab-Id
// header. The tab gate runs before it.
func (h *Handlers) Proxy(c *gin.Context) {
	target := c.Query("url")
	if target == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	resp, err := h.fetcher.Get(c.Request.Context(), target, nil)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.Data(resp.Status, resp.ContentType(), resp.Body)
}
