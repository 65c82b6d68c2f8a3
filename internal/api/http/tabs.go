package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/CacheOnHover/internal/domain/tabgate"
	"github.com/GriffinCanCode/CacheOnHover/internal/providers/browser"
)

// CreateTabRequest opens a tab, optionally loading url.
type CreateTabRequest struct {
	URL      string `json:"url"`
	Activate bool   `json:"activate"`
}

// NavigateRequest loads url into a tab.
type NavigateRequest struct {
	URL string `json:"url" binding:"required"`
}

// ListTabs lists every open tab
func (h *Handlers) ListTabs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tabs": h.host.Tabs()})
}

// CreateTab opens a tab
func (h *Handlers) CreateTab(c *gin.Context) {
	var req CreateTabRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	tab, err := h.host.CreateTab(c.Request.Context(), req.URL)
	if err != nil {
		h.log.Warn("Initial load failed", zap.Stringer("tab_id", tab.ID), zap.Error(err))
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "tab": tab.Info()})
		return
	}
	if req.Activate {
		if err := h.host.Activate(c.Request.Context(), tab.ID); err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error(), "tab": tab.Info()})
			return
		}
	}

	c.JSON(http.StatusCreated, tab.Info())
}

// GetTab describes one tab
func (h *Handlers) GetTab(c *gin.Context) {
	tab, ok := h.tab(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, tab.Info())
}

// CloseTab closes a tab
func (h *Handlers) CloseTab(c *gin.Context) {
	id, ok := tabID(c)
	if !ok {
		return
	}
	if err := h.host.CloseTab(id); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "tab_id": id})
}

// ActivateTab focuses a tab
func (h *Handlers) ActivateTab(c *gin.Context) {
	id, ok := tabID(c)
	if !ok {
		return
	}
	if err := h.host.Activate(c.Request.Context(), id); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	tab, ok := h.tab(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, tab.Info())
}

// NavigateTab loads a URL into a tab
func (h *Handlers) NavigateTab(c *gin.Context) {
	tab, ok := h.tab(c)
	if !ok {
		return
	}

	var req NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := tab.Navigate(c.Request.Context(), req.URL); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, tab.Info())
}

// GetDocument renders the tab's current DOM, prefetch hints included
func (h *Handlers) GetDocument(c *gin.Context) {
	tab, ok := h.tab(c)
	if !ok {
		return
	}
	doc := tab.Document()
	if doc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": browser.ErrNoDocument.Error()})
		return
	}
	markup, err := doc.HTML()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(markup))
}

func (h *Handlers) tab(c *gin.Context) (*browser.Tab, bool) {
	id, ok := tabID(c)
	if !ok {
		return nil, false
	}
	tab, err := h.host.Tab(id)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return nil, false
	}
	return tab, true
}

func tabID(c *gin.Context) (tabgate.TabID, bool) {
	id, err := tabgate.ParseTabID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return 0, false
	}
	return id, true
}
