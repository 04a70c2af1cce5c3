package control

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/syncforge/themesync/internal/board"
	"github.com/syncforge/themesync/internal/sync"
	"github.com/syncforge/themesync/internal/version"
)

type handler struct {
	engine *sync.Engine
}

func newHandler(engine *sync.Engine) *handler {
	return &handler{engine: engine}
}

type okResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (h *handler) Index(c *gin.Context) {
	c.PureJSON(http.StatusOK, gin.H{
		"app":     version.AppName,
		"version": version.Version,
	})
}

func (h *handler) Status(c *gin.Context) {
	c.PureJSON(http.StatusOK, h.engine.Status())
}

func (h *handler) Pause(c *gin.Context) {
	h.engine.Pause()
	c.PureJSON(http.StatusOK, &okResponse{
		Success:   true,
		Message:   "watcher paused",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *handler) Resume(c *gin.Context) {
	h.engine.Resume()
	c.PureJSON(http.StatusOK, &okResponse{
		Success:   true,
		Message:   "watcher resumed",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *handler) ExportSet(c *gin.Context) {
	result, err := h.engine.ExportTemplateSet(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.exportError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, result)
}

func (h *handler) ExportTheme(c *gin.Context) {
	result, err := h.engine.ExportTheme(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.exportError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, result)
}

func (h *handler) exportError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, board.ErrNotFound) {
		status = http.StatusNotFound
	}
	c.Error(err)
	c.PureJSON(status, &errorResponse{Success: false, Error: err.Error()})
}
