package fileproxy

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const unauthorizedMsg = "Backblaze unauthorized: check credentials or permissions"

type Handler struct {
	open   Opener
	logger *zap.Logger
}

func NewHandler(open Opener, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{open: open, logger: logger}
}

type uploadResponse struct {
	FileID   string `json:"fileId"`
	FileName string `json:"fileName"`
}

// Upload stores the multipart file under <workspaceId>/<original name>.
func (h *Handler) Upload(c *gin.Context) {
	workspaceID := c.PostForm("workspaceId")
	fh, err := c.FormFile("file")
	if workspaceID == "" || err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing workspaceId or file"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.fail(c, err, "Upload failed")
		return
	}
	defer func() { _ = f.Close() }()

	blob, err := h.open(ScopeFor(workspaceID))
	if err != nil {
		h.fail(c, err, "Upload failed")
		return
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := workspaceID + "/" + fh.Filename
	id, err := blob.Put(c.Request.Context(), key, f, fh.Size, contentType)
	if err != nil {
		h.fail(c, err, "Upload failed")
		return
	}

	h.logger.Info("file uploaded", zap.String("key", key), zap.Int64("size", fh.Size))
	c.JSON(http.StatusOK, uploadResponse{FileID: id, FileName: key})
}

type filesRequest struct {
	WorkspaceID string `json:"workspaceId" binding:"required"`
}

type fileEntry struct {
	FileName string `json:"fileName"`
	FileID   string `json:"fileId"`
}

type filesResponse struct {
	Files []fileEntry `json:"files"`
}

// Files lists a workspace, returning names relative to it.
func (h *Handler) Files(c *gin.Context) {
	var req filesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing workspaceId"})
		return
	}

	blob, err := h.open(ScopeFor(req.WorkspaceID))
	if err != nil {
		h.fail(c, err, "List failed")
		return
	}

	prefix := req.WorkspaceID + "/"
	objs, err := blob.List(c.Request.Context(), prefix)
	if err != nil {
		h.fail(c, err, "List failed")
		return
	}

	files := make([]fileEntry, 0, len(objs))
	for _, o := range objs {
		files = append(files, fileEntry{FileName: strings.TrimPrefix(o.Key, prefix), FileID: o.ID})
	}
	c.JSON(http.StatusOK, filesResponse{Files: files})
}

type downloadRequest struct {
	WorkspaceID string `json:"workspaceId" binding:"required"`
	FileName    string `json:"fileName" binding:"required"`
}

// Download streams one object with its stored content type.
func (h *Handler) Download(c *gin.Context) {
	var req downloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing workspaceId or fileName"})
		return
	}

	blob, err := h.open(ScopeFor(req.WorkspaceID))
	if err != nil {
		h.fail(c, err, "Download failed")
		return
	}

	dl, err := blob.Get(c.Request.Context(), req.WorkspaceID+"/"+req.FileName)
	if err != nil {
		h.fail(c, err, "Download failed")
		return
	}
	defer func() { _ = dl.Body.Close() }()

	contentType := dl.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, dl.Size, contentType, dl.Body, nil)
}

func (h *Handler) fail(c *gin.Context, err error, msg string) {
	h.logger.Error(strings.ToLower(msg), zap.String("path", c.FullPath()), zap.Error(err))
	if errors.Is(err, ErrUnauthorized) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": unauthorizedMsg})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

// NewRouter returns the engine serving the three file routes.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(h.logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.POST("/upload", h.Upload)
	api.POST("/files", h.Files)
	api.POST("/download", h.Download)
	return router
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}
