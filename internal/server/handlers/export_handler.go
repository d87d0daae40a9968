package handlers

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/materialbot/internal/apperrors"
	"github.com/mamadbah2/materialbot/internal/domain/models"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Exporter produces inventory workbooks.
type Exporter interface {
	ExportWorkbook(ctx context.Context, w io.Writer) error
	ExportFileName() string
}

// SnapshotReader loads archived snapshots.
type SnapshotReader interface {
	LatestSnapshot(ctx context.Context) (models.InventorySnapshot, error)
}

// InventoryHandler serves token-guarded inventory downloads.
type InventoryHandler struct {
	exporter  Exporter
	snapshots SnapshotReader
	token     string
	logger    *zap.Logger
}

// NewInventoryHandler constructs the handler. snapshots may be nil when no
// archive is configured.
func NewInventoryHandler(exporter Exporter, snapshots SnapshotReader, token string, logger *zap.Logger) *InventoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryHandler{exporter: exporter, snapshots: snapshots, token: token, logger: logger}
}

// RequireToken rejects requests without the export bearer token. An empty
// configured token disables the endpoints.
func (h *InventoryHandler) RequireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.token == "" {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "export disabled"})
			return
		}
		got := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if got == "" {
			got = c.Query("token")
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}

// Export streams the current inventory as an xlsx workbook.
func (h *InventoryHandler) Export(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.exporter.ExportWorkbook(c.Request.Context(), &buf); err != nil {
		h.logger.Error("failed to export inventory", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "unable to export inventory"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.exporter.ExportFileName()))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// LatestSnapshot returns the most recent archived snapshot as JSON.
func (h *InventoryHandler) LatestSnapshot(c *gin.Context) {
	if h.snapshots == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "snapshot archive disabled"})
		return
	}

	snapshot, err := h.snapshots.LatestSnapshot(c.Request.Context())
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot yet"})
		return
	case err != nil:
		h.logger.Error("failed to load snapshot", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "unable to load snapshot"})
		return
	}

	c.JSON(http.StatusOK, snapshot)
}
