package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domainErrors "github.com/ashgrove-labs/chat-service/internal/domain/errors"
	"github.com/ashgrove-labs/chat-service/internal/infrastructure/security"
	"github.com/ashgrove-labs/chat-service/internal/utils/metrics"
)

// AdminHandler handles HTTP requests for administrative actions (`/admin/...`).
// Today that is encryption key lifecycle management.
type AdminHandler struct {
	logger  *zap.Logger
	keyring *security.Keyring
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(logger *zap.Logger, keyring *security.Keyring) *AdminHandler {
	return &AdminHandler{
		logger:  logger.Named("admin_handler"),
		keyring: keyring,
	}
}

// KeyStatusResponse describes the keyring state.
type KeyStatusResponse struct {
	ActiveVersion uint32 `json:"active_version"`
	TotalVersions int    `json:"total_versions"`
}

// RotateKeyResponse is returned after a successful rotation.
type RotateKeyResponse struct {
	ActiveVersion uint32 `json:"active_version"`
}

// KeyStatus handles fetching the current keyring state.
// GET /admin/keys
func (h *AdminHandler) KeyStatus(c *gin.Context) {
	version, _, err := h.keyring.Active()
	if err != nil {
		RespondWithError(c, http.StatusInternalServerError, "no active encryption key", "no_active_key", h.logger)
		return
	}

	RespondWithData(c, http.StatusOK, KeyStatusResponse{
		ActiveVersion: version,
		TotalVersions: h.keyring.Versions(),
	})
}

// RotateKey activates a freshly generated key version. Messages sealed before
// the rotation stay readable under their original version.
// POST /admin/keys/rotate
func (h *AdminHandler) RotateKey(c *gin.Context) {
	version, err := h.keyring.Rotate()
	if err != nil {
		RespondWithError(c, http.StatusInternalServerError, "key rotation failed", "rotation_failed", h.logger)
		return
	}

	metrics.KeyRotationsTotal.Inc()
	h.logger.Info("Encryption key rotated", zap.Uint32("active_version", version))
	RespondWithData(c, http.StatusOK, RotateKeyResponse{ActiveVersion: version})
}

// RetireKey marks a key version as unusable for sealing new messages. The
// active version cannot be retired.
// POST /admin/keys/:version/retire
func (h *AdminHandler) RetireKey(c *gin.Context) {
	raw := c.Param("version")
	version, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		RespondWithError(c, http.StatusBadRequest, "invalid key version", "invalid_version", h.logger)
		return
	}

	if err := h.keyring.Retire(uint32(version)); err != nil {
		if errors.Is(err, domainErrors.ErrKeyNotFound) {
			RespondWithError(c, http.StatusNotFound, "key version not found", "key_not_found", h.logger)
			return
		}
		RespondWithError(c, http.StatusConflict, err.Error(), "key_active", h.logger)
		return
	}

	h.logger.Info("Encryption key retired", zap.Uint64("version", version))
	c.Status(http.StatusNoContent)
}
