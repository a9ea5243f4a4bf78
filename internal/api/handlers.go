package api

import (
	"context"
	"net/http"

	"github.com/denyshon/tg-load/internal/bot"
	"github.com/denyshon/tg-load/internal/core"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// secretTokenHeader is how Telegram authenticates webhook deliveries.
// See https://core.telegram.org/bots/api#setwebhook
const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// UpdateHandler processes one decoded update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, u *bot.Update)
}

type handler struct {
	updates     UpdateHandler
	secretToken string
	logger      *zap.Logger

	// baseCtx outlives the webhook request: updates are processed
	// asynchronously so Telegram gets its ack immediately.
	baseCtx context.Context
}

func NewHandler(baseCtx context.Context, updates UpdateHandler, secretToken string, logger *zap.Logger) *handler {
	return &handler{
		updates:     updates,
		secretToken: secretToken,
		logger:      logger,
		baseCtx:     baseCtx,
	}
}

// webhook accepts one Telegram update. A mismatched secret token is
// rejected with 401; a malformed body with 400. Anything decodable is
// acked with 200 and handled in the background.
func (h *handler) webhook(c *gin.Context) {
	if h.secretToken != "" && c.GetHeader(secretTokenHeader) != h.secretToken {
		h.logger.Warn("webhook secret token mismatch",
			zap.String("request_id", GetRequestID(c)))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var u bot.Update
	if err := c.ShouldBindJSON(&u); err != nil {
		appErr := core.NewValidationError("bad update payload", err, "api.webhook")
		c.JSON(appErr.HTTPStatus(), gin.H{"error": appErr.PublicMessage()})
		return
	}

	go h.updates.HandleUpdate(h.baseCtx, &u)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
