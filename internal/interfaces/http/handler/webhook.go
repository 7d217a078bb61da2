package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apppayment "github.com/pesaflow/backend/internal/application/payment"
)

// SignatureHeader carries the HMAC signature of the raw webhook body
const SignatureHeader = "X-Mpesa-Signature"

// WebhookHandler receives provider callbacks. The integration ID in the URL
// resolves the owning organization before signature verification runs.
type WebhookHandler struct {
	BaseHandler
	settlements *apppayment.SettlementService
	logger      *zap.Logger
}

// NewWebhookHandler creates a webhook handler
func NewWebhookHandler(settlements *apppayment.SettlementService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{settlements: settlements, logger: logger}
}

// MpesaCallback handles POST /webhooks/mpesa/:integration_id.
// Orphan and duplicate callbacks are acknowledged with 200 so the provider
// stops redelivering; only signature failures and server faults are refused.
func (h *WebhookHandler) MpesaCallback(c *gin.Context) {
	integrationID, err := uuid.Parse(c.Param("integration_id"))
	if err != nil {
		h.BadRequest(c, "Invalid integration ID")
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil || len(payload) == 0 {
		h.BadRequest(c, "Empty callback body")
		return
	}

	signature := c.GetHeader(SignatureHeader)
	result, err := h.settlements.ReconcileCallback(c.Request.Context(), integrationID, payload, signature)
	if err != nil {
		if errors.Is(err, apppayment.ErrInvalidSignature) {
			c.Data(http.StatusUnauthorized, "application/json", result.Acknowledgement)
			return
		}
		if result != nil && result.Acknowledgement != nil {
			c.Data(http.StatusBadRequest, "application/json", result.Acknowledgement)
			return
		}
		h.logger.Error("callback reconciliation failed",
			zap.String("integration_id", integrationID.String()),
			zap.Error(err))
		h.InternalError(c, "Callback processing failed")
		return
	}

	c.Data(http.StatusOK, "application/json", result.Acknowledgement)
}
