package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apppayment "github.com/pesaflow/backend/internal/application/payment"
	"github.com/pesaflow/backend/internal/domain/payment"
)

// PaymentHandler serves the payment lifecycle endpoints
type PaymentHandler struct {
	BaseHandler
	settlements *apppayment.SettlementService
}

// NewPaymentHandler creates a payment handler
func NewPaymentHandler(settlements *apppayment.SettlementService) *PaymentHandler {
	return &PaymentHandler{settlements: settlements}
}

// RegisterRoutes registers payment routes on the API group
func (h *PaymentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	payments := rg.Group("/payments")
	{
		payments.POST("", h.Initiate)
		payments.GET("/:id", h.Get)
		payments.POST("/:id/dispatch", h.Dispatch)
		payments.POST("/:id/cancel", h.Cancel)
		payments.POST("/:id/reverse", h.Reverse)
	}
}

// Initiate handles POST /api/v1/payments
func (h *PaymentHandler) Initiate(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	var req InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		h.Error(c, 400, "INVALID_AMOUNT", "Amount must be a decimal number")
		return
	}

	kind := payment.PaymentKind(req.Kind)
	if req.Kind == "" {
		kind = payment.PaymentKindOther
	}

	p, err := h.settlements.InitiatePayment(c.Request.Context(), apppayment.InitiatePaymentCommand{
		TenantID:         tenantID,
		OrganizationName: req.OrganizationName,
		CustomerID:       parseUUIDPtr(req.CustomerID),
		Amount:           amount,
		PhoneNumber:      req.PhoneNumber,
		Email:            req.Email,
		Description:      req.Description,
		Method:           payment.PaymentMethod(req.Method),
		Kind:             kind,
		InvoiceID:        parseUUIDPtr(req.InvoiceID),
		PaymentPlanID:    parseUUIDPtr(req.PaymentPlanID),
		InitiatedBy:      getUserID(c),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, ToPaymentResponse(p))
}

// Dispatch handles POST /api/v1/payments/:id/dispatch
func (h *PaymentHandler) Dispatch(c *gin.Context) {
	tenantID, paymentID, ok := h.tenantAndID(c)
	if !ok {
		return
	}

	p, err := h.settlements.DispatchToProvider(c.Request.Context(), tenantID, paymentID)
	if err != nil {
		// The payment row may still have transitioned to FAILED; surface the
		// gateway error as the response
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToPaymentResponse(p))
}

// Get handles GET /api/v1/payments/:id
func (h *PaymentHandler) Get(c *gin.Context) {
	tenantID, paymentID, ok := h.tenantAndID(c)
	if !ok {
		return
	}

	p, err := h.settlements.GetPayment(c.Request.Context(), tenantID, paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToPaymentResponse(p))
}

// Cancel handles POST /api/v1/payments/:id/cancel
func (h *PaymentHandler) Cancel(c *gin.Context) {
	tenantID, paymentID, ok := h.tenantAndID(c)
	if !ok {
		return
	}

	p, err := h.settlements.CancelPayment(c.Request.Context(), tenantID, paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToPaymentResponse(p))
}

// Reverse handles POST /api/v1/payments/:id/reverse
func (h *PaymentHandler) Reverse(c *gin.Context) {
	tenantID, paymentID, ok := h.tenantAndID(c)
	if !ok {
		return
	}

	var req ReversePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Reversal reason is required")
		return
	}

	actor := uuid.Nil
	if userID := getUserID(c); userID != nil {
		actor = *userID
	}

	p, err := h.settlements.ReversePayment(c.Request.Context(), tenantID, paymentID, req.Reason, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToPaymentResponse(p))
}

func (h *PaymentHandler) tenantAndID(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payment ID")
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, id, true
}
