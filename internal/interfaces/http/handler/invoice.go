package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apppayment "github.com/pesaflow/backend/internal/application/payment"
	"github.com/pesaflow/backend/internal/domain/payment"
)

// InvoiceHandler serves invoice and payment plan endpoints
type InvoiceHandler struct {
	BaseHandler
	ledger *apppayment.LedgerService
}

// NewInvoiceHandler creates an invoice handler
func NewInvoiceHandler(ledger *apppayment.LedgerService) *InvoiceHandler {
	return &InvoiceHandler{ledger: ledger}
}

// RegisterRoutes registers invoice and payment plan routes on the API group
func (h *InvoiceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	invoices := rg.Group("/invoices")
	{
		invoices.POST("", h.Create)
		invoices.GET("/:id", h.Get)
		invoices.POST("/:id/send", h.Send)
		invoices.POST("/:id/payments", h.RecordPayment)
	}
	plans := rg.Group("/payment-plans")
	{
		plans.POST("", h.CreatePlan)
		plans.POST("/:id/installments", h.RecordInstallment)
	}
}

// Create handles POST /api/v1/invoices
func (h *InvoiceHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		h.BadRequest(c, "Invalid customer ID")
		return
	}

	subtotal, err := decimal.NewFromString(req.Subtotal)
	if err != nil {
		h.Error(c, 400, "INVALID_AMOUNT", "Subtotal must be a decimal number")
		return
	}
	taxAmount := parseDecimalOrZero(req.TaxAmount)
	discountAmount := parseDecimalOrZero(req.DiscountAmount)

	inv, err := h.ledger.CreateInvoice(c.Request.Context(), apppayment.CreateInvoiceCommand{
		TenantID:         tenantID,
		OrganizationName: req.OrganizationName,
		CustomerID:       customerID,
		Subtotal:         subtotal,
		TaxAmount:        taxAmount,
		DiscountAmount:   discountAmount,
		IssueDate:        req.IssueDate,
		DueDate:          req.DueDate,
		Notes:            req.Notes,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, ToInvoiceResponse(inv))
}

// Get handles GET /api/v1/invoices/:id
func (h *InvoiceHandler) Get(c *gin.Context) {
	tenantID, invoiceID, ok := h.tenantAndID(c, "Invalid invoice ID")
	if !ok {
		return
	}

	inv, err := h.ledger.GetInvoice(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToInvoiceResponse(inv))
}

// Send handles POST /api/v1/invoices/:id/send
func (h *InvoiceHandler) Send(c *gin.Context) {
	tenantID, invoiceID, ok := h.tenantAndID(c, "Invalid invoice ID")
	if !ok {
		return
	}

	inv, err := h.ledger.SendInvoice(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToInvoiceResponse(inv))
}

// RecordPayment handles POST /api/v1/invoices/:id/payments
func (h *InvoiceHandler) RecordPayment(c *gin.Context) {
	tenantID, invoiceID, ok := h.tenantAndID(c, "Invalid invoice ID")
	if !ok {
		return
	}

	cmd, ok := h.bindSettlement(c, tenantID)
	if !ok {
		return
	}

	inv, p, err := h.ledger.RecordInvoicePayment(c.Request.Context(), invoiceID, cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	invResp := ToInvoiceResponse(inv)
	h.Success(c, SettlementResponse{
		Invoice: &invResp,
		Payment: ToPaymentResponse(p),
	})
}

// CreatePlan handles POST /api/v1/payment-plans
func (h *InvoiceHandler) CreatePlan(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	var req CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		h.BadRequest(c, "Invalid customer ID")
		return
	}

	totalAmount, err := decimal.NewFromString(req.TotalAmount)
	if err != nil {
		h.Error(c, 400, "INVALID_AMOUNT", "Total amount must be a decimal number")
		return
	}

	plan, err := h.ledger.CreatePaymentPlan(c.Request.Context(), apppayment.CreatePlanCommand{
		TenantID:             tenantID,
		CustomerID:           customerID,
		Description:          req.Description,
		TotalAmount:          totalAmount,
		NumberOfInstallments: req.NumberOfInstallments,
		Frequency:            payment.PlanFrequency(req.Frequency),
		StartDate:            req.StartDate,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, ToPlanResponse(plan))
}

// RecordInstallment handles POST /api/v1/payment-plans/:id/installments
func (h *InvoiceHandler) RecordInstallment(c *gin.Context) {
	tenantID, planID, ok := h.tenantAndID(c, "Invalid payment plan ID")
	if !ok {
		return
	}

	cmd, ok := h.bindSettlement(c, tenantID)
	if !ok {
		return
	}

	plan, p, err := h.ledger.RecordInstallment(c.Request.Context(), planID, cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	planResp := ToPlanResponse(plan)
	h.Success(c, SettlementResponse{
		Plan:    &planResp,
		Payment: ToPaymentResponse(p),
	})
}

func (h *InvoiceHandler) bindSettlement(c *gin.Context, tenantID uuid.UUID) (apppayment.ManualSettlementCommand, bool) {
	var req RecordSettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return apppayment.ManualSettlementCommand{}, false
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		h.Error(c, 400, "INVALID_AMOUNT", "Amount must be a decimal number")
		return apppayment.ManualSettlementCommand{}, false
	}

	return apppayment.ManualSettlementCommand{
		TenantID:         tenantID,
		OrganizationName: req.OrganizationName,
		Amount:           amount,
		Method:           payment.PaymentMethod(req.Method),
		Description:      req.Description,
		RecordedBy:       getUserID(c),
	}, true
}

func (h *InvoiceHandler) tenantAndID(c *gin.Context, invalidMsg string) (uuid.UUID, uuid.UUID, bool) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, invalidMsg)
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, id, true
}

func parseDecimalOrZero(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
