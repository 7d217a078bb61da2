package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appnotification "github.com/pesaflow/backend/internal/application/notification"
	"github.com/pesaflow/backend/internal/domain/notification"
)

// SendNotificationRequest is the request body for enqueueing a notification
type SendNotificationRequest struct {
	Channel        string     `json:"channel" binding:"required"`
	Priority       string     `json:"priority"`
	CustomerID     *string    `json:"customer_id" binding:"omitempty,uuid"`
	RecipientPhone string     `json:"recipient_phone" binding:"omitempty,msisdn"`
	RecipientEmail string     `json:"recipient_email" binding:"omitempty,email"`
	Subject        string     `json:"subject"`
	Message        string     `json:"message" binding:"required"`
	PaymentID      *string    `json:"payment_id" binding:"omitempty,uuid"`
	InvoiceID      *string    `json:"invoice_id" binding:"omitempty,uuid"`
	ScheduledFor   *time.Time `json:"scheduled_for"`
}

// BulkSendRequest is the request body for a bulk enqueue
type BulkSendRequest struct {
	CustomerIDs []string `json:"customer_ids" binding:"required,min=1,dive,uuid"`
	Channel     string   `json:"channel" binding:"required"`
	Priority    string   `json:"priority"`
	Subject     string   `json:"subject"`
	Message     string   `json:"message" binding:"required"`
}

// NotificationResponse is the API representation of a notification
type NotificationResponse struct {
	ID               string     `json:"id"`
	Channel          string     `json:"channel"`
	Status           string     `json:"status"`
	Priority         string     `json:"priority"`
	CustomerID       *string    `json:"customer_id,omitempty"`
	RecipientPhone   string     `json:"recipient_phone,omitempty"`
	RecipientEmail   string     `json:"recipient_email,omitempty"`
	Subject          string     `json:"subject,omitempty"`
	Message          string     `json:"message"`
	PaymentID        *string    `json:"payment_id,omitempty"`
	InvoiceID        *string    `json:"invoice_id,omitempty"`
	NextAttemptAt    *time.Time `json:"next_attempt_at,omitempty"`
	SentAt           *time.Time `json:"sent_at,omitempty"`
	DeliveryAttempts int        `json:"delivery_attempts"`
	FailureReason    string     `json:"failure_reason,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// ToNotificationResponse converts a notification to its API representation
func ToNotificationResponse(n *notification.Notification) NotificationResponse {
	return NotificationResponse{
		ID:               n.ID.String(),
		Channel:          n.Channel.String(),
		Status:           string(n.Status),
		Priority:         string(n.Priority),
		CustomerID:       uuidPtrToString(n.CustomerID),
		RecipientPhone:   n.RecipientPhone,
		RecipientEmail:   n.RecipientEmail,
		Subject:          n.Subject,
		Message:          n.Message,
		PaymentID:        uuidPtrToString(n.PaymentID),
		InvoiceID:        uuidPtrToString(n.InvoiceID),
		NextAttemptAt:    n.NextAttemptAt,
		SentAt:           n.SentAt,
		DeliveryAttempts: n.DeliveryAttempts,
		FailureReason:    n.FailureReason,
		CreatedAt:        n.CreatedAt,
		UpdatedAt:        n.UpdatedAt,
	}
}

// NotificationHandler serves notification endpoints
type NotificationHandler struct {
	BaseHandler
	dispatch *appnotification.DispatchService
}

// NewNotificationHandler creates a notification handler
func NewNotificationHandler(dispatch *appnotification.DispatchService) *NotificationHandler {
	return &NotificationHandler{dispatch: dispatch}
}

// RegisterRoutes registers notification routes on the API group
func (h *NotificationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	notifications := rg.Group("/notifications")
	{
		notifications.POST("", h.Send)
		notifications.POST("/bulk", h.SendBulk)
		notifications.GET("/:id", h.Get)
	}
}

// Send handles POST /api/v1/notifications
func (h *NotificationHandler) Send(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	var req SendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	n, err := h.dispatch.Enqueue(c.Request.Context(), appnotification.SendCommand{
		TenantID:       tenantID,
		Channel:        notification.Channel(req.Channel),
		Priority:       notification.Priority(req.Priority),
		CustomerID:     parseUUIDPtr(req.CustomerID),
		RecipientPhone: req.RecipientPhone,
		RecipientEmail: req.RecipientEmail,
		Subject:        req.Subject,
		Message:        req.Message,
		PaymentID:      parseUUIDPtr(req.PaymentID),
		InvoiceID:      parseUUIDPtr(req.InvoiceID),
		ScheduledFor:   req.ScheduledFor,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, ToNotificationResponse(n))
}

// SendBulk handles POST /api/v1/notifications/bulk
func (h *NotificationHandler) SendBulk(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	var req BulkSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	customerIDs := make([]uuid.UUID, 0, len(req.CustomerIDs))
	for _, s := range req.CustomerIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			h.BadRequest(c, "Invalid customer ID: "+s)
			return
		}
		customerIDs = append(customerIDs, id)
	}

	result, err := h.dispatch.EnqueueBulk(c.Request.Context(), appnotification.BulkSendCommand{
		TenantID:    tenantID,
		CustomerIDs: customerIDs,
		Channel:     notification.Channel(req.Channel),
		Priority:    notification.Priority(req.Priority),
		Subject:     req.Subject,
		Message:     req.Message,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"queued": result.Queued, "failed": result.Failed})
}

// Get handles GET /api/v1/notifications/:id
func (h *NotificationHandler) Get(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid notification ID")
		return
	}

	n, err := h.dispatch.GetNotification(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToNotificationResponse(n))
}
