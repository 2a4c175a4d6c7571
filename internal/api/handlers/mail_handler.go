package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cimars/catalog/internal/models"
	"cimars/catalog/internal/services"
)

// MailHandler queues outbound mail and reports {success, message}.
type MailHandler struct {
	mailService    services.IMailService
	enquiryService services.IEnquiryService
}

func NewMailHandler(mailService services.IMailService, enquiryService services.IEnquiryService) *MailHandler {
	return &MailHandler{mailService: mailService, enquiryService: enquiryService}
}

func (h *MailHandler) respond(c *gin.Context, err error, okMessage string) {
	if err == nil {
		c.JSON(http.StatusOK, models.MailResult{Success: true, Message: okMessage})
		return
	}

	status := http.StatusInternalServerError
	message := "Failed to send email"
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		status, message = http.StatusBadRequest, ve.Error()
	case errors.Is(err, services.ErrTemplateNotFound):
		status, message = http.StatusBadRequest, "Unknown email template"
	default:
		_ = c.Error(err)
		slog.Error("mail request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, models.MailResult{Success: false, Message: message})
}

// Contact handles POST /v1/mail/contact
func (h *MailHandler) Contact(c *gin.Context) {
	var req services.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respond(c, models.NewValidationError("body", "name, email and message are required"), "")
		return
	}
	_, err := h.enquiryService.Submit(c.Request.Context(), req)
	h.respond(c, err, "Message sent")
}

// ListEnquiries handles GET /v1/admin/enquiries?limit=N
func (h *MailHandler) ListEnquiries(c *gin.Context) {
	limit := 0
	if raw, ok := c.GetQuery("limit"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(c, models.ErrInvalidLimit, "list enquiries")
			return
		}
		limit = n
	}
	enquiries, err := h.enquiryService.ListEnquiries(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err, "list enquiries")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": enquiries})
}

type welcomeRequest struct {
	To   string `json:"to" binding:"required"`
	Name string `json:"name"`
}

// Welcome handles POST /v1/admin/mail/welcome
func (h *MailHandler) Welcome(c *gin.Context) {
	var req welcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respond(c, models.NewValidationError("to", "is required"), "")
		return
	}
	h.respond(c, h.mailService.SendWelcome(c.Request.Context(), req.To, req.Name), "Welcome email queued")
}

type sendRequest struct {
	To       string         `json:"to" binding:"required"`
	Subject  string         `json:"subject"`
	Template string         `json:"template" binding:"required"`
	Data     map[string]any `json:"data"`
}

// Send handles POST /v1/admin/mail/send with any stored template.
func (h *MailHandler) Send(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respond(c, models.NewValidationError("body", "to and template are required"), "")
		return
	}
	h.respond(c, h.mailService.SendEmail(c.Request.Context(), req.To, req.Subject, req.Template, req.Data), "Email queued")
}
