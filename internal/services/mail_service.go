package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"cimars/catalog/internal/config"
	"cimars/catalog/internal/models"
)

// EmailJob is one templated mail waiting for delivery by the worker.
type EmailJob struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject,omitempty"` // overrides the template subject when set
	Template string         `json:"template"`
	Locale   string         `json:"locale"`
	Data     map[string]any `json:"data"`
	ReplyTo  string         `json:"replyTo,omitempty"`
}

// IEmailQueue hands jobs to the background worker.
type IEmailQueue interface {
	EnqueueEmail(ctx context.Context, job EmailJob) error
}

// ContactRequest is a visitor's enquiry from the public site.
type ContactRequest struct {
	Name         string `json:"name" binding:"required"`
	Email        string `json:"email" binding:"required"`
	Phone        string `json:"phone"`
	Message      string `json:"message" binding:"required"`
	PropertyCode string `json:"propertyCode"`
}

func (r *ContactRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return models.NewValidationError("name", "is required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return models.NewValidationError("email", "is not a valid address")
	}
	if strings.TrimSpace(r.Message) == "" {
		return models.NewValidationError("message", "is required")
	}
	return nil
}

type IMailService interface {
	SendEmail(ctx context.Context, to, subject, template string, data map[string]any) error
	SendContact(ctx context.Context, req ContactRequest) error
	SendWelcome(ctx context.Context, to, name string) error
	ListingCreated(ctx context.Context, listing *models.Listing) error
}

type MailService struct {
	cfg       *config.Config
	queue     IEmailQueue
	templates IEmailTemplateService
}

func NewMailService(cfg *config.Config, queue IEmailQueue, templates IEmailTemplateService) *MailService {
	return &MailService{cfg: cfg, queue: queue, templates: templates}
}

// SendEmail checks the recipient and template, then queues the job.
// Delivery itself happens in the worker.
func (s *MailService) SendEmail(ctx context.Context, to, subject, template string, data map[string]any) error {
	return s.enqueue(ctx, EmailJob{To: to, Subject: subject, Template: template, Data: data})
}

func (s *MailService) SendContact(ctx context.Context, req ContactRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if s.cfg.AdminEmail == "" {
		return fmt.Errorf("contact mail: ADMIN_EMAIL is not configured")
	}
	return s.enqueue(ctx, EmailJob{
		To:       s.cfg.AdminEmail,
		Template: TemplateContact,
		ReplyTo:  req.Email,
		Data: map[string]any{
			"name":         req.Name,
			"email":        req.Email,
			"phone":        req.Phone,
			"message":      req.Message,
			"propertyCode": req.PropertyCode,
		},
	})
}

func (s *MailService) SendWelcome(ctx context.Context, to, name string) error {
	return s.enqueue(ctx, EmailJob{
		To:       to,
		Template: TemplateWelcome,
		Data:     map[string]any{"name": name},
	})
}

// ListingCreated tells the admin about a new listing. Without ADMIN_EMAIL
// it does nothing.
func (s *MailService) ListingCreated(ctx context.Context, l *models.Listing) error {
	if s.cfg.AdminEmail == "" {
		slog.Debug("ADMIN_EMAIL not set, skipping listing notification", "code", l.Code)
		return nil
	}
	return s.enqueue(ctx, EmailJob{
		To:       s.cfg.AdminEmail,
		Template: TemplateListingCreated,
		Data: map[string]any{
			"id":       l.ID.Hex(),
			"code":     l.Code,
			"type":     string(l.Kind),
			"dealType": string(l.DealType),
			"city":     l.Address.City,
			"price":    l.Price,
		},
	})
}

func (s *MailService) enqueue(ctx context.Context, job EmailJob) error {
	if _, err := mail.ParseAddress(job.To); err != nil {
		return models.NewValidationError("to", "is not a valid address")
	}
	if job.Locale == "" {
		job.Locale = DefaultLocale
	}
	data := map[string]any{"appName": s.cfg.AppName}
	for k, v := range job.Data {
		data[k] = v
	}
	job.Data = data
	if _, err := s.templates.GetTemplate(ctx, job.Template, job.Locale); err != nil {
		return err
	}

	if err := s.queue.EnqueueEmail(ctx, job); err != nil {
		return fmt.Errorf("enqueueing %s mail to %s: %w", job.Template, job.To, err)
	}
	slog.Info("email queued", "to", job.To, "template", job.Template)
	return nil
}
