package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"cimars/catalog/internal/config"
	"cimars/catalog/internal/models"
)

type memoryEmailQueue struct {
	jobs []EmailJob
	err  error
}

func (q *memoryEmailQueue) EnqueueEmail(ctx context.Context, job EmailJob) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

// defaultTemplates serves only the built-in templates.
type defaultTemplates struct{}

func (defaultTemplates) GetTemplate(ctx context.Context, name, locale string) (*models.EmailTemplate, error) {
	if tpl, ok := defaultEmailTemplates[name]; ok {
		return &tpl, nil
	}
	return nil, ErrTemplateNotFound
}

func (defaultTemplates) SaveTemplate(ctx context.Context, tpl *models.EmailTemplate) error { return nil }

func (defaultTemplates) DeleteTemplate(ctx context.Context, name, locale string) error { return nil }

func (d defaultTemplates) Render(ctx context.Context, name, locale string, data map[string]any) (string, string, error) {
	tpl, err := d.GetTemplate(ctx, name, locale)
	if err != nil {
		return "", "", err
	}
	return renderTemplate(tpl, data)
}

func newMailTest(adminEmail string) (*MailService, *memoryEmailQueue) {
	queue := &memoryEmailQueue{}
	cfg := &config.Config{AdminEmail: adminEmail, AppName: "CIMA RS"}
	return NewMailService(cfg, queue, defaultTemplates{}), queue
}

func TestMailService_SendEmail(t *testing.T) {
	svc, queue := newMailTest("admin@cimars.mx")
	data := map[string]any{"name": "Ana"}

	require.NoError(t, svc.SendEmail(context.Background(), "ana@example.com", "Hola", TemplateWelcome, data))
	require.Len(t, queue.jobs, 1)

	job := queue.jobs[0]
	assert.Equal(t, "ana@example.com", job.To)
	assert.Equal(t, "Hola", job.Subject)
	assert.Equal(t, DefaultLocale, job.Locale)
	assert.Equal(t, "CIMA RS", job.Data["appName"])
	assert.NotContains(t, data, "appName", "caller data is not modified")
}

func TestMailService_SendEmail_Rejects(t *testing.T) {
	svc, queue := newMailTest("admin@cimars.mx")
	ctx := context.Background()

	err := svc.SendEmail(ctx, "not-an-address", "", TemplateWelcome, nil)
	assert.True(t, models.IsValidationError(err))

	err = svc.SendEmail(ctx, "ana@example.com", "", "newsletter", nil)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
	assert.Empty(t, queue.jobs)

	queue.err = errors.New("redis down")
	err = svc.SendWelcome(ctx, "ana@example.com", "Ana")
	assert.ErrorContains(t, err, "redis down")
}

func TestMailService_SendContact(t *testing.T) {
	svc, queue := newMailTest("admin@cimars.mx")
	req := ContactRequest{Name: "Luis", Email: "luis@example.com", Message: "Me interesa", PropertyCode: "VC014"}

	require.NoError(t, svc.SendContact(context.Background(), req))
	require.Len(t, queue.jobs, 1)
	job := queue.jobs[0]
	assert.Equal(t, "admin@cimars.mx", job.To)
	assert.Equal(t, "luis@example.com", job.ReplyTo)
	assert.Equal(t, TemplateContact, job.Template)
	assert.Equal(t, "VC014", job.Data["propertyCode"])

	subject, body, err := defaultTemplates{}.Render(context.Background(), job.Template, job.Locale, job.Data)
	require.NoError(t, err)
	assert.Equal(t, "Nuevo mensaje de contacto sobre VC014", subject)
	assert.Contains(t, body, "Me interesa")
	assert.NotContains(t, body, "Teléfono", "empty phone is omitted")
}

func TestMailService_SendContact_Validation(t *testing.T) {
	svc, _ := newMailTest("admin@cimars.mx")
	cases := map[string]ContactRequest{
		"name":    {Email: "a@b.mx", Message: "x"},
		"email":   {Name: "A", Email: "nope", Message: "x"},
		"message": {Name: "A", Email: "a@b.mx", Message: "  "},
	}
	for field, req := range cases {
		t.Run(field, func(t *testing.T) {
			var ve *models.ValidationError
			require.True(t, errors.As(svc.SendContact(context.Background(), req), &ve))
			assert.Equal(t, field, ve.Field)
		})
	}

	noAdmin, _ := newMailTest("")
	assert.Error(t, noAdmin.SendContact(context.Background(), ContactRequest{Name: "A", Email: "a@b.mx", Message: "x"}))
}

func TestMailService_ListingCreated(t *testing.T) {
	svc, queue := newMailTest("admin@cimars.mx")
	l := construction(models.DealSale, models.ConstructionHouse)
	l.ID = primitive.NewObjectID()
	l.Code = "VC001"

	require.NoError(t, svc.ListingCreated(context.Background(), l))
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, TemplateListingCreated, queue.jobs[0].Template)

	subject, body, err := renderTemplate(&models.EmailTemplate{
		Name:    TemplateListingCreated,
		Subject: defaultEmailTemplates[TemplateListingCreated].Subject,
		Body:    defaultEmailTemplates[TemplateListingCreated].Body,
	}, queue.jobs[0].Data)
	require.NoError(t, err)
	assert.Equal(t, "Nueva propiedad VC001", subject)
	assert.Contains(t, body, "Construction")

	silent, silentQueue := newMailTest("")
	require.NoError(t, silent.ListingCreated(context.Background(), l))
	assert.Empty(t, silentQueue.jobs)
}

func TestRenderTemplate_ParseError(t *testing.T) {
	_, _, err := renderTemplate(&models.EmailTemplate{Name: "broken", Subject: "{{.x", Body: ""}, nil)
	assert.True(t, models.IsValidationError(err))
}
