package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"text/template"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cimars/catalog/internal/db"
	"cimars/catalog/internal/models"
)

// DefaultLocale is used when a caller does not ask for one.
const DefaultLocale = "es-MX"

const (
	TemplateWelcome        = "welcome"
	TemplateContact        = "contact"
	TemplateListingCreated = "listing_created"
)

var ErrTemplateNotFound = errors.New("email template not found")

// Built-in templates, used when the collection holds no override.
var defaultEmailTemplates = map[string]models.EmailTemplate{
	TemplateWelcome: {
		Name:    TemplateWelcome,
		Locale:  DefaultLocale,
		Subject: "Bienvenido a {{.appName}}",
		Body: "Hola {{.name}},\n\n" +
			"Gracias por registrarte en {{.appName}}. Pronto te enviaremos propiedades que te pueden interesar.\n",
	},
	TemplateContact: {
		Name:    TemplateContact,
		Locale:  DefaultLocale,
		Subject: "Nuevo mensaje de contacto{{with .propertyCode}} sobre {{.}}{{end}}",
		Body: "Nombre: {{.name}}\n" +
			"Correo: {{.email}}\n" +
			"{{with .phone}}Teléfono: {{.}}\n{{end}}" +
			"{{with .propertyCode}}Propiedad: {{.}}\n{{end}}" +
			"\n{{.message}}\n",
	},
	TemplateListingCreated: {
		Name:    TemplateListingCreated,
		Locale:  DefaultLocale,
		Subject: "Nueva propiedad {{.code}}",
		Body: "Se publicó la propiedad {{.code}} ({{.type}}, {{.dealType}}).\n" +
			"Ciudad: {{.city}}\n" +
			"Precio: {{printf \"%.2f\" .price}}\n",
	},
}

type IEmailTemplateService interface {
	GetTemplate(ctx context.Context, name, locale string) (*models.EmailTemplate, error)
	SaveTemplate(ctx context.Context, template *models.EmailTemplate) error
	DeleteTemplate(ctx context.Context, name, locale string) error
	Render(ctx context.Context, name, locale string, data map[string]any) (subject, body string, err error)
}

type EmailTemplateService struct {
	db *mongo.Database
}

func NewEmailTemplateService(database *mongo.Database) *EmailTemplateService {
	return &EmailTemplateService{db: database}
}

func (s *EmailTemplateService) collection() *mongo.Collection {
	return s.db.Collection(db.EmailTemplatesCollection)
}

// GetTemplate looks up name/locale in the collection and falls back to the
// built-in template of the same name.
func (s *EmailTemplateService) GetTemplate(ctx context.Context, name, locale string) (*models.EmailTemplate, error) {
	if locale == "" {
		locale = DefaultLocale
	}

	var tpl models.EmailTemplate
	err := s.collection().FindOne(ctx, bson.M{"name": name, "locale": locale}).Decode(&tpl)
	if err == nil {
		return &tpl, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("error retrieving template %s (%s): %w", name, locale, err)
	}

	if def, ok := defaultEmailTemplates[name]; ok {
		return &def, nil
	}
	return nil, fmt.Errorf("%w: %s (locale: %s)", ErrTemplateNotFound, name, locale)
}

// SaveTemplate upserts by name and locale.
func (s *EmailTemplateService) SaveTemplate(ctx context.Context, tpl *models.EmailTemplate) error {
	if tpl.Name == "" {
		return models.NewValidationError("name", "is required")
	}
	if tpl.Locale == "" {
		tpl.Locale = DefaultLocale
	}
	if _, err := parseTemplate(tpl); err != nil {
		return err
	}

	filter := bson.M{"name": tpl.Name, "locale": tpl.Locale}
	update := bson.M{"$set": bson.M{"subject": tpl.Subject, "body": tpl.Body}}
	_, err := s.collection().UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("error saving template: %w", err)
	}
	return nil
}

func (s *EmailTemplateService) DeleteTemplate(ctx context.Context, name, locale string) error {
	if _, err := s.collection().DeleteOne(ctx, bson.M{"name": name, "locale": locale}); err != nil {
		return fmt.Errorf("error deleting template: %w", err)
	}
	return nil
}

func (s *EmailTemplateService) Render(ctx context.Context, name, locale string, data map[string]any) (string, string, error) {
	tpl, err := s.GetTemplate(ctx, name, locale)
	if err != nil {
		return "", "", err
	}
	return renderTemplate(tpl, data)
}

type parsedTemplate struct {
	subject *template.Template
	body    *template.Template
}

func parseTemplate(tpl *models.EmailTemplate) (*parsedTemplate, error) {
	subject, err := template.New(tpl.Name + ".subject").Parse(tpl.Subject)
	if err != nil {
		return nil, models.NewValidationError("subject", "%v", err)
	}
	body, err := template.New(tpl.Name + ".body").Parse(tpl.Body)
	if err != nil {
		return nil, models.NewValidationError("body", "%v", err)
	}
	return &parsedTemplate{subject: subject, body: body}, nil
}

func renderTemplate(tpl *models.EmailTemplate, data map[string]any) (string, string, error) {
	parsed, err := parseTemplate(tpl)
	if err != nil {
		return "", "", fmt.Errorf("template %s: %w", tpl.Name, err)
	}

	var subject, body bytes.Buffer
	if err := parsed.subject.Execute(&subject, data); err != nil {
		return "", "", fmt.Errorf("rendering subject of %s: %w", tpl.Name, err)
	}
	if err := parsed.body.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("rendering body of %s: %w", tpl.Name, err)
	}
	return subject.String(), body.String(), nil
}
