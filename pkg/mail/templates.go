package mail

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/telekom/inquiry-pipeline/pkg/delivery"
)

var (
	//go:embed templates/confirmation.tmpl
	confirmationTemplateRaw string
	//go:embed templates/notification.tmpl
	notificationTemplateRaw string

	confirmationTemplate = mustParse("confirmation", confirmationTemplateRaw)
	notificationTemplate = mustParse("notification", notificationTemplateRaw)
)

func mustParse(name, raw string) *template.Template {
	return template.Must(template.New(name).Funcs(sprig.TxtFuncMap()).Parse(raw))
}

// Rendered is a subject and plain-text body ready to send.
type Rendered struct {
	Subject string
	Text    string
}

type mailData struct {
	FormType    string
	RawFormType string
	Locale      string
	Name        string
	Email       string
	SenderName  string
	Fields      []delivery.Field
}

func newMailData(p delivery.Payload, senderName string) mailData {
	fields := make([]delivery.Field, 0, len(p.Data))
	for _, f := range p.Data {
		if strings.TrimSpace(f.Value) == "" {
			continue
		}
		fields = append(fields, f)
	}
	return mailData{
		FormType:    humanize(p.FormType),
		RawFormType: p.FormType,
		Locale:      p.Locale,
		Name:        strings.TrimSpace(p.Value("name")),
		Email:       p.SubmitterEmail(),
		SenderName:  senderName,
		Fields:      fields,
	}
}

// humanize turns "product_demo-request" into "product demo request".
func humanize(formType string) string {
	s := strings.NewReplacer("_", " ", "-", " ").Replace(strings.TrimSpace(formType))
	if s == "" {
		return "website"
	}
	return s
}

func render(t *template.Template, data mailData) (Rendered, error) {
	var subject, body bytes.Buffer
	if err := t.ExecuteTemplate(&subject, "subject", data); err != nil {
		return Rendered{}, fmt.Errorf("render %s subject: %w", t.Name(), err)
	}
	if err := t.ExecuteTemplate(&body, "body", data); err != nil {
		return Rendered{}, fmt.Errorf("render %s body: %w", t.Name(), err)
	}
	return Rendered{Subject: strings.TrimSpace(subject.String()), Text: body.String()}, nil
}

// RenderConfirmation renders the mail sent back to the submitter.
func RenderConfirmation(p delivery.Payload, senderName string) (Rendered, error) {
	return render(confirmationTemplate, newMailData(p, senderName))
}

// RenderNotification renders the internal mail for the operator.
func RenderNotification(p delivery.Payload) (Rendered, error) {
	return render(notificationTemplate, newMailData(p, ""))
}
