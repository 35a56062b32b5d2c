package mailer

import (
	"bytes"
	"embed"
	"html/template"

	apperrors "alawein/internal/pkg/errors"
)

const (
	TemplateWaitlistWelcome = "waitlist-welcome"
	TemplateInvite          = "invite"
	TemplateUpdate          = "update"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates holds one parsed set per email, each composed with the shared layout.
type Templates struct {
	sets map[string]*template.Template
}

func LoadTemplates() (*Templates, error) {
	t := &Templates{sets: map[string]*template.Template{}}
	for _, name := range []string{TemplateWaitlistWelcome, TemplateInvite, TemplateUpdate} {
		set, err := template.New(name).Option("missingkey=zero").ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, err
		}
		t.sets[name] = set
	}
	return t, nil
}

func (t *Templates) Has(name string) bool {
	_, ok := t.sets[name]
	return ok
}

type view struct {
	Subject string
	Support string
	SiteURL string
	Data    map[string]interface{}
}

func (t *Templates) Render(name string, v view) (string, error) {
	set, ok := t.sets[name]
	if !ok {
		return "", apperrors.NewValidation("template", "unknown template "+name)
	}
	if v.Data == nil {
		v.Data = map[string]interface{}{}
	}
	var buf bytes.Buffer
	if err := set.ExecuteTemplate(&buf, "layout", v); err != nil {
		return "", err
	}
	return buf.String(), nil
}
