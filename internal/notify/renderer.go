package notify

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"text/template"
)

const (
	TemplateVerifyEmail   = "verify-email"
	TemplateResetPassword = "reset-password"
)

const (
	elementSubject = "subject"
	elementBody    = "body"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Data available in every email template
type EmailData struct {
	Email string
	Link  string
}

// Renders '<name>.tmpl' files, each of them must define 'subject' and 'body' templates
type Renderer struct {
	templates map[string]*template.Template
}

// Renderer over embedded templates
func NewRenderer() (*Renderer, error) {
	sub, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		return nil, err
	}
	return NewFSRenderer(sub)
}

// Parse all templates from root of the fsys upfront so broken templates fail on start
func NewFSRenderer(fsys fs.FS) (*Renderer, error) {
	files, err := fs.Glob(fsys, "*.tmpl")
	if err != nil {
		return nil, err
	}

	templates := make(map[string]*template.Template, len(files))
	for _, file := range files {
		name := strings.TrimSuffix(file, ".tmpl")

		tmpl, err := template.New(name).Option("missingkey=error").ParseFS(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("error while parsing template %s. Err: %w", name, err)
		}

		for _, element := range []string{elementSubject, elementBody} {
			if tmpl.Lookup(element) == nil {
				return nil, fmt.Errorf("template %s misses %s", name, element)
			}
		}

		templates[name] = tmpl
	}

	return &Renderer{templates: templates}, nil
}

func (r *Renderer) Render(name string, data any) (subject string, body string, err error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return "", "", fmt.Errorf("unknown template %q", name)
	}

	var sb strings.Builder
	if err := tmpl.ExecuteTemplate(&sb, elementSubject, data); err != nil {
		return "", "", fmt.Errorf("error while rendering %s subject. Err: %w", name, err)
	}
	subject = strings.TrimSpace(sb.String())

	sb.Reset()
	if err := tmpl.ExecuteTemplate(&sb, elementBody, data); err != nil {
		return "", "", fmt.Errorf("error while rendering %s body. Err: %w", name, err)
	}

	return subject, sb.String(), nil
}
