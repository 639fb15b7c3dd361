package notify

import (
	"errors"
	"fmt"
	"strings"
)

// TemplateReport is the template used for the top-10 report email.
const TemplateReport = "top10_report"

// ErrTemplateNotFound means the named template is not in the store.
var ErrTemplateNotFound = errors.New("notify: template not found")

// Template is a named message template. Placeholders are variable keys
// upper-cased and wrapped in percent signs, e.g. %TOTAL%.
type Template struct {
	Subject string
	Body    string
}

// TemplateStore holds the fixed set of message templates.
type TemplateStore struct {
	templates map[string]Template
}

// NewTemplateStore returns a store seeded with the built-in templates.
func NewTemplateStore() *TemplateStore {
	return &TemplateStore{
		templates: map[string]Template{
			TemplateReport: {
				Subject: "Top 10 referencias más vendidas - DANE",
				Body: "Hola,\n\n" +
					"Se adjunta el reporte de las 10 referencias más vendidas de productos de primera necesidad.\n\n" +
					"Cantidad total de productos: %TOTAL%\n" +
					"Cantidad del Top 10: %TOP10_TOTAL%\n" +
					"Participación del Top 10: %PERCENTAGE%%\n\n" +
					"Fuente: %SOURCE_URL%\n",
			},
		},
	}
}

// Add registers or replaces a template under the given name.
func (s *TemplateStore) Add(name string, tpl Template) {
	s.templates[name] = tpl
}

// Render loads the named template and substitutes each variable wherever
// its placeholder occurs, in subject and body alike. Placeholders with no
// matching variable are left as-is.
func (s *TemplateStore) Render(name string, vars map[string]string) (Template, error) {
	tpl, ok := s.templates[name]
	if !ok {
		return Template{}, fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
	}

	for key, value := range vars {
		token := "%" + strings.ToUpper(key) + "%"
		tpl.Subject = strings.ReplaceAll(tpl.Subject, token, value)
		tpl.Body = strings.ReplaceAll(tpl.Body, token, value)
	}
	return tpl, nil
}
