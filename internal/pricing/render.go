package pricing

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer renders the pricing page from the embedded templates.
type Renderer struct {
	page *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	page, err := template.New("pricing.html").Funcs(template.FuncMap{
		"actionLabel": actionLabel,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing pricing templates: %w", err)
	}
	return &Renderer{page: page}, nil
}

// Render writes the page for v. Output is buffered so a template failure
// never produces a half-written page.
func (r *Renderer) Render(w io.Writer, v View) error {
	var buf bytes.Buffer
	if err := r.page.ExecuteTemplate(&buf, "pricing.html", v); err != nil {
		return fmt.Errorf("rendering pricing page: %w", err)
	}
	_, err := buf.WriteTo(w)
	return err
}

func actionLabel(a Action) string {
	if a == ActionManage {
		return "Manage"
	}
	return "Subscribe"
}
