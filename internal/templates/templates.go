package templates

import (
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed *.tmpl
var files embed.FS

// Load parses every page template together with the shared layout
func Load() (*template.Template, error) {
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			return t.Format("Jan 2, 2006")
		},
	}

	tmpl, err := template.New("").Funcs(funcMap).ParseFS(files, "*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return tmpl, nil
}
