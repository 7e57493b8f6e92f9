package templates

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoadDefinesPages(t *testing.T) {
	tmpl, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	for _, name := range []string{"home.tmpl", "sign_up.tmpl", "sign_in.tmpl", "forgot_password.tmpl", "reset_password.tmpl", "dashboard.tmpl"} {
		if tmpl.Lookup(name) == nil {
			t.Errorf("template %s not defined", name)
		}
	}
}

func TestMessageEscapesText(t *testing.T) {
	tmpl, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	var buf bytes.Buffer
	data := struct {
		Kind string
		Text string
	}{Kind: "error", Text: "<script>x</script>"}
	if err := tmpl.ExecuteTemplate(&buf, "message", data); err != nil {
		t.Fatalf("ExecuteTemplate() error = %v", err)
	}
	if strings.Contains(buf.String(), "<script>") {
		t.Errorf("message not escaped: %s", buf.String())
	}
}
