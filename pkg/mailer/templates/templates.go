package templates

import (
	"bytes"
	"embed"
	"fmt"
	htmpl "html/template"
	"reflect"
	"strings"
	texttpl "text/template"
	"time"
)

//go:embed *.tmpl
var FS embed.FS

// defaultFn supports pipe usage: {{ .Value | default "Fallback" }}
func defaultFn(fallback any, value any) any {
	switch x := value.(type) {
	case string:
		if strings.TrimSpace(x) == "" {
			return fallback
		}
		return x
	case nil:
		return fallback
	default:
		rv := reflect.ValueOf(value)
		if !rv.IsValid() {
			return fallback
		}
		if rv.IsZero() {
			return fallback
		}
		return value
	}
}

func baseFuncs() map[string]any {
	return map[string]any{
		"now":        func() time.Time { return time.Now().UTC() },
		"formatTime": func(t time.Time, layout string) string { return t.Format(layout) },
		"upper":      strings.ToUpper,
		"default":    defaultFn,
	}
}

var (
	htmlFuncMap = htmpl.FuncMap(baseFuncs())
	textFuncMap = texttpl.FuncMap(baseFuncs())
)

// Template names, one per notification kind.
const (
	UserCreated         = "user_created"
	UserUpdated         = "user_updated"
	UserDeleted         = "user_deleted"
	PasswordReset       = "password_reset"
	SecondFactorEnabled = "second_factor_enabled"
)

var subjects = map[string]string{
	UserCreated:         "Welcome to {{ .AppName | default \"RxCheck\" }}",
	UserUpdated:         "Your account details were updated",
	UserDeleted:         "Your account was deactivated",
	PasswordReset:       "Your password reset code",
	SecondFactorEnabled: "Two-factor authentication is on",
}

// Known reports whether name has templates.
func Known(name string) bool {
	_, ok := subjects[name]
	return ok
}

func renderFile(filename string, isHTML bool, data any) (string, error) {
	var (
		buf bytes.Buffer
		err error
	)

	if isHTML {
		tpl, e := htmpl.New(filename).Funcs(htmlFuncMap).ParseFS(FS, filename)
		if e != nil {
			return "", fmt.Errorf("parse html %q: %w", filename, e)
		}
		err = tpl.Execute(&buf, data)
	} else {
		tpl, e := texttpl.New(filename).Funcs(textFuncMap).ParseFS(FS, filename)
		if e != nil {
			return "", fmt.Errorf("parse text %q: %w", filename, e)
		}
		err = tpl.Execute(&buf, data)
	}
	if err != nil {
		return "", fmt.Errorf("exec %q: %w", filename, err)
	}
	return buf.String(), nil
}

func renderSubject(name string, data any) (string, error) {
	tpl, err := texttpl.New(name).Funcs(textFuncMap).Parse(subjects[name])
	if err != nil {
		return "", fmt.Errorf("parse subject %q: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("exec subject %q: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Render produces subject, text and html for the named notification. The
// text body comes from <name>.text.tmpl and is wrapped by layout.html.tmpl.
func Render(name string, data map[string]any) (subject string, text string, html string, err error) {
	if !Known(name) {
		return "", "", "", fmt.Errorf("unknown template %q", name)
	}
	subject, err = renderSubject(name, data)
	if err != nil {
		return "", "", "", err
	}
	text, err = renderFile(name+".text.tmpl", false, data)
	if err != nil {
		return "", "", "", err
	}
	html, err = renderFile("layout.html.tmpl", true, map[string]any{
		"Subject":    subject,
		"Paragraphs": paragraphs(text),
		"Data":       data,
	})
	if err != nil {
		return "", "", "", err
	}
	return subject, text, html, nil
}

func paragraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
