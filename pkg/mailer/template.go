package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

const (
	TemplateWelcome   = "welcome"
	TemplateOTP       = "otp"
	TemplateResetLink = "reset_link"
)

const layout = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 24px;">
<h2 style="color: #1a56db;">{{.AppName}}</h2>
{{template "content" .}}
<p style="font-size: 12px; color: #888;">This is an automated message, please do not reply.</p>
</div>
</body>
</html>`

var contents = map[string]string{
	TemplateWelcome: `{{define "content"}}
<p>Hello {{.Name}},</p>
<p>An account has been created for you.</p>
<table>
<tr><td>Login ID</td><td><strong>{{.LoginID}}</strong></td></tr>
{{if .EmployeeID}}<tr><td>Employee ID</td><td><strong>{{.EmployeeID}}</strong></td></tr>{{end}}
<tr><td>Password</td><td><strong>{{.Password}}</strong></td></tr>
</table>
<p>Please sign in and change your password.</p>
{{if .LoginURL}}<p><a href="{{.LoginURL}}">Sign in</a></p>{{end}}
{{end}}`,
	TemplateOTP: `{{define "content"}}
<p>Hello {{.Name}},</p>
<p>Use the following code to {{.Purpose}}:</p>
<p style="font-size: 28px; letter-spacing: 6px;"><strong>{{.Code}}</strong></p>
<p>The code expires in {{.ExpiresInMinutes}} minutes. If you did not request it, ignore this email.</p>
{{end}}`,
	TemplateResetLink: `{{define "content"}}
<p>Hello {{.Name}},</p>
<p>We received a request to reset your password.</p>
<p><a href="{{.Link}}">Reset password</a></p>
<p>The link expires in {{.ExpiresInMinutes}} minutes. If you did not request it, ignore this email.</p>
{{end}}`,
}

type WelcomeData struct {
	AppName    string
	Name       string
	LoginID    string
	EmployeeID string
	Password   string
	LoginURL   string
}

type OTPData struct {
	AppName          string
	Name             string
	Purpose          string
	Code             string
	ExpiresInMinutes int
}

type ResetLinkData struct {
	AppName          string
	Name             string
	Link             string
	ExpiresInMinutes int
}

// Templates holds the parsed email bodies by name.
type Templates struct {
	set map[string]*template.Template
}

func NewTemplates() (*Templates, error) {
	set := make(map[string]*template.Template, len(contents))
	for name, content := range contents {
		tmpl, err := template.New(name).Parse(layout)
		if err != nil {
			return nil, fmt.Errorf("parse layout: %w", err)
		}
		if _, err := tmpl.Parse(content); err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		set[name] = tmpl
	}
	return &Templates{set: set}, nil
}

func (t *Templates) Render(name string, data interface{}) (string, error) {
	tmpl, ok := t.set[name]
	if !ok {
		return "", fmt.Errorf("unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return buf.String(), nil
}
