package email

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

// View is what the booking templates render. Times are already localized.
type View struct {
	OrganizationName string `json:"organization_name"`
	ContactEmail     string `json:"contact_email,omitempty"`
	ContactPhone     string `json:"contact_phone,omitempty"`
	Address          string `json:"address,omitempty"`
	CustomerName     string `json:"customer_name"`
	CustomerEmail    string `json:"customer_email"`
	CustomerPhone    string `json:"customer_phone,omitempty"`
	ServiceName      string `json:"service_name"`
	LocalStart       string `json:"local_start"`
	DurationMinutes  int    `json:"duration_minutes"`
	Fee              string `json:"fee"`
}

const textBody = `Hello {{.CustomerName}},

{{.Intro}}

Service:  {{.ServiceName}}
When:     {{.LocalStart}}
Duration: {{.DurationMinutes}} minutes
Fee:      {{.Fee}}

{{.OrganizationName}}{{if .Address}}
{{.Address}}{{end}}{{if .ContactPhone}}
{{.ContactPhone}}{{end}}{{if .ContactEmail}}
{{.ContactEmail}}{{end}}
`

const htmlBody = `<p>Hello {{.CustomerName}},</p>
<p>{{.Intro}}</p>
<table>
<tr><td>Service</td><td>{{.ServiceName}}</td></tr>
<tr><td>When</td><td>{{.LocalStart}}</td></tr>
<tr><td>Duration</td><td>{{.DurationMinutes}} minutes</td></tr>
<tr><td>Fee</td><td>{{.Fee}}</td></tr>
</table>
<p>{{.OrganizationName}}{{if .Address}}<br>{{.Address}}{{end}}{{if .ContactPhone}}<br>{{.ContactPhone}}{{end}}{{if .ContactEmail}}<br><a href="mailto:{{.ContactEmail}}">{{.ContactEmail}}</a>{{end}}</p>
`

var (
	textTmpl = texttemplate.Must(texttemplate.New("text").Parse(textBody))
	htmlTmpl = htmltemplate.Must(htmltemplate.New("html").Parse(htmlBody))
)

type rendered struct {
	View
	Intro string
}

func Confirmation(v View) (Message, error) {
	return render(v, fmt.Sprintf("Your appointment with %s is booked", v.OrganizationName),
		"Your appointment is booked. Details below.")
}

func Reminder(v View) (Message, error) {
	return render(v, fmt.Sprintf("Reminder: %s on %s", v.ServiceName, v.LocalStart),
		"This is a reminder of your upcoming appointment.")
}

func render(v View, subject, intro string) (Message, error) {
	data := rendered{View: v, Intro: intro}
	var text, html bytes.Buffer
	if err := textTmpl.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render text: %w", err)
	}
	if err := htmlTmpl.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render html: %w", err)
	}
	return Message{
		To:      v.CustomerEmail,
		ToName:  v.CustomerName,
		Subject: subject,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

// SMSBody is the short form used for text-message reminders.
func SMSBody(v View) string {
	return fmt.Sprintf("Reminder: %s at %s, %s.", v.ServiceName, v.OrganizationName, v.LocalStart)
}
