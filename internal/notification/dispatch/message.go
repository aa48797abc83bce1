package dispatch

import (
	"bytes"
	"fmt"
	"net/url"
	"text/template"
)

// Message is the rendered notification shared by all channels.
type Message struct {
	Kind  string
	Title string
	Body  string
	Link  string
}

var defaultTitles = map[string]string{
	"assignment":       "Nouvelle assignation",
	"stage_changed":    "Changement d'étape",
	"payment_recorded": "Paiement enregistré",
	"rdv_created":      "Nouveau rendez-vous",
	"rdv_updated":      "Rendez-vous modifié",
	"rdv_reminder":     "Rappel de rendez-vous",
}

var textTemplate = template.Must(template.New("text").Parse(
	"{{.Title}}{{if .Body}}\n{{.Body}}{{end}}{{if .Link}}\n{{.Link}}{{end}}"))

// Text renders m for plain-text channels.
func (m Message) Text() string {
	var buf bytes.Buffer
	if err := textTemplate.Execute(&buf, m); err != nil {
		return m.Title
	}
	return buf.String()
}

func (d *Dispatcher) render(req Request) Message {
	title := req.Title
	if title == "" {
		title = defaultTitles[req.Kind]
	}
	return Message{
		Kind:  req.Kind,
		Title: title,
		Body:  req.Body,
		Link:  d.link(req.Payload),
	}
}

// link points the user at the record the notification is about.
func (d *Dispatcher) link(payload map[string]any) string {
	if d.baseURL == "" {
		return ""
	}
	if key, ok := payload["clientKey"].(string); ok && key != "" {
		return fmt.Sprintf("%s/clients/%s", d.baseURL, url.PathEscape(key))
	}
	if id, ok := payload["contactId"].(string); ok && id != "" {
		return fmt.Sprintf("%s/contacts/%s", d.baseURL, url.PathEscape(id))
	}
	if id, ok := payload["appointmentId"].(string); ok && id != "" {
		return fmt.Sprintf("%s/calendrier?rdv=%s", d.baseURL, url.QueryEscape(id))
	}
	return ""
}
