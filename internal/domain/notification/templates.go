package notification

import (
	"fmt"
	"strings"
	"sync"
)

// Template renders the title and message of one notification kind.
type Template struct {
	Kind    string `json:"kind"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// TemplateEngine holds notification templates keyed by kind.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			Kind:    KindTherapyAssigned,
			Title:   "New therapy assigned",
			Message: "{{therapy_type}} for {{patient_name}} starts on {{start_date}} in room {{room}}.",
		},
		{
			Kind:    KindTherapyCompleted,
			Title:   "Therapy completed",
			Message: "{{therapy_type}} for {{patient_name}} reached {{progress}}% and is complete.",
		},
		{
			Kind:    KindTherapyReassigned,
			Title:   "Therapy reassigned to you",
			Message: "{{therapy_type}} for {{patient_name}} is now yours.",
		},
		{
			Kind:    KindPatientReassigned,
			Title:   "Patient reassigned to you",
			Message: "{{patient_name}} was moved to you while {{previous_name}} is on leave.",
		},
		{
			Kind:    KindLeaveRequested,
			Title:   "Leave request pending",
			Message: "{{user_name}} requested leave from {{from_date}} to {{to_date}}.",
		},
		{
			Kind:    KindLeaveApproved,
			Title:   "Leave approved",
			Message: "Your leave from {{from_date}} to {{to_date}} was approved.",
		},
		{
			Kind:    KindLeaveRejected,
			Title:   "Leave rejected",
			Message: "Your leave from {{from_date}} to {{to_date}} was rejected.",
		},
		{
			Kind:    KindEmergencyCoverRequired,
			Title:   "Emergency cover required",
			Message: "No practitioner could take over the patients of {{user_name}} from {{from_date}} to {{to_date}}.",
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.Kind] = &t
	}
}

// RegisterTemplate adds or replaces the template for t.Kind.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.Kind] = &t
}

// Render performs {{key}} replacement on the template for kind. Keys present
// in the template but absent from data are left as-is.
func (e *TemplateEngine) Render(kind string, data map[string]string) (title, message string, err error) {
	e.mu.RLock()
	t, ok := e.templates[kind]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("no template for notification kind %q", kind)
	}

	title, message = t.Title, t.Message
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		title = strings.ReplaceAll(title, placeholder, v)
		message = strings.ReplaceAll(message, placeholder, v)
	}
	return title, message, nil
}
