package chat

import (
	"regexp"
	"strings"
	"time"

	"github.com/xaenox/taskchat/internal/classifier"
	"github.com/xaenox/taskchat/internal/models"
)

// ExtractedFields are the typed values pulled out of one message.
// Nil pointers mean the value was absent or rejected.
type ExtractedFields struct {
	Title       *string
	Description *string
	Priority    models.Priority
	// PriorityGiven is false when Priority is the MEDIUM default.
	PriorityGiven bool
	DueDate       *time.Time
	SearchQuery   *string
}

// Prompt text the model sometimes echoes back instead of a real value.
var leakageMarkers = []string{
	"extracted task title",
	"extracted description",
	"actual extracted",
	"from user message",
	"if creating",
	"task title or null",
	"identifying an existing task",
	"or null",
}

// Whole values copied from the example shapes in the prompts.
var placeholderValues = map[string]bool{
	"task title":       true,
	"task description": true,
	"title":            true,
	"description":      true,
	"null":             true,
}

var dateTemplateMarkers = []string{"extracted", "yyyy-mm-dd"}

var unsafeChars = regexp.MustCompile(`[<>"'%;()&+]`)

var isoDateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// Normalize converts raw model fields into ExtractedFields
func Normalize(raw classifier.RawFields) ExtractedFields {
	priority, given := ParsePriority(raw.Priority)
	return ExtractedFields{
		Title:         normalizeText(raw.Title),
		Description:   normalizeText(raw.Description),
		Priority:      priority,
		PriorityGiven: given,
		DueDate:       ParseDueDate(raw.DueDate),
		SearchQuery:   normalizeText(raw.SearchQuery),
	}
}

// Sanitize strips markup and injection characters and trims whitespace
func Sanitize(s string) string {
	return strings.TrimSpace(unsafeChars.ReplaceAllString(s, ""))
}

// ParsePriority returns the priority and whether raw named a valid one.
// Anything that is not HIGH, MEDIUM or LOW becomes MEDIUM.
func ParsePriority(raw *string) (models.Priority, bool) {
	if raw == nil {
		return models.PriorityMedium, false
	}
	switch p := models.Priority(strings.ToUpper(strings.TrimSpace(*raw))); p {
	case models.PriorityHigh, models.PriorityMedium, models.PriorityLow:
		return p, true
	}
	return models.PriorityMedium, false
}

// ParseDueDate accepts YYYY-MM-DD (midnight UTC) or an ISO date-time.
// Template text and unparseable values yield nil.
func ParseDueDate(raw *string) *time.Time {
	if raw == nil {
		return nil
	}
	s := strings.TrimSpace(*raw)
	if s == "" || containsAny(strings.ToLower(s), dateTemplateMarkers) {
		return nil
	}

	if d, err := time.ParseInLocation("2006-01-02", s, time.UTC); err == nil {
		return &d
	}
	for _, layout := range isoDateTimeLayouts {
		if d, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return &d
		}
	}
	return nil
}

// IsTemplateLeak reports whether s looks like echoed prompt instructions
func IsTemplateLeak(s string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))
	return placeholderValues[lower] || containsAny(lower, leakageMarkers)
}

func normalizeText(raw *string) *string {
	if raw == nil || IsTemplateLeak(*raw) {
		return nil
	}
	clean := Sanitize(*raw)
	if clean == "" {
		return nil
	}
	return &clean
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// Draft builds a task draft from the extracted fields
func (f ExtractedFields) Draft() models.TaskDraft {
	draft := models.TaskDraft{
		Priority: f.Priority,
		DueDate:  f.DueDate,
	}
	if f.Title != nil {
		draft.Title = *f.Title
	}
	if f.Description != nil {
		draft.Description = *f.Description
	}
	return draft
}

// Patch builds a partial update holding only the fields the user gave.
// When the title was used to find the task it is not applied as a new title.
func (f ExtractedFields) Patch(titleIsReference bool) models.TaskPatch {
	var patch models.TaskPatch
	if f.Title != nil && !titleIsReference {
		title := *f.Title
		patch.Title = &title
	}
	if f.Description != nil {
		description := *f.Description
		patch.Description = &description
	}
	if f.PriorityGiven {
		priority := f.Priority
		patch.Priority = &priority
	}
	if f.DueDate != nil {
		due := *f.DueDate
		patch.DueDate = &due
	}
	return patch
}
