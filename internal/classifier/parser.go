package classifier

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrMalformedCompletion means the completion did not contain a usable JSON object
var ErrMalformedCompletion = errors.New("malformed completion payload")

// DefaultReply is used when the completion has no narrative response
const DefaultReply = "I'm here to help you manage your tasks! What would you like to do?"

// RawFields are the extracted values exactly as the model returned them.
// A nil field was missing, null, empty or the literal string "null".
type RawFields struct {
	Title       *string
	Description *string
	Priority    *string
	DueDate     *string
	SearchQuery *string
}

// Completion is a parsed classification payload
type Completion struct {
	Intent Intent
	Fields RawFields
	Reply  string
}

// extractJSON returns the text between the first '{' and the last '}'.
// The model is not trusted to emit pure JSON.
func extractJSON(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return "", false
	}
	return raw[start : end+1], true
}

func parseObject(raw string) (gjson.Result, error) {
	payload, ok := extractJSON(raw)
	if !ok {
		return gjson.Result{}, fmt.Errorf("%w: no JSON object found", ErrMalformedCompletion)
	}
	if !gjson.Valid(payload) {
		return gjson.Result{}, fmt.Errorf("%w: invalid JSON", ErrMalformedCompletion)
	}
	root := gjson.Parse(payload)
	if !root.IsObject() {
		return gjson.Result{}, fmt.Errorf("%w: payload is not an object", ErrMalformedCompletion)
	}
	return root, nil
}

// ParseCompletion extracts the classification payload from raw completion text.
// A missing action becomes GENERAL_HELP and a missing response becomes DefaultReply.
func ParseCompletion(raw string) (Completion, error) {
	root, err := parseObject(raw)
	if err != nil {
		return Completion{}, err
	}

	completion := Completion{
		Intent: IntentGeneralHelp,
		Reply:  DefaultReply,
	}
	if action := stringField(root, "action"); action != nil {
		completion.Intent = ParseIntent(*action)
	}
	if reply := stringField(root, "response"); reply != nil {
		completion.Reply = *reply
	}
	completion.Fields = RawFields{
		Title:       stringField(root, "taskTitle", "title"),
		Description: stringField(root, "taskDescription", "description"),
		Priority:    stringField(root, "priority"),
		DueDate:     stringField(root, "dueDate"),
		SearchQuery: stringField(root, "searchQuery"),
	}
	return completion, nil
}

// ParseTaskList extracts the "tasks" array of a task extraction completion
func ParseTaskList(raw string) ([]RawFields, error) {
	root, err := parseObject(raw)
	if err != nil {
		return nil, err
	}

	var tasks []RawFields
	root.Get("tasks").ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		tasks = append(tasks, RawFields{
			Title:       stringField(item, "title", "taskTitle"),
			Description: stringField(item, "description", "taskDescription"),
			Priority:    stringField(item, "priority"),
			DueDate:     stringField(item, "dueDate"),
		})
		return true
	})
	return tasks, nil
}

func stringField(obj gjson.Result, keys ...string) *string {
	for _, key := range keys {
		v := obj.Get(key)
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		s := strings.TrimSpace(v.String())
		if s == "" || strings.EqualFold(s, "null") {
			continue
		}
		return &s
	}
	return nil
}

var taskPhrasePattern = regexp.MustCompile(`(?im)(?:need to|should|must|have to|will|going to|plan to|\d+\.\s*)([^.!?\n]{10,100})`)

const extractedDescription = "Extracted from uploaded file"

// ScanTaskPhrases finds task-like phrases in free text. It is the fallback
// when no structured task list can be obtained.
func ScanTaskPhrases(text string) []RawFields {
	var tasks []RawFields
	for _, match := range taskPhrasePattern.FindAllStringSubmatch(text, -1) {
		phrase := strings.TrimSpace(match[1])
		if !isTaskPhrase(phrase) {
			continue
		}
		description := extractedDescription
		tasks = append(tasks, RawFields{
			Title:       &phrase,
			Description: &description,
		})
	}
	return tasks
}

func isTaskPhrase(text string) bool {
	lower := strings.ToLower(text)
	return len(text) > 5 &&
		len(text) < 200 &&
		!strings.Contains(lower, "the document") &&
		!strings.Contains(lower, "this file")
}
