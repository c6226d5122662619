package classifier

import (
	"errors"
	"testing"
)

func TestParseCompletionToleratesSurroundingText(t *testing.T) {
	raw := "Sure! Here is the JSON:\n```json\n" +
		`{"action": "CREATE_TASK", "taskTitle": "Buy groceries", "taskDescription": null, "priority": "high", "dueDate": "2025-06-16", "searchQuery": "null", "response": "Done!"}` +
		"\n```\nLet me know if you need anything else."

	c, err := ParseCompletion(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Intent != IntentCreateTask {
		t.Fatalf("expected CREATE_TASK, got %s", c.Intent)
	}
	if c.Reply != "Done!" {
		t.Fatalf("expected reply 'Done!', got %q", c.Reply)
	}
	if c.Fields.Title == nil || *c.Fields.Title != "Buy groceries" {
		t.Fatalf("unexpected title: %v", c.Fields.Title)
	}
	if c.Fields.Description != nil {
		t.Fatalf("null description should be absent, got %q", *c.Fields.Description)
	}
	if c.Fields.SearchQuery != nil {
		t.Fatalf(`"null" string should be absent, got %q`, *c.Fields.SearchQuery)
	}
	if c.Fields.Priority == nil || *c.Fields.Priority != "high" {
		t.Fatalf("priority should be passed through raw, got %v", c.Fields.Priority)
	}
}

func TestParseCompletionDefaults(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantIntent Intent
		wantReply  string
	}{
		{"missing action", `{"response": "hello"}`, IntentGeneralHelp, "hello"},
		{"null action", `{"action": null, "response": "hello"}`, IntentGeneralHelp, "hello"},
		{"unknown action", `{"action": "DANCE", "response": "hello"}`, IntentGeneralHelp, "hello"},
		{"missing response", `{"action": "LIST_TASKS"}`, IntentListTasks, DefaultReply},
		{"null response", `{"action": "list_tasks", "response": null}`, IntentListTasks, DefaultReply},
		{"empty object", `{}`, IntentGeneralHelp, DefaultReply},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseCompletion(tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.Intent != tt.wantIntent {
				t.Fatalf("expected intent %s, got %s", tt.wantIntent, c.Intent)
			}
			if c.Reply != tt.wantReply {
				t.Fatalf("expected reply %q, got %q", tt.wantReply, c.Reply)
			}
		})
	}
}

func TestParseCompletionMalformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"I think you want to create a task.",
		"} backwards {",
		`{"action": "CREATE_TASK", "taskTitle": }`,
	} {
		if _, err := ParseCompletion(raw); !errors.Is(err, ErrMalformedCompletion) {
			t.Fatalf("expected ErrMalformedCompletion for %q, got %v", raw, err)
		}
	}
}

func TestParseTaskList(t *testing.T) {
	raw := `Here you go: {"tasks": [
		{"title": "Send the report", "description": "to finance", "priority": "HIGH", "dueDate": "2025-07-01"},
		{"title": "Call Bob", "dueDate": null},
		"not an object"
	]}`

	tasks, err := ParseTaskList(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if *tasks[0].Title != "Send the report" || *tasks[0].Priority != "HIGH" || *tasks[0].DueDate != "2025-07-01" {
		t.Fatalf("unexpected first task: %+v", tasks[0])
	}
	if tasks[1].DueDate != nil || tasks[1].Description != nil {
		t.Fatalf("expected absent fields on second task: %+v", tasks[1])
	}

	empty, err := ParseTaskList(`{"tasks": []}`)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty list, got %v, %v", empty, err)
	}
}

func TestScanTaskPhrases(t *testing.T) {
	text := "Meeting notes.\nWe need to send the budget to finance by Friday.\n" +
		"We need to review the document before Monday.\n1. Book the conference room\nThanks everyone."

	tasks := ScanTaskPhrases(text)
	if len(tasks) != 2 {
		for _, task := range tasks {
			t.Logf("found %q", *task.Title)
		}
		t.Fatalf("expected 2 task phrases, got %d", len(tasks))
	}
	if *tasks[0].Title != "send the budget to finance by Friday" {
		t.Fatalf("unexpected first phrase: %q", *tasks[0].Title)
	}
	if *tasks[1].Title != "Book the conference room" {
		t.Fatalf("unexpected second phrase: %q", *tasks[1].Title)
	}
	if *tasks[0].Description != extractedDescription {
		t.Fatalf("unexpected description: %q", *tasks[0].Description)
	}
}
