package chat

import (
	"testing"

	"github.com/xaenox/taskchat/internal/models"
)

func TestResolve(t *testing.T) {
	tasks := []*models.Task{
		{ID: "1", Title: "Buy groceries"},
		{ID: "2", Title: "Write quarterly report"},
		{ID: "3", Title: "Review report draft"},
	}

	tests := []struct {
		name        string
		fragment    string
		wantStatus  ResolveStatus
		wantID      string
		wantMatches int
	}{
		{"case insensitive", "GROCERIES", Found, "1", 1},
		{"first match wins", "report", Found, "2", 2},
		{"no match", "the thing", NotFound, "", 0},
		{"empty", "", NotFound, "", 0},
		{"blank", "   ", NotFound, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Resolve(tt.fragment, tasks)
			if res.Status != tt.wantStatus || res.Matches != tt.wantMatches {
				t.Fatalf("Resolve(%q) = %+v", tt.fragment, res)
			}
			if tt.wantStatus == Found && res.Task.ID != tt.wantID {
				t.Fatalf("Resolve(%q) picked %s, want %s", tt.fragment, res.Task.ID, tt.wantID)
			}
		})
	}
}

func TestResolveEmptyList(t *testing.T) {
	if res := Resolve("anything", nil); res.Status != NotFound || res.Task != nil {
		t.Fatalf("expected NotFound on empty list, got %+v", res)
	}
}

func TestResolveIsRepeatable(t *testing.T) {
	tasks := []*models.Task{{ID: "1", Title: "Report A"}, {ID: "2", Title: "Report B"}}
	first := Resolve("report", tasks)
	second := Resolve("report", tasks)
	if first.Task != second.Task || first.Matches != second.Matches {
		t.Fatalf("resolution changed between calls: %+v vs %+v", first, second)
	}
}
