package chat

import (
	"strings"

	"github.com/xaenox/taskchat/internal/models"
)

// ResolveStatus is the outcome of resolving a task reference
type ResolveStatus int

const (
	NotFound ResolveStatus = iota
	Found
)

// Resolution is the result of Resolve. Matches counts every candidate
// containing the fragment; Task is always the first of them.
type Resolution struct {
	Status  ResolveStatus
	Task    *models.Task
	Matches int
}

// Resolve finds the first task, in store order, whose title contains
// fragment case-insensitively. An empty fragment never matches.
func Resolve(fragment string, tasks []*models.Task) Resolution {
	needle := strings.ToLower(strings.TrimSpace(fragment))
	if needle == "" {
		return Resolution{Status: NotFound}
	}

	var res Resolution
	for _, task := range tasks {
		if !strings.Contains(strings.ToLower(task.Title), needle) {
			continue
		}
		if res.Task == nil {
			res.Task = task
			res.Status = Found
		}
		res.Matches++
	}
	return res
}
