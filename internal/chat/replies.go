package chat

import (
	"fmt"
	"strings"

	"github.com/xaenox/taskchat/internal/classifier"
	"github.com/xaenox/taskchat/internal/models"
)

const (
	clarificationReply       = "I'm not sure I understood that. Could you rephrase what you'd like to do with your tasks?"
	createClarificationReply = "I'd be happy to create a task for you! What should the task be called?"
	emptyListReply           = "You don't have any tasks yet. Would you like me to help you add some?"
	storeFailureReply        = "Sorry, I couldn't complete that. Please try again."
)

var intentVerbs = map[classifier.Intent]string{
	classifier.IntentUpdateTask:   "update",
	classifier.IntentDeleteTask:   "delete",
	classifier.IntentMarkComplete: "mark as complete",
}

// renderTaskList numbers tasks from 1 in the given order
func renderTaskList(tasks []*models.Task) string {
	var b strings.Builder
	for i, task := range tasks {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s (%s)", i+1, task.Title, task.Status)
		if task.DueDate != nil {
			fmt.Fprintf(&b, "\n   Due: %s", task.DueDate.Format("2006-01-02"))
		}
	}
	return b.String()
}

func notFoundReply(intent classifier.Intent, fragment string, tasks []*models.Task) string {
	if len(tasks) == 0 {
		return emptyListReply
	}

	var header string
	if fragment == "" {
		header = fmt.Sprintf("Which task would you like to %s? Here are your current tasks:", intentVerbs[intent])
	} else {
		header = fmt.Sprintf("I couldn't find a task matching \"%s\". Here are your current tasks:", fragment)
	}
	return header + "\n\n" + renderTaskList(tasks) + "\n\nPlease tell me which one you mean."
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
