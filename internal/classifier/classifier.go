package classifier

import (
	"strings"
)

// Intent is the action a user message maps to
type Intent string

const (
	IntentCreateTask       Intent = "CREATE_TASK"
	IntentListTasks        Intent = "LIST_TASKS"
	IntentUpdateTask       Intent = "UPDATE_TASK"
	IntentDeleteTask       Intent = "DELETE_TASK"
	IntentMarkComplete     Intent = "MARK_COMPLETE"
	IntentBulkMarkComplete Intent = "BULK_MARK_COMPLETE"
	IntentGeneralHelp      Intent = "GENERAL_HELP"
)

var knownIntents = map[Intent]struct{}{
	IntentCreateTask:       {},
	IntentListTasks:        {},
	IntentUpdateTask:       {},
	IntentDeleteTask:       {},
	IntentMarkComplete:     {},
	IntentBulkMarkComplete: {},
	IntentGeneralHelp:      {},
}

// ParseIntent maps an action name to an Intent. Unknown names become GENERAL_HELP.
func ParseIntent(action string) Intent {
	intent := Intent(strings.ToUpper(strings.TrimSpace(action)))
	if _, ok := knownIntents[intent]; ok {
		return intent
	}
	return IntentGeneralHelp
}

type keywordRule struct {
	intent   Intent
	keywords []string
}

// KeywordClassifier guesses an intent from keywords. It is used when the
// inference service cannot be reached.
type KeywordClassifier struct {
	rules []keywordRule
}

func NewKeywordClassifier() *KeywordClassifier {
	// Order matters: the first rule with a matching keyword wins.
	return &KeywordClassifier{
		rules: []keywordRule{
			{IntentBulkMarkComplete, []string{"complete all", "mark all", "finish all", "all done", "all complete", "everything done"}},
			{IntentMarkComplete, []string{"complete", "done", "finish", "finished"}},
			{IntentDeleteTask, []string{"delete", "remove", "cancel"}},
			{IntentUpdateTask, []string{"update", "change", "edit", "rename", "reschedule"}},
			{IntentCreateTask, []string{"create", "add", "new task", "remind"}},
			{IntentListTasks, []string{"list", "show", "my tasks", "view", "what do i have"}},
		},
	}
}

// Classify returns the first intent whose keywords appear in content
func (c *KeywordClassifier) Classify(content string) Intent {
	content = strings.ToLower(content)
	for _, rule := range c.rules {
		for _, keyword := range rule.keywords {
			if strings.Contains(content, keyword) {
				return rule.intent
			}
		}
	}
	return IntentGeneralHelp
}

const unavailablePrefix = "I'm having trouble reaching my assistant right now. "

var fallbackReplies = map[Intent]string{
	IntentCreateTask:       "It sounds like you want to add a task. Please try again in a moment, or add it from your task board.",
	IntentListTasks:        "It sounds like you want to see your tasks. You can find them on your task board.",
	IntentUpdateTask:       "It sounds like you want to change a task. Please try again in a moment, or edit it from your task board.",
	IntentDeleteTask:       "It sounds like you want to remove a task. Please try again in a moment, or delete it from your task board.",
	IntentMarkComplete:     "It sounds like you finished a task. Please try again in a moment, or mark it done on your task board.",
	IntentBulkMarkComplete: "It sounds like you want to complete all your tasks. Please try again in a moment.",
	IntentGeneralHelp:      "I can help you create, list, update, delete and complete tasks. Please try again in a moment.",
}

// FallbackReply is the canned response used when the inference call fails
func (c *KeywordClassifier) FallbackReply(content string) string {
	return unavailablePrefix + fallbackReplies[c.Classify(content)]
}
