package classifier

import (
	"fmt"
	"time"
)

// TaskManagementPrompt asks the model to classify message into one intent
// and extract task fields as a single JSON object.
func TaskManagementPrompt(message string, today time.Time) string {
	return fmt.Sprintf(`You are a task management assistant. Decide which action the user wants and extract the details from their message.

Today's date: %s
User message: %q

Use ACTUAL values from the user's message. Never copy the placeholder text below into your answer.

Examples:
- "Create a task to buy groceries" -> action "CREATE_TASK", taskTitle "Buy groceries"
- "Add task Study Math with Sarah tomorrow, high priority" -> action "CREATE_TASK", taskTitle "Study Math with Sarah", dueDate of tomorrow, priority "HIGH"
- "Show my tasks" -> action "LIST_TASKS"
- "Mark buy groceries as done" -> action "MARK_COMPLETE", searchQuery "buy groceries"
- "Rename buy groceries to buy vegetables" -> action "UPDATE_TASK", searchQuery "buy groceries", taskTitle "buy vegetables"
- "Delete the dentist task" -> action "DELETE_TASK", searchQuery "dentist"
- "I finished everything" -> action "BULK_MARK_COMPLETE"
- "I need help" -> action "GENERAL_HELP"

Actions:
1. CREATE_TASK - add a new task
2. LIST_TASKS - show the user's tasks
3. UPDATE_TASK - change an existing task
4. DELETE_TASK - remove a task
5. MARK_COMPLETE - mark one task as done
6. BULK_MARK_COMPLETE - mark all tasks as done
7. GENERAL_HELP - anything else

Respond with JSON only, no extra text:
{
  "action": "CREATE_TASK|LIST_TASKS|UPDATE_TASK|DELETE_TASK|MARK_COMPLETE|BULK_MARK_COMPLETE|GENERAL_HELP",
  "taskTitle": "actual extracted task title from user message or null",
  "taskDescription": "actual extracted description from user message or null",
  "dueDate": "YYYY-MM-DD format if a date is mentioned, or null",
  "priority": "HIGH|MEDIUM|LOW if mentioned, or MEDIUM",
  "searchQuery": "words identifying an existing task, or null",
  "response": "short friendly reply to the user"
}`, today.Format("2006-01-02"), message)
}

// TaskExtractionPrompt asks the model to list the action items found in text
func TaskExtractionPrompt(text string, today time.Time) string {
	return fmt.Sprintf(`Extract the tasks and action items from the text below. Look for action verbs (schedule, call, send, review, prepare), deadlines and dates, assignments, and anything that needs to be done.

Today's date: %s
Text: %q

Respond with JSON only:
{
  "tasks": [
    {
      "title": "task title",
      "description": "task description",
      "priority": "HIGH|MEDIUM|LOW",
      "dueDate": "YYYY-MM-DD or null"
    }
  ]
}

Only extract clear, actionable tasks. If there are none, return {"tasks": []}`, today.Format("2006-01-02"), text)
}
