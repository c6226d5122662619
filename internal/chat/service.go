package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xaenox/taskchat/internal/classifier"
	"github.com/xaenox/taskchat/internal/conversation"
	"github.com/xaenox/taskchat/internal/models"
	"github.com/xaenox/taskchat/internal/storage"
	"go.uber.org/zap"
)

// ActionAddExtractedTasks marks a response carrying proposals from a file
const ActionAddExtractedTasks = "ADD_EXTRACTED_TASKS"

// Completer sends a prompt to the language model and returns the raw completion
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Transcript records messages in a conversation
type Transcript interface {
	Append(ctx context.Context, userID, conversationID, role, content string) (*models.Conversation, error)
	AppendFile(ctx context.Context, userID, conversationID, content, fileName string) (*models.Conversation, error)
}

// Response is what the user sees after a message, upload or confirmation
type Response struct {
	Text                 string             `json:"response"`
	ConversationID       string             `json:"conversationId"`
	SuggestedTasks       []models.TaskDraft `json:"suggestedTasks,omitempty"`
	RequiresConfirmation bool               `json:"requiresConfirmation"`
	Action               string             `json:"action,omitempty"`
}

// Service turns chat messages into task operations
type Service struct {
	completer   Completer
	fallback    *classifier.KeywordClassifier
	tasks       storage.TaskStore
	transcripts Transcript
	logger      *zap.Logger
	now         func() time.Time
}

func NewService(completer Completer, tasks storage.TaskStore, transcripts Transcript, logger *zap.Logger) *Service {
	return &Service{
		completer:   completer,
		fallback:    classifier.NewKeywordClassifier(),
		tasks:       tasks,
		transcripts: transcripts,
		logger:      logger,
		now:         time.Now,
	}
}

// ProcessMessage handles one chat message. It never fails: every error
// path ends in a reply the user can read.
func (s *Service) ProcessMessage(ctx context.Context, userID, message, conversationID string) Response {
	conversationID = conversation.ResolveID(userID, conversationID)
	s.record(ctx, userID, conversationID, models.RoleUser, message)

	text, action := s.reply(ctx, userID, message)

	s.record(ctx, userID, conversationID, models.RoleAssistant, text)
	return Response{
		Text:           text,
		ConversationID: conversationID,
		Action:         action,
	}
}

func (s *Service) reply(ctx context.Context, userID, message string) (string, string) {
	raw, err := s.completer.Complete(ctx, classifier.TaskManagementPrompt(message, s.now()))
	if err != nil {
		// The completer logs the failure with its reason.
		return s.fallback.FallbackReply(message), ""
	}

	completion, err := classifier.ParseCompletion(raw)
	if err != nil {
		s.logger.Warn("Failed to parse completion",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.String("completion", raw))
		return clarificationReply, ""
	}

	fields := Normalize(completion.Fields)
	s.logger.Debug("Message classified",
		zap.String("user_id", userID),
		zap.String("intent", string(completion.Intent)))

	return s.dispatch(ctx, userID, completion, fields), string(completion.Intent)
}

func (s *Service) dispatch(ctx context.Context, userID string, completion classifier.Completion, fields ExtractedFields) string {
	switch completion.Intent {
	case classifier.IntentCreateTask:
		return s.createTask(ctx, userID, fields)
	case classifier.IntentListTasks:
		return s.listTasks(ctx, userID)
	case classifier.IntentUpdateTask, classifier.IntentDeleteTask, classifier.IntentMarkComplete:
		return s.modifyTask(ctx, userID, completion.Intent, fields)
	case classifier.IntentBulkMarkComplete:
		return s.completeAll(ctx, userID)
	default:
		return completion.Reply
	}
}

func (s *Service) createTask(ctx context.Context, userID string, fields ExtractedFields) string {
	if fields.Title == nil {
		return createClarificationReply
	}

	task, err := s.tasks.CreateTask(ctx, userID, fields.Draft())
	if err != nil {
		s.logStoreError("create", userID, err)
		return storeFailureReply
	}
	s.logger.Info("Task created",
		zap.String("user_id", userID),
		zap.String("task_id", task.ID),
		zap.Int64("ticket", task.TicketNumber))
	return fmt.Sprintf("✅ I've created the task '%s' for you!", task.Title)
}

func (s *Service) listTasks(ctx context.Context, userID string) string {
	tasks, err := s.tasks.ListTasks(ctx, userID)
	if err != nil {
		s.logStoreError("list", userID, err)
		return storeFailureReply
	}
	if len(tasks) == 0 {
		return emptyListReply
	}
	return "Here are your current tasks:\n\n" + renderTaskList(tasks)
}

func (s *Service) modifyTask(ctx context.Context, userID string, intent classifier.Intent, fields ExtractedFields) string {
	tasks, err := s.tasks.ListTasks(ctx, userID)
	if err != nil {
		s.logStoreError("list", userID, err)
		return storeFailureReply
	}

	fragment, titleIsReference := referenceFragment(fields)
	res := Resolve(fragment, tasks)
	if res.Status == NotFound {
		return notFoundReply(intent, fragment, tasks)
	}
	if res.Matches > 1 {
		s.logger.Debug("Task reference matched several tasks",
			zap.String("user_id", userID),
			zap.String("fragment", fragment),
			zap.Int("matches", res.Matches))
	}
	target := res.Task

	switch intent {
	case classifier.IntentUpdateTask:
		patch := fields.Patch(titleIsReference)
		if patch.Empty() {
			return fmt.Sprintf("What would you like to change about '%s'? You can update its title, description, priority or due date.", target.Title)
		}
		updated, err := s.tasks.UpdateTask(ctx, userID, target.ID, patch)
		if err != nil {
			s.logStoreError("update", userID, err)
			return storeFailureReply
		}
		return fmt.Sprintf("✏️ I've updated the task '%s'.", updated.Title)

	case classifier.IntentDeleteTask:
		if err := s.tasks.DeleteTask(ctx, userID, target.ID); err != nil {
			s.logStoreError("delete", userID, err)
			return storeFailureReply
		}
		return fmt.Sprintf("🗑️ I've deleted the task '%s'.", target.Title)

	default:
		done := models.StatusDone
		if _, err := s.tasks.UpdateTask(ctx, userID, target.ID, models.TaskPatch{Status: &done}); err != nil {
			s.logStoreError("complete", userID, err)
			return storeFailureReply
		}
		return fmt.Sprintf("✅ Marked '%s' as complete!", target.Title)
	}
}

func (s *Service) completeAll(ctx context.Context, userID string) string {
	changed, err := s.tasks.CompleteAll(ctx, userID)
	if err != nil {
		s.logStoreError("complete all", userID, err)
		return storeFailureReply
	}
	switch len(changed) {
	case 0:
		return "All your tasks are already complete! 🎉"
	case 1:
		return "✅ Marked 1 task as complete!"
	default:
		return fmt.Sprintf("✅ Marked %d tasks as complete!", len(changed))
	}
}

// ProcessFileUpload proposes tasks found in an uploaded document.
// Nothing is stored until ConfirmTaskCreation.
func (s *Service) ProcessFileUpload(ctx context.Context, userID, fileName, text string) Response {
	conversationID := conversation.ResolveID(userID, "")
	s.recordFile(ctx, userID, conversationID, fileName)

	drafts := s.extractDrafts(ctx, userID, text)

	resp := Response{ConversationID: conversationID}
	if len(drafts) == 0 {
		resp.Text = "I couldn't find any actionable tasks in the uploaded file."
	} else {
		resp.Text = fmt.Sprintf("I found %d potential %s in your file. Would you like me to add them to your task list?",
			len(drafts), plural(len(drafts), "task", "tasks"))
		resp.SuggestedTasks = drafts
		resp.RequiresConfirmation = true
		resp.Action = ActionAddExtractedTasks
	}

	s.record(ctx, userID, conversationID, models.RoleAssistant, resp.Text)
	return resp
}

func (s *Service) extractDrafts(ctx context.Context, userID, text string) []models.TaskDraft {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var candidates []classifier.RawFields
	raw, err := s.completer.Complete(ctx, classifier.TaskExtractionPrompt(text, s.now()))
	if err != nil {
		candidates = classifier.ScanTaskPhrases(text)
	} else if candidates, err = classifier.ParseTaskList(raw); err != nil {
		s.logger.Warn("Failed to parse extracted tasks, scanning completion text",
			zap.Error(err),
			zap.String("user_id", userID))
		candidates = classifier.ScanTaskPhrases(raw)
	}

	drafts := make([]models.TaskDraft, 0, len(candidates))
	for _, c := range candidates {
		fields := Normalize(c)
		if fields.Title == nil {
			continue
		}
		draft := fields.Draft()
		draft.Status = models.StatusPending
		drafts = append(drafts, draft)
	}
	return drafts
}

// ConfirmTaskCreation stores the drafts the user accepted
func (s *Service) ConfirmTaskCreation(ctx context.Context, userID string, drafts []models.TaskDraft) Response {
	conversationID := conversation.ResolveID(userID, "")
	resp := Response{ConversationID: conversationID}

	created := 0
	for _, draft := range drafts {
		draft.Title = Sanitize(draft.Title)
		if draft.Title == "" || IsTemplateLeak(draft.Title) {
			continue
		}
		draft.Description = Sanitize(draft.Description)
		p := string(draft.Priority)
		draft.Priority, _ = ParsePriority(&p)
		draft.Status = models.StatusTodo

		if _, err := s.tasks.CreateTask(ctx, userID, draft); err != nil {
			s.logStoreError("confirm", userID, err)
			resp.Text = "Sorry, I couldn't add all of those tasks. Please try again."
			if created > 0 {
				resp.Text = fmt.Sprintf("I added %d %s, but couldn't add the rest. Please try again.", created, plural(created, "task", "tasks"))
			}
			s.record(ctx, userID, conversationID, models.RoleAssistant, resp.Text)
			return resp
		}
		created++
	}

	if created == 0 {
		resp.Text = "There were no tasks to add."
	} else {
		resp.Text = fmt.Sprintf("Successfully added %d %s to your list!", created, plural(created, "task", "tasks"))
	}
	s.record(ctx, userID, conversationID, models.RoleAssistant, resp.Text)
	return resp
}

func (s *Service) record(ctx context.Context, userID, conversationID, role, content string) {
	if _, err := s.transcripts.Append(ctx, userID, conversationID, role, content); err != nil {
		s.logger.Warn("Failed to record message",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.String("conversation_id", conversationID),
			zap.String("role", role))
	}
}

func (s *Service) recordFile(ctx context.Context, userID, conversationID, fileName string) {
	if _, err := s.transcripts.AppendFile(ctx, userID, conversationID, "Uploaded file: "+fileName, fileName); err != nil {
		s.logger.Warn("Failed to record file upload",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.String("file_name", fileName))
	}
}

func (s *Service) logStoreError(op, userID string, err error) {
	s.logger.Error("Task store operation failed",
		zap.Error(err),
		zap.String("op", op),
		zap.String("user_id", userID))
}

// referenceFragment picks the text used to find an existing task.
// The second result is true when the title was borrowed for it.
func referenceFragment(fields ExtractedFields) (string, bool) {
	if fields.SearchQuery != nil {
		return *fields.SearchQuery, false
	}
	if fields.Title != nil {
		return *fields.Title, true
	}
	return "", false
}
