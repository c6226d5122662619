package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/taskchat/internal/conversation"
	"github.com/xaenox/taskchat/internal/models"
	"go.uber.org/zap"
)

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "help":
		b.handleHelp(message)
	case "tasks":
		b.handleTasks(ctx, message)
	case "history":
		b.handleHistory(ctx, message)
	case "reset":
		b.handleReset(ctx, message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart(message *tgbotapi.Message) {
	welcome := `Welcome to TaskChat! ✅
I keep your to-do list and you manage it by chatting with me.

Try "Create a task to buy groceries by Friday" or "What's on my list?".
Send me a .txt, .md or .csv file and I'll suggest tasks from it.
Use /help to see all available commands.`

	b.sendMessage(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `Available commands:
/start - Start the bot
/help - Show this help message
/tasks - Show your tasks
/history - Show your last messages
/reset - Clear our conversation

You can ask me to:
- Create, update or delete a task
- Mark one task or all tasks as complete
- List your tasks

Upload a text file and I'll find tasks in it for you to confirm.`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) handleTasks(ctx context.Context, message *tgbotapi.Message) {
	tasks, err := b.tasks.ListTasks(ctx, userID(message.From))
	if err != nil {
		b.logger.Error("Failed to list tasks",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't retrieve your tasks.")
		return
	}

	if len(tasks) == 0 {
		b.sendMessage(message.Chat.ID, "You don't have any tasks yet.")
		return
	}

	response := "*Your tasks:*\n"
	for _, task := range tasks {
		line := fmt.Sprintf("#%d %s", task.TicketNumber, task.Title)
		if task.DueDate != nil {
			line += " · due " + task.DueDate.Format("2006-01-02")
		}
		response += fmt.Sprintf("%s _%s_\n", escapeMarkdown(line), escapeMarkdown(string(task.Status)))
	}

	b.sendMarkdown(message.Chat.ID, response)
}

func (b *Bot) handleHistory(ctx context.Context, message *tgbotapi.Message) {
	conv, err := b.conversations.GetOrCreate(ctx, userID(message.From), "")
	if err != nil {
		b.logger.Error("Failed to get conversation",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't retrieve your message history.")
		return
	}

	if len(conv.Messages) == 0 {
		b.sendMessage(message.Chat.ID, "You don't have any messages yet.")
		return
	}

	messages := conv.Messages
	if len(messages) > historyLimit {
		messages = messages[len(messages)-historyLimit:]
	}

	response := "*Your recent messages:*\n\n"
	for _, msg := range messages {
		who := "You"
		if msg.Role != models.RoleUser {
			who = "Assistant"
		}
		content := msg.Content
		if msg.IsFile {
			content = "📎 " + msg.FileName
		}
		response += fmt.Sprintf("*%s* %s\n", who, escapeMarkdown(msg.Timestamp.Format("Jan 2 15:04")))
		response += fmt.Sprintf("_%s_\n\n", escapeMarkdown(content))
	}

	b.sendMarkdown(message.Chat.ID, response)
}

func (b *Bot) handleReset(ctx context.Context, message *tgbotapi.Message) {
	b.mu.Lock()
	delete(b.pending, message.From.ID)
	b.mu.Unlock()

	if err := b.conversations.Delete(ctx, userID(message.From), conversation.ResolveID(userID(message.From), "")); err != nil {
		b.logger.Debug("Nothing to reset",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID))
	}
	b.sendMessage(message.Chat.ID, "Our conversation has been cleared. Your tasks are untouched.")
}

// escapeMarkdown escapes the characters MarkdownV2 treats as markup
func escapeMarkdown(text string) string {
	specialChars := []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	escaped := text
	for _, char := range specialChars {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}

func (b *Bot) sendMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "MarkdownV2"
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send markdown message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
