package bot

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/taskchat/internal/chat"
	"github.com/xaenox/taskchat/internal/document"
	"github.com/xaenox/taskchat/internal/models"
	"github.com/xaenox/taskchat/internal/storage"
	"go.uber.org/zap"
)

const (
	callbackAddAll  = "tasks:add"
	callbackDiscard = "tasks:discard"

	historyLimit    = 5
	downloadTimeout = 30 * time.Second
)

// ChatService is the conversational front end the bot talks to
type ChatService interface {
	ProcessMessage(ctx context.Context, userID, message, conversationID string) chat.Response
	ProcessFileUpload(ctx context.Context, userID, fileName, text string) chat.Response
	ConfirmTaskCreation(ctx context.Context, userID string, drafts []models.TaskDraft) chat.Response
}

// Conversations reads and clears the main transcript
type Conversations interface {
	GetOrCreate(ctx context.Context, userID, conversationID string) (*models.Conversation, error)
	Delete(ctx context.Context, userID, conversationID string) error
}

type Bot struct {
	api           *tgbotapi.BotAPI
	chat          ChatService
	tasks         storage.TaskStore
	conversations Conversations
	logger        *zap.Logger

	mu      sync.Mutex
	pending map[int64][]models.TaskDraft
}

func New(token string, chat ChatService, tasks storage.TaskStore, conversations Conversations, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return newBot(api, chat, tasks, conversations, logger), nil
}

func newBot(api *tgbotapi.BotAPI, chat ChatService, tasks storage.TaskStore, conversations Conversations, logger *zap.Logger) *Bot {
	return &Bot{
		api:           api,
		chat:          chat,
		tasks:         tasks,
		conversations: conversations,
		logger:        logger,
		pending:       make(map[int64][]models.TaskDraft),
	}
}

// Start polls for updates until ctx is cancelled
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("Telegram bot started", zap.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			switch {
			case update.Message != nil:
				go b.handleMessage(ctx, update.Message)
			case update.CallbackQuery != nil:
				go b.handleCallback(ctx, update.CallbackQuery)
			}
		}
	}
}

func userID(u *tgbotapi.User) string {
	return strconv.FormatInt(u.ID, 10)
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil {
		return
	}

	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	if message.Document != nil {
		b.handleDocument(ctx, message)
		return
	}

	content := message.Text
	if message.Caption != "" {
		content = message.Caption
	}
	if strings.TrimSpace(content) == "" {
		return
	}

	resp := b.chat.ProcessMessage(ctx, userID(message.From), content, "")
	b.sendReply(message.Chat.ID, message.MessageID, resp.Text)
}

func (b *Bot) handleDocument(ctx context.Context, message *tgbotapi.Message) {
	doc := message.Document
	if !document.Supported(doc.FileName) {
		b.sendErrorMessage(message.Chat.ID, "I can only read .txt, .md and .csv files.")
		return
	}
	if doc.FileSize > document.MaxSize {
		b.sendErrorMessage(message.Chat.ID, "That file is too large for me to read.")
		return
	}

	text, err := b.download(ctx, doc)
	if err != nil {
		b.logger.Error("Failed to download document",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID),
			zap.String("file_name", doc.FileName))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't read that file. Please try again.")
		return
	}

	resp := b.chat.ProcessFileUpload(ctx, userID(message.From), doc.FileName, text)
	if !resp.RequiresConfirmation {
		b.sendMessage(message.Chat.ID, resp.Text)
		return
	}

	b.mu.Lock()
	b.pending[message.From.ID] = resp.SuggestedTasks
	b.mu.Unlock()

	msg := tgbotapi.NewMessage(message.Chat.ID, resp.Text+"\n\n"+renderDrafts(resp.SuggestedTasks))
	msg.ReplyToMessageID = message.MessageID
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Add all", callbackAddAll),
			tgbotapi.NewInlineKeyboardButtonData("Discard", callbackDiscard),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send task proposals",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
	}
}

func (b *Bot) download(ctx context.Context, doc *tgbotapi.Document) (string, error) {
	url, err := b.api.GetFileDirectURL(doc.FileID)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := b.api.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return document.Extract(doc.FileName, resp.Body)
}

func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.logger.Warn("Failed to answer callback", zap.Error(err))
	}
	if query.Message == nil || query.From == nil {
		return
	}
	if query.Data != callbackAddAll && query.Data != callbackDiscard {
		return
	}
	chatID := query.Message.Chat.ID

	b.mu.Lock()
	drafts, ok := b.pending[query.From.ID]
	delete(b.pending, query.From.ID)
	b.mu.Unlock()

	if !ok {
		b.sendMessage(chatID, "Those suggestions have expired. Please upload the file again.")
		return
	}

	var text string
	switch query.Data {
	case callbackAddAll:
		text = b.chat.ConfirmTaskCreation(ctx, userID(query.From), drafts).Text
	case callbackDiscard:
		text = "Okay, I discarded those suggestions."
	}

	edit := tgbotapi.NewEditMessageText(chatID, query.Message.MessageID, query.Message.Text)
	if _, err := b.api.Send(edit); err != nil {
		b.logger.Debug("Failed to remove proposal buttons", zap.Error(err))
	}
	b.sendMessage(chatID, text)
}

func renderDrafts(drafts []models.TaskDraft) string {
	lines := make([]string, len(drafts))
	for i, d := range drafts {
		line := fmt.Sprintf("%d. %s (%s)", i+1, d.Title, d.Priority)
		if d.DueDate != nil {
			line += " due " + d.DueDate.Format("2006-01-02")
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

func (b *Bot) sendReply(chatID int64, replyToID int, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyToID
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send reply",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
