package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"team-tasks/internal/model"
	"team-tasks/internal/service"
)

const cbDonePrefix = "done:"

const (
	menuLabelTasks = "📋 My tasks"
	menuLabelHelp  = "ℹ️ Help"
)

// Bot answers Telegram commands for linked users: listing their open tasks and
// marking their part done.
type Bot struct {
	api    *tgbotapi.BotAPI
	users  *service.UserService
	tasks  *service.TaskService
	loc    *time.Location
	logger *slog.Logger
	now    func() time.Time
}

func New(api *tgbotapi.BotAPI, users *service.UserService, tasks *service.TaskService, loc *time.Location, logger *slog.Logger) *Bot {
	if loc == nil {
		loc = time.UTC
	}
	logger = logger.With("component", "bot")
	logger.Info("bot authorized", "account", api.Self.UserName)
	return &Bot{
		api:    api,
		users:  users,
		tasks:  tasks,
		loc:    loc,
		logger: logger,
		now:    time.Now,
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.logger.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		b.HandleUpdate(ctx, update)
	}
	return nil
}

// HandleUpdate processes one update. Errors are logged.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			b.logger.Error("handle callback", "error", err)
		}
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			b.logger.Error("handle message", "error", err)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.IsCommand() {
		b.logger.Info("command", "chat_id", msg.Chat.ID, "command", msg.Command(), "args", msg.CommandArguments())
		switch msg.Command() {
		case "start":
			return b.handleStart(ctx, msg)
		case "help":
			return b.handleHelp(msg)
		case "tasks":
			return b.handleListTasks(ctx, msg.Chat.ID)
		case "done":
			return b.handleDone(ctx, msg)
		default:
			return b.sendText(msg.Chat.ID, "Unknown command. Send /help for the list of commands.")
		}
	}

	switch strings.TrimSpace(msg.Text) {
	case menuLabelTasks:
		return b.handleListTasks(ctx, msg.Chat.ID)
	case menuLabelHelp:
		return b.handleHelp(msg)
	}
	return b.sendText(msg.Chat.ID, "I did not understand that. Send /tasks to see your tasks or /help for commands.")
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	handle := chatHandle(msg.Chat.ID)
	text := fmt.Sprintf("👋 Your chat ID is <code>%s</code>.\n", handle)

	user, err := b.linkedUser(ctx, msg.Chat.ID)
	switch {
	case err == nil:
		text += fmt.Sprintf("You are linked as <b>%s</b>. Send /tasks to see your assignments.", escape(user.Name))
	case errors.Is(err, service.ErrNotFound):
		text += "Give this ID to your manager so task notifications reach you here."
	default:
		return err
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Commands</b>\n" +
		"• /start — show your chat ID\n" +
		"• /tasks — list your open tasks with done buttons\n" +
		"• /done &lt;task id&gt; — mark your part of a task done\n" +
		"• /help — this message"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleListTasks(ctx context.Context, chatID int64) error {
	user, err := b.linkedUser(ctx, chatID)
	if err != nil {
		return b.replyLookupError(chatID, err)
	}
	return b.sendTaskList(ctx, chatID, user)
}

func (b *Bot) handleDone(ctx context.Context, msg *tgbotapi.Message) error {
	taskID := strings.TrimSpace(msg.CommandArguments())
	if taskID == "" {
		return b.sendText(msg.Chat.ID, "Give the task ID: /done &lt;task id&gt;")
	}
	user, err := b.linkedUser(ctx, msg.Chat.ID)
	if err != nil {
		return b.replyLookupError(msg.Chat.ID, err)
	}
	return b.markDone(ctx, msg.Chat.ID, user, taskID)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.logger.Warn("callback ack", "error", err)
	}

	taskID, ok := strings.CutPrefix(cb.Data, cbDonePrefix)
	if !ok || taskID == "" {
		return nil
	}
	chatID := cb.Message.Chat.ID
	b.logger.Info("callback done", "chat_id", chatID, "task_id", taskID)

	user, err := b.linkedUser(ctx, chatID)
	if err != nil {
		return b.replyLookupError(chatID, err)
	}
	if err := b.markDone(ctx, chatID, user, taskID); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, user)
}

func (b *Bot) markDone(ctx context.Context, chatID int64, user *model.User, taskID string) error {
	detail, err := b.tasks.GetTaskDetail(ctx, taskID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return b.sendText(chatID, "Task not found.")
		}
		return err
	}
	if !isMember(detail.Members, user.ID) {
		return b.sendText(chatID, "You are not assigned to this task.")
	}
	if detail.Task.Status == model.TaskDone {
		return b.sendText(chatID, "This task is already done.")
	}

	transition, err := b.tasks.SetMemberStatus(ctx, taskID, user.ID, model.MemberDone)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
	}

	title := escape(detail.Task.Title)
	text := fmt.Sprintf("✅ Your part of «%s» is done.", title)
	if transition.Completed {
		text = fmt.Sprintf("✅ Task «%s» is complete.", title)
		if transition.Successor != nil {
			text += fmt.Sprintf("\n♻️ Next occurrence due %s.", transition.Successor.Deadline.Format(time.DateOnly))
		}
	}
	b.logger.Info("member done via bot", "task_id", taskID, "user_id", user.ID, "completed", transition.Completed)
	return b.sendText(chatID, text)
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64, user *model.User) error {
	tasks, err := b.tasks.ListAssigned(ctx, user.ID)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not load tasks: %s", escape(err.Error())))
	}

	var builder strings.Builder
	var buttons [][]tgbotapi.InlineKeyboardButton
	today := service.DateOnly(b.now().In(b.loc))
	for _, task := range tasks {
		builder.WriteString(formatTask(task, today))
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ "+shortTitle(task.Title, 28), cbDonePrefix+task.ID),
		))
	}
	if len(buttons) == 0 {
		return b.sendText(chatID, "You have no open tasks. 🎉")
	}

	msg := tgbotapi.NewMessage(chatID, "📋 <b>Your open tasks</b>\nTap a button when your part is done.\n\n"+strings.TrimSpace(builder.String()))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	_, err = b.api.Send(msg)
	return err
}

func (b *Bot) linkedUser(ctx context.Context, chatID int64) (*model.User, error) {
	return b.users.FindByTelegramID(ctx, chatHandle(chatID))
}

func (b *Bot) replyLookupError(chatID int64, err error) error {
	if errors.Is(err, service.ErrNotFound) {
		return b.sendText(chatID, fmt.Sprintf("This chat is not linked to an account. Ask your manager to set <code>%s</code> as your Telegram ID.", chatHandle(chatID)))
	}
	return err
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelTasks),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func chatHandle(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

func isMember(members []model.MemberView, userID string) bool {
	for _, m := range members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

func formatTask(task model.Task, today time.Time) string {
	icon := "🟢"
	switch {
	case task.Deadline.Before(today):
		icon = "⚠️"
	case task.Deadline.Equal(today):
		icon = "⏳"
	}
	line := fmt.Sprintf("%s <b>%s</b> · due %s", icon, escape(task.Title), task.Deadline.Format(time.DateOnly))
	if task.RepeatType != model.RepeatNone && task.RepeatType != "" {
		line += " ♻️ " + string(task.RepeatType)
	}
	return line + "\n"
}

func shortTitle(title string, maxLen int) string {
	clean := strings.Join(strings.Fields(title), " ")
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func escape(s string) string {
	return html.EscapeString(s)
}
