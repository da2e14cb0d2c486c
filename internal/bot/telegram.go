package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"posthub.org/internal/obs"
)

// telegramAPI is the part of *tgbotapi.BotAPI the runner uses.
type telegramAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// TelegramRunner feeds Telegram updates into a Bot and sends back its replies.
type TelegramRunner struct {
	api         telegramAPI
	bot         *Bot
	pollTimeout int
}

// NewTelegramRunner connects to the Bot API with token.
func NewTelegramRunner(token string, b *Bot, pollTimeout int) (*TelegramRunner, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	obs.Logger().Info("telegram bot authorized", "account", api.Self.UserName)
	return newTelegramRunner(api, b, pollTimeout), nil
}

func newTelegramRunner(api telegramAPI, b *Bot, pollTimeout int) *TelegramRunner {
	if pollTimeout <= 0 {
		pollTimeout = 60
	}
	return &TelegramRunner{api: api, bot: b, pollTimeout: pollTimeout}
}

// RegisterCommands publishes the command menu shown by Telegram clients.
func (r *TelegramRunner) RegisterCommands() error {
	cmds := make([]tgbotapi.BotCommand, 0, len(Commands))
	for _, c := range Commands {
		cmds = append(cmds, tgbotapi.BotCommand{
			Command:     strings.TrimPrefix(c.Name, "/"),
			Description: c.Description,
		})
	}
	_, err := r.api.Request(tgbotapi.NewSetMyCommands(cmds...))
	return err
}

// Run long-polls for updates until ctx is cancelled.
func (r *TelegramRunner) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = r.pollTimeout
	updates := r.api.GetUpdatesChan(u)
	defer r.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			r.handleUpdate(ctx, upd)
		}
	}
}

func (r *TelegramRunner) handleUpdate(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.Message != nil && upd.Message.From != nil:
		r.handleMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil && upd.CallbackQuery.From != nil:
		r.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (r *TelegramRunner) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	reply, err := r.bot.HandleMessage(ctx, m.From.ID, m.Text)
	if err != nil {
		obs.Logger().ErrorContext(ctx, "handle message", "chat_user", m.From.ID, "error", err)
		return
	}
	msg := tgbotapi.NewMessage(m.Chat.ID, reply.Text)
	if len(reply.Keyboard) > 0 {
		msg.ReplyMarkup = keyboard(reply.Keyboard)
	}
	if _, err := r.api.Send(msg); err != nil {
		obs.Logger().ErrorContext(ctx, "send message", "chat_user", m.From.ID, "error", err)
	}
}

func (r *TelegramRunner) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	reply, err := r.bot.HandleCallback(ctx, q.From.ID, q.Data)
	if err != nil {
		obs.Logger().WarnContext(ctx, "handle callback", "chat_user", q.From.ID, "data", q.Data, "error", err)
		_, _ = r.api.Request(tgbotapi.NewCallback(q.ID, ""))
		return
	}
	if reply.Alert || q.Message == nil {
		if _, err := r.api.Request(tgbotapi.NewCallbackWithAlert(q.ID, reply.Text)); err != nil {
			obs.Logger().ErrorContext(ctx, "answer callback", "chat_user", q.From.ID, "error", err)
		}
		return
	}
	_, _ = r.api.Request(tgbotapi.NewCallback(q.ID, ""))

	var edit tgbotapi.Chattable
	if len(reply.Keyboard) > 0 {
		edit = tgbotapi.NewEditMessageTextAndMarkup(q.Message.Chat.ID, q.Message.MessageID, reply.Text, keyboard(reply.Keyboard))
	} else {
		edit = tgbotapi.NewEditMessageText(q.Message.Chat.ID, q.Message.MessageID, reply.Text)
	}
	if _, err := r.api.Send(edit); err != nil {
		obs.Logger().ErrorContext(ctx, "edit message", "chat_user", q.From.ID, "error", err)
	}
}

func keyboard(rows [][]Button) tgbotapi.InlineKeyboardMarkup {
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		btns := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		out = append(out, btns)
	}
	return tgbotapi.NewInlineKeyboardMarkup(out...)
}
