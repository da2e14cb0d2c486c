package bot

import (
	"context"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTelegram struct {
	updates  chan tgbotapi.Update
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	stopped  bool
}

func (f *fakeTelegram) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeTelegram) StopReceivingUpdates() { f.stopped = true }

func (f *fakeTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeTelegram) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func textMessage(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: chatUser},
		Chat:      &tgbotapi.Chat{ID: 100},
		Text:      text,
	}}
}

func callback(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb-1",
		From: &tgbotapi.User{ID: chatUser},
		Message: &tgbotapi.Message{
			MessageID: 9,
			Chat:      &tgbotapi.Chat{ID: 100},
		},
		Data: data,
	}}
}

func TestTelegramRunnerMessagesAndCallbacks(t *testing.T) {
	b, _, _ := newTestBot(t)
	tg := &fakeTelegram{updates: make(chan tgbotapi.Update)}
	r := newTelegramRunner(tg, b, 0)
	ctx := context.Background()

	r.handleUpdate(ctx, textMessage("/start"))
	require.Len(t, tg.sent, 1)
	msg, ok := tg.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(100), msg.ChatID)
	assert.Equal(t, msgWelcome, msg.Text)
	assert.Nil(t, msg.ReplyMarkup)

	// Not logged in: the callback is answered with an alert and nothing is edited.
	r.handleUpdate(ctx, callback("page_0"))
	require.Len(t, tg.requests, 1)
	answer, ok := tg.requests[0].(tgbotapi.CallbackConfig)
	require.True(t, ok)
	assert.True(t, answer.ShowAlert)
	assert.Equal(t, msgUseLogin, answer.Text)
	require.Len(t, tg.sent, 1)

	r.handleUpdate(ctx, textMessage("/login"))
	r.handleUpdate(ctx, textMessage("alice:secret123"))
	r.handleUpdate(ctx, textMessage("/posts"))
	require.Len(t, tg.sent, 4)
	list, ok := tg.sent[3].(tgbotapi.MessageConfig)
	require.True(t, ok)
	markup, ok := list.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, PageSize+1)
	require.NotNil(t, markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "post_1_0", *markup.InlineKeyboard[0][0].CallbackData)

	r.handleUpdate(ctx, callback("post_1_0"))
	require.Len(t, tg.sent, 5)
	edit, ok := tg.sent[4].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Equal(t, 9, edit.MessageID)
	assert.Contains(t, edit.Text, "post 1")
	require.NotNil(t, edit.ReplyMarkup)
}

func TestTelegramRunnerStopsOnCancel(t *testing.T) {
	b, _, _ := newTestBot(t)
	tg := &fakeTelegram{updates: make(chan tgbotapi.Update, 1)}
	r := newTelegramRunner(tg, b, 5)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	tg.updates <- textMessage("/start")
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
	assert.True(t, tg.stopped)
}

func TestRegisterCommands(t *testing.T) {
	b, _, _ := newTestBot(t)
	tg := &fakeTelegram{}
	r := newTelegramRunner(tg, b, 0)
	require.NoError(t, r.RegisterCommands())
	require.Len(t, tg.requests, 1)
	cfg, ok := tg.requests[0].(tgbotapi.SetMyCommandsConfig)
	require.True(t, ok)
	require.Len(t, cfg.Commands, len(Commands))
	assert.Equal(t, "start", cfg.Commands[0].Command)
}
