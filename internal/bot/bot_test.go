package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posthub.org/internal/posts"
)

type fakeAPI struct {
	users   map[string]string
	tokens  map[string]string
	posts   []posts.Post
	revoked map[string]bool
	listErr error
	logouts int
}

func newFakeAPI() *fakeAPI {
	f := &fakeAPI{
		users:   map[string]string{"alice": "secret123"},
		tokens:  map[string]string{},
		revoked: map[string]bool{},
	}
	for i := 1; i <= 12; i++ {
		f.posts = append(f.posts, posts.Post{
			ID:        int64(i),
			Title:     fmt.Sprintf("post %d", i),
			Content:   fmt.Sprintf("body %d", i),
			CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
			Username:  "alice",
		})
	}
	return f
}

func (f *fakeAPI) Login(_ context.Context, username, password string) (LoginResult, error) {
	if f.users[username] != password {
		return LoginResult{}, ErrUnauthorized
	}
	tok := fmt.Sprintf("tok-%s-%d", username, len(f.tokens))
	f.tokens[tok] = username
	return LoginResult{AccessToken: tok, TokenType: "bearer"}, nil
}

func (f *fakeAPI) check(token string) error {
	if _, ok := f.tokens[token]; !ok || f.revoked[token] {
		return ErrUnauthorized
	}
	return nil
}

func (f *fakeAPI) Logout(_ context.Context, token string) error {
	if err := f.check(token); err != nil {
		return err
	}
	f.logouts++
	f.revoked[token] = true
	return nil
}

func (f *fakeAPI) ListPosts(_ context.Context, token string, skip, limit int) ([]posts.Post, error) {
	if err := f.check(token); err != nil {
		return nil, err
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	if skip >= len(f.posts) {
		return []posts.Post{}, nil
	}
	end := min(skip+limit, len(f.posts))
	return f.posts[skip:end], nil
}

func (f *fakeAPI) CountPosts(_ context.Context, token string) (int, error) {
	if err := f.check(token); err != nil {
		return 0, err
	}
	return len(f.posts), nil
}

func (f *fakeAPI) GetPost(_ context.Context, token string, id int64) (posts.Post, error) {
	if err := f.check(token); err != nil {
		return posts.Post{}, err
	}
	for _, p := range f.posts {
		if p.ID == id {
			return p, nil
		}
	}
	return posts.Post{}, ErrPostNotFound
}

const chatUser = int64(42)

func newTestBot(t *testing.T) (*Bot, *fakeAPI, *MemorySessions) {
	t.Helper()
	api := newFakeAPI()
	sessions := NewMemorySessions(time.Hour, nil)
	return New(api, sessions), api, sessions
}

func login(t *testing.T, b *Bot) {
	t.Helper()
	ctx := context.Background()
	_, err := b.HandleMessage(ctx, chatUser, "/login")
	require.NoError(t, err)
	reply, err := b.HandleMessage(ctx, chatUser, "alice:secret123")
	require.NoError(t, err)
	require.Equal(t, msgLoggedIn, reply.Text)
}

func TestStartAndFreeText(t *testing.T) {
	b, _, _ := newTestBot(t)
	ctx := context.Background()

	reply, err := b.HandleMessage(ctx, chatUser, "/start")
	require.NoError(t, err)
	assert.Equal(t, msgWelcome, reply.Text)

	reply, err = b.HandleMessage(ctx, chatUser, "hello there")
	require.NoError(t, err)
	assert.Equal(t, msgUseStart, reply.Text)
}

func TestUnknownCommandListsCommands(t *testing.T) {
	b, _, _ := newTestBot(t)
	reply, err := b.HandleMessage(context.Background(), chatUser, "/dance now")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "'/dance'")
	for _, c := range Commands {
		assert.Contains(t, reply.Text, c.Name)
	}
}

func TestLoginFlow(t *testing.T) {
	b, _, sessions := newTestBot(t)
	ctx := context.Background()

	reply, err := b.HandleMessage(ctx, chatUser, "/login@posthub_bot")
	require.NoError(t, err)
	assert.Equal(t, msgEnterCredentials, reply.Text)

	reply, err = b.HandleMessage(ctx, chatUser, "alice secret123")
	require.NoError(t, err)
	assert.Equal(t, msgBadCredentialsForm, reply.Text)

	reply, err = b.HandleMessage(ctx, chatUser, "alice:wrong")
	require.NoError(t, err)
	assert.Equal(t, msgBadCredentials, reply.Text)

	// Still awaiting credentials after a failed attempt.
	reply, err = b.HandleMessage(ctx, chatUser, "alice:secret123")
	require.NoError(t, err)
	assert.Equal(t, msgLoggedIn, reply.Text)

	sess, ok, err := sessions.Get(ctx, chatUser)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, sess.Authenticated())
	assert.False(t, sess.AwaitingCredentials)
	assert.Equal(t, "alice", sess.Username)
}

func TestPostsRequireLogin(t *testing.T) {
	b, _, _ := newTestBot(t)
	ctx := context.Background()

	reply, err := b.HandleMessage(ctx, chatUser, "/posts")
	require.NoError(t, err)
	assert.Equal(t, msgUseLogin, reply.Text)
	assert.False(t, reply.Alert)

	reply, err = b.HandleCallback(ctx, chatUser, "page_1")
	require.NoError(t, err)
	assert.Equal(t, msgUseLogin, reply.Text)
	assert.True(t, reply.Alert)

	reply, err = b.HandleCallback(ctx, chatUser, "post_1")
	require.NoError(t, err)
	assert.True(t, reply.Alert)
}

func TestPostsPagination(t *testing.T) {
	b, _, _ := newTestBot(t)
	login(t, b)
	ctx := context.Background()

	reply, err := b.HandleMessage(ctx, chatUser, "/posts")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(reply.Text, "Page 1\nShowing 5 of 12"))
	require.Len(t, reply.Keyboard, PageSize+1)
	assert.Equal(t, "post_1_0", reply.Keyboard[0][0].Data)
	nav := reply.Keyboard[PageSize]
	require.Len(t, nav, 1)
	assert.Equal(t, "page_1", nav[0].Data)

	reply, err = b.HandleCallback(ctx, chatUser, "page_1")
	require.NoError(t, err)
	nav = reply.Keyboard[len(reply.Keyboard)-1]
	require.Len(t, nav, 2)
	assert.Equal(t, "page_0", nav[0].Data)
	assert.Equal(t, "page_2", nav[1].Data)

	reply, err = b.HandleCallback(ctx, chatUser, "page_2")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "Showing 2 of 12")
	nav = reply.Keyboard[len(reply.Keyboard)-1]
	require.Len(t, nav, 1)
	assert.Equal(t, "page_1", nav[0].Data)
}

func TestPostDetailAndBack(t *testing.T) {
	b, _, _ := newTestBot(t)
	login(t, b)
	ctx := context.Background()

	reply, err := b.HandleCallback(ctx, chatUser, "post_7_1")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "post 7")
	assert.Contains(t, reply.Text, "body 7")
	require.Len(t, reply.Keyboard, 1)
	assert.Equal(t, "page_1", reply.Keyboard[0][0].Data)

	reply, err = b.HandleCallback(ctx, chatUser, "post_3")
	require.NoError(t, err)
	assert.Equal(t, "page_0", reply.Keyboard[0][0].Data)

	reply, err = b.HandleCallback(ctx, chatUser, "post_99")
	require.NoError(t, err)
	assert.Equal(t, msgPostNotFound, reply.Text)
	assert.True(t, reply.Alert)

	_, err = b.HandleCallback(ctx, chatUser, "post_x")
	assert.Error(t, err)
	_, err = b.HandleCallback(ctx, chatUser, "dance")
	assert.Error(t, err)
}

func TestRevokedTokenDropsSession(t *testing.T) {
	b, api, sessions := newTestBot(t)
	login(t, b)
	ctx := context.Background()

	sess, _, _ := sessions.Get(ctx, chatUser)
	api.revoked[sess.Token] = true

	reply, err := b.HandleMessage(ctx, chatUser, "/posts")
	require.NoError(t, err)
	assert.Equal(t, msgSessionExpired, reply.Text)

	_, ok, err := sessions.Get(ctx, chatUser)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostsAPIErrorIsReported(t *testing.T) {
	b, api, _ := newTestBot(t)
	login(t, b)
	api.listErr = errors.New("boom")

	reply, err := b.HandleMessage(context.Background(), chatUser, "/posts")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "boom")
}

func TestLogout(t *testing.T) {
	b, api, sessions := newTestBot(t)
	ctx := context.Background()

	reply, err := b.HandleMessage(ctx, chatUser, "/logout")
	require.NoError(t, err)
	assert.Equal(t, msgNotLoggedIn, reply.Text)

	login(t, b)
	reply, err = b.HandleMessage(ctx, chatUser, "/logout")
	require.NoError(t, err)
	assert.Equal(t, msgLoggedOut, reply.Text)
	assert.Equal(t, 1, api.logouts)

	_, ok, _ := sessions.Get(ctx, chatUser)
	assert.False(t, ok)
}
