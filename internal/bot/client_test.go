package bot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posthub.org/internal/auth"
	"posthub.org/internal/httpapi"
	"posthub.org/internal/posts"
)

func newTestServer(t *testing.T) *APIClient {
	t.Helper()
	codec, err := auth.NewCodec("test-secret", "HS256")
	require.NoError(t, err)
	svc, err := auth.NewService(auth.NewMemoryStore(), auth.NewMemoryRevocations(nil), codec)
	require.NoError(t, err)

	api := httpapi.New(httpapi.ReadyProbe{}, "test", svc, posts.NewInMemory(), httpapi.WithLoginRateLimit(0, 0))
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return NewAPIClient(srv.URL+"/", srv.Client())
}

func TestAPIClientAgainstServer(t *testing.T) {
	c := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, c.Register(ctx, "alice", "secret123"))

	var apiErr *APIError
	err := c.Register(ctx, "alice", "secret123")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)

	_, err = c.Login(ctx, "alice", "nope")
	assert.ErrorIs(t, err, ErrUnauthorized)

	res, err := c.Login(ctx, "alice", "secret123")
	require.NoError(t, err)
	require.NotEmpty(t, res.AccessToken)
	assert.Equal(t, "bearer", res.TokenType)

	me, err := c.Me(ctx, res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", me)

	created, err := c.CreatePost(ctx, res.AccessToken, "hello", "world")
	require.NoError(t, err)

	items, err := c.ListPosts(ctx, res.AccessToken, 0, PageSize)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, created.ID, items[0].ID)

	n, err := c.CountPosts(ctx, res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := c.GetPost(ctx, res.AccessToken, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "world", got.Content)

	_, err = c.GetPost(ctx, res.AccessToken, created.ID+100)
	assert.ErrorIs(t, err, ErrPostNotFound)

	require.NoError(t, c.Logout(ctx, res.AccessToken))
	_, err = c.CountPosts(ctx, res.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestBotEndToEnd(t *testing.T) {
	c := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, c.Register(ctx, "alice", "secret123"))
	res, err := c.Login(ctx, "alice", "secret123")
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		_, err := c.CreatePost(ctx, res.AccessToken, "title", "content")
		require.NoError(t, err)
	}

	sessions := NewMemorySessions(0, nil)
	b := New(c, sessions)

	_, err = b.HandleMessage(ctx, chatUser, "/login")
	require.NoError(t, err)
	reply, err := b.HandleMessage(ctx, chatUser, "alice:secret123")
	require.NoError(t, err)
	require.Equal(t, msgLoggedIn, reply.Text)

	reply, err = b.HandleMessage(ctx, chatUser, "/posts")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "Showing 5 of 6")

	// Revoking the bot's token from elsewhere forces a fresh login.
	sess, _, _ := sessions.Get(ctx, chatUser)
	require.NoError(t, c.Logout(ctx, sess.Token))
	reply, err = b.HandleCallback(ctx, chatUser, "page_1")
	require.NoError(t, err)
	assert.Equal(t, msgSessionExpired, reply.Text)
	assert.True(t, reply.Alert)
}

func TestAPIClientTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewAPIClient(url, nil)
	_, err := c.CountPosts(context.Background(), "tok")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnauthorized))
}
