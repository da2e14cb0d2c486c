// Package bot implements the chat-bot front end of posthub: a transport
// agnostic conversation engine, its session storage, an HTTP client for the
// API, and a Telegram adapter.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"posthub.org/internal/obs"
	"posthub.org/internal/posts"
)

// PageSize is the number of posts shown per page.
const PageSize = 5

// API is the subset of the posthub API the conversation needs.
type API interface {
	Login(ctx context.Context, username, password string) (LoginResult, error)
	Logout(ctx context.Context, token string) error
	ListPosts(ctx context.Context, token string, skip, limit int) ([]posts.Post, error)
	CountPosts(ctx context.Context, token string) (int, error)
	GetPost(ctx context.Context, token string, id int64) (posts.Post, error)
}

var _ API = (*APIClient)(nil)

// Button is an inline keyboard button carrying callback data.
type Button struct {
	Text string
	Data string
}

// Reply is what the transport should show the user.
type Reply struct {
	Text     string
	Keyboard [][]Button
	// Alert asks the transport to show Text as a popup instead of a message.
	Alert bool
}

// Bot drives conversations. It is safe for concurrent use when the session
// store is.
type Bot struct {
	api      API
	sessions SessionStore
}

func New(api API, sessions SessionStore) *Bot {
	return &Bot{api: api, sessions: sessions}
}

// HandleMessage answers a text message from userID.
func (b *Bot) HandleMessage(ctx context.Context, userID int64, text string) (Reply, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "/") {
		return b.handleCommand(ctx, userID, text)
	}
	sess, ok, err := b.sessions.Get(ctx, userID)
	if err != nil {
		return Reply{}, err
	}
	if ok && sess.AwaitingCredentials {
		return b.handleCredentials(ctx, userID, text)
	}
	return Reply{Text: msgUseStart}, nil
}

func (b *Bot) handleCommand(ctx context.Context, userID int64, text string) (Reply, error) {
	cmd := strings.Fields(text)[0]
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	switch cmd {
	case "/start":
		return Reply{Text: msgWelcome}, nil
	case "/login":
		if err := b.sessions.Put(ctx, userID, Session{AwaitingCredentials: true}); err != nil {
			return Reply{}, err
		}
		return Reply{Text: msgEnterCredentials}, nil
	case "/logout":
		return b.logout(ctx, userID)
	case "/posts":
		return b.listPosts(ctx, userID, 0, false)
	}
	var lines []string
	for _, c := range Commands {
		lines = append(lines, "\t"+c.Name+" - "+c.Description)
	}
	return Reply{Text: fmt.Sprintf(msgUnknownCommand, cmd, strings.Join(lines, "\n"))}, nil
}

func (b *Bot) handleCredentials(ctx context.Context, userID int64, text string) (Reply, error) {
	username, password, ok := strings.Cut(text, ":")
	if !ok {
		return Reply{Text: msgBadCredentialsForm}, nil
	}
	username = strings.TrimSpace(username)
	res, err := b.api.Login(ctx, username, password)
	switch {
	case errors.Is(err, ErrUnauthorized):
		return Reply{Text: msgBadCredentials}, nil
	case err != nil:
		obs.Logger().WarnContext(ctx, "bot login failed", "chat_user", userID, "error", err)
		return Reply{Text: fmt.Sprintf(msgLoginFailed, err)}, nil
	}
	if err := b.sessions.Put(ctx, userID, Session{Token: res.AccessToken, Username: username}); err != nil {
		return Reply{}, err
	}
	return Reply{Text: msgLoggedIn}, nil
}

func (b *Bot) logout(ctx context.Context, userID int64) (Reply, error) {
	sess, ok, err := b.sessions.Get(ctx, userID)
	if err != nil {
		return Reply{}, err
	}
	if !ok || !sess.Authenticated() {
		return Reply{Text: msgNotLoggedIn}, nil
	}
	// An already revoked or expired token still ends the local session.
	if err := b.api.Logout(ctx, sess.Token); err != nil && !errors.Is(err, ErrUnauthorized) {
		obs.Logger().WarnContext(ctx, "bot logout failed", "chat_user", userID, "error", err)
	}
	if err := b.sessions.Delete(ctx, userID); err != nil {
		return Reply{}, err
	}
	return Reply{Text: msgLoggedOut}, nil
}

// HandleCallback answers an inline button press. Data is page_<n>,
// post_<id> or post_<id>_<page>.
func (b *Bot) HandleCallback(ctx context.Context, userID int64, data string) (Reply, error) {
	switch {
	case strings.HasPrefix(data, "page_"):
		page, err := strconv.Atoi(strings.TrimPrefix(data, "page_"))
		if err != nil || page < 0 {
			return Reply{}, fmt.Errorf("bad page callback %q", data)
		}
		return b.listPosts(ctx, userID, page, true)
	case strings.HasPrefix(data, "post_"):
		idPart, pagePart, hasPage := strings.Cut(strings.TrimPrefix(data, "post_"), "_")
		id, err := strconv.ParseInt(idPart, 10, 64)
		if err != nil {
			return Reply{}, fmt.Errorf("bad post callback %q", data)
		}
		page := 0
		if hasPage {
			if page, err = strconv.Atoi(pagePart); err != nil || page < 0 {
				return Reply{}, fmt.Errorf("bad post callback %q", data)
			}
		}
		return b.showPost(ctx, userID, id, page)
	}
	return Reply{}, fmt.Errorf("unknown callback %q", data)
}

func (b *Bot) authenticated(ctx context.Context, userID int64) (Session, bool, error) {
	sess, ok, err := b.sessions.Get(ctx, userID)
	if err != nil || !ok || !sess.Authenticated() {
		return Session{}, false, err
	}
	return sess, true, nil
}

// expired drops the session after the API rejected its token.
func (b *Bot) expired(ctx context.Context, userID int64, alert bool) (Reply, error) {
	if err := b.sessions.Delete(ctx, userID); err != nil {
		return Reply{}, err
	}
	return Reply{Text: msgSessionExpired, Alert: alert}, nil
}

func (b *Bot) listPosts(ctx context.Context, userID int64, page int, fromCallback bool) (Reply, error) {
	sess, ok, err := b.authenticated(ctx, userID)
	if err != nil {
		return Reply{}, err
	}
	if !ok {
		return Reply{Text: msgUseLogin, Alert: fromCallback}, nil
	}

	items, err := b.api.ListPosts(ctx, sess.Token, page*PageSize, PageSize)
	if err == nil {
		var total int
		total, err = b.api.CountPosts(ctx, sess.Token)
		if err == nil {
			return postsPage(items, total, page), nil
		}
	}
	if errors.Is(err, ErrUnauthorized) {
		return b.expired(ctx, userID, fromCallback)
	}
	return Reply{Text: fmt.Sprintf(msgPostsFailed, err), Alert: fromCallback}, nil
}

func postsPage(items []posts.Post, total, page int) Reply {
	var kb [][]Button
	for _, p := range items {
		kb = append(kb, []Button{{
			Text: p.Title,
			Data: "post_" + strconv.FormatInt(p.ID, 10) + "_" + strconv.Itoa(page),
		}})
	}
	var nav []Button
	if page > 0 {
		nav = append(nav, Button{Text: btnPrev, Data: "page_" + strconv.Itoa(page-1)})
	}
	if (page+1)*PageSize < total {
		nav = append(nav, Button{Text: btnNext, Data: "page_" + strconv.Itoa(page+1)})
	}
	if len(nav) > 0 {
		kb = append(kb, nav)
	}
	if total == 0 {
		return Reply{Text: msgNoPosts, Keyboard: kb}
	}
	return Reply{Text: fmt.Sprintf(msgPostsPage, page+1, len(items), total), Keyboard: kb}
}

func (b *Bot) showPost(ctx context.Context, userID, id int64, page int) (Reply, error) {
	sess, ok, err := b.authenticated(ctx, userID)
	if err != nil {
		return Reply{}, err
	}
	if !ok {
		return Reply{Text: msgUseLogin, Alert: true}, nil
	}
	p, err := b.api.GetPost(ctx, sess.Token, id)
	switch {
	case errors.Is(err, ErrPostNotFound):
		return Reply{Text: msgPostNotFound, Alert: true}, nil
	case errors.Is(err, ErrUnauthorized):
		return b.expired(ctx, userID, true)
	case err != nil:
		return Reply{Text: fmt.Sprintf(msgPostFailed, err), Alert: true}, nil
	}
	return Reply{
		Text:     fmt.Sprintf(msgPostDetail, p.Title, p.Content, p.CreatedAt.Format(time.DateTime)),
		Keyboard: [][]Button{{{Text: btnList, Data: "page_" + strconv.Itoa(page)}}},
	}, nil
}
