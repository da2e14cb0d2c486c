package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"posthub.org/internal/audit"
	"posthub.org/internal/auth"
	"posthub.org/internal/posts"
)

type postRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (a *API) createPost(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	var req postRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, err := a.posts.Create(r.Context(), user.Username, req.Title, req.Content)
	if err != nil {
		handlePostError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventPostCreated, map[string]any{"post_id": p.ID})
	w.Header().Set("Location", "/posts/"+strconv.FormatInt(p.ID, 10))
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) updatePost(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req postRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, err := a.posts.Update(r.Context(), user.Username, id, posts.Patch{Title: req.Title, Content: req.Content})
	if err != nil {
		handlePostError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventPostUpdated, map[string]any{"post_id": p.ID})
	writeJSON(w, http.StatusOK, p)
}

func (a *API) listPosts(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	q := r.URL.Query()
	skip, err := parseNonNegativeInt(q.Get("skip"), 0)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "skip "+err.Error())
		return
	}
	limit, err := parseNonNegativeInt(q.Get("limit"), posts.DefaultLimit)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "limit "+err.Error())
		return
	}
	items, err := a.posts.List(r.Context(), user.Username, posts.Page{Skip: skip, Limit: limit})
	if err != nil {
		handlePostError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *API) countPosts(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	n, err := a.posts.Count(r.Context(), user.Username)
	if err != nil {
		handlePostError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"total": n})
}

func (a *API) getPost(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := a.posts.Get(r.Context(), user.Username, id)
	if err != nil {
		handlePostError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) deletePost(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.posts.Delete(r.Context(), user.Username, id); err != nil {
		handlePostError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventPostDeleted, map[string]any{"post_id": id})
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusNotFound, posts.ErrNotFound.Error())
		return 0, false
	}
	return id, true
}

func parseNonNegativeInt(raw string, def int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("must be an integer")
	}
	if val < 0 {
		return 0, errors.New("must be >= 0")
	}
	return val, nil
}

func handlePostError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, posts.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, posts.ErrNothingToUpdate),
		errors.Is(err, posts.ErrInvalidPost),
		errors.Is(err, posts.ErrInvalidPage),
		errors.Is(err, posts.ErrNoOwner):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		internalError(w, r, "posts", err)
	}
}
