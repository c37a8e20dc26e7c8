package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shinefiling/filing-admin/internal/admin/chat"
	"github.com/shinefiling/filing-admin/internal/admin/httpserver/middleware"
	"github.com/shinefiling/filing-admin/internal/admin/httpx"
)

type messageRequest struct {
	Message string `json:"message"`
}

type draftRequest struct {
	Text string `json:"text"`
}

// ChatView returns the caller's chat widget state.
func (h *Handlers) ChatView(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(context.Context, *chat.Session) error {
		return nil
	})
}

// ChatOpen opens the thread of the order in the caller's widget.
func (h *Handlers) ChatOpen(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.Lookup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.withSession(w, r, func(ctx context.Context, s *chat.Session) error {
		_, err := s.Open(ctx, order)
		return err
	})
}

// ChatMinimize collapses the widget and pauses polling.
func (h *Handlers) ChatMinimize(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(_ context.Context, s *chat.Session) error {
		return s.Minimize()
	})
}

// ChatRestore expands a minimized widget.
func (h *Handlers) ChatRestore(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(ctx context.Context, s *chat.Session) error {
		_, err := s.Restore(ctx)
		return err
	})
}

// ChatClose closes the thread and withdraws any typing announcement.
func (h *Handlers) ChatClose(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(ctx context.Context, s *chat.Session) error {
		return s.Close(ctx)
	})
}

// ChatRefresh re-fetches history and typing state.
func (h *Handlers) ChatRefresh(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(ctx context.Context, s *chat.Session) error {
		return s.Refresh(ctx)
	})
}

// ChatDraft records a keystroke burst.
func (h *Handlers) ChatDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.withSession(w, r, func(ctx context.Context, s *chat.Session) error {
		return s.Type(ctx, req.Text)
	})
}

// ChatSend sends the message, or saves the edit in progress.
func (h *Handlers) ChatSend(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.withSession(w, r, func(ctx context.Context, s *chat.Session) error {
		return s.Send(ctx, req.Message)
	})
}

// ChatBeginEdit loads an own message into the composer.
func (h *Handlers) ChatBeginEdit(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(_ context.Context, s *chat.Session) error {
		return s.BeginEdit(chi.URLParam(r, "msgID"))
	})
}

// ChatCancelEdit abandons the edit in progress.
func (h *Handlers) ChatCancelEdit(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(_ context.Context, s *chat.Session) error {
		s.CancelEdit()
		return nil
	})
}

// ChatEdit replaces the text of an own message.
func (h *Handlers) ChatEdit(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.withSession(w, r, func(ctx context.Context, s *chat.Session) error {
		return s.Edit(ctx, chi.URLParam(r, "msgID"), req.Message)
	})
}

// ChatDelete deletes a message.
func (h *Handlers) ChatDelete(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(ctx context.Context, s *chat.Session) error {
		return s.Delete(ctx, chi.URLParam(r, "msgID"))
	})
}

// ChatClear deletes the whole thread history.
func (h *Handlers) ChatClear(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(ctx context.Context, s *chat.Session) error {
		return s.Clear(ctx)
	})
}

// withSession resolves the caller's session, runs fn and answers with the
// resulting view. confirm=true marks the context as confirmed.
func (h *Handlers) withSession(w http.ResponseWriter, r *http.Request, fn func(context.Context, *chat.Session) error) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, chat.ErrUnknownUser)
		return
	}
	session, err := h.chat.SessionAs(user.UID, user.DisplayName(), chat.ParseRole(user.ChatRole()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	if confirmed(r) {
		ctx = chat.WithConfirmation(ctx)
	}
	if err := fn(ctx, session); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(r.Context(), w, http.StatusOK, session.View())
}
