package handler

import (
	"net/http"

	"github.com/officeladder/ladder/internal/chatcmd"
)

// SlackHandler receives slash-command posts.
type SlackHandler struct {
	dispatcher *chatcmd.Dispatcher
}

// NewSlackHandler creates a new SlackHandler.
func NewSlackHandler(dispatcher *chatcmd.Dispatcher) *SlackHandler {
	return &SlackHandler{dispatcher: dispatcher}
}

// Command handles POST /api/slack/commands. The body is form encoded with
// at least text and user_id. Replies are always 200 so the chat client
// shows the text.
func (h *SlackHandler) Command(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		RespondJSON(w, http.StatusBadRequest, map[string]string{
			"code": "VALIDATION_ERROR", "message": "invalid form body",
		})
		return
	}
	reply := h.dispatcher.Handle(r.Context(), chatcmd.Command{
		UserID: r.PostForm.Get("user_id"),
		Text:   r.PostForm.Get("text"),
	})
	RespondJSON(w, http.StatusOK, reply)
}
