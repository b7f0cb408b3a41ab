package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/officeladder/ladder/internal/avatar"
	"github.com/officeladder/ladder/internal/domain"
	"github.com/officeladder/ladder/internal/service"
)

// multipartOverhead is the slack allowed on top of the avatar size for
// multipart framing.
const multipartOverhead = 1 << 20

// PlayerHandler handles player endpoints.
type PlayerHandler struct {
	players        *service.PlayerService
	prizes         *service.PrizeService
	avatarMaxBytes int64
}

// NewPlayerHandler creates a new PlayerHandler.
func NewPlayerHandler(players *service.PlayerService, prizes *service.PrizeService, avatarMaxBytes int64) *PlayerHandler {
	if avatarMaxBytes <= 0 {
		avatarMaxBytes = avatar.DefaultMaxBytes
	}
	return &PlayerHandler{players: players, prizes: prizes, avatarMaxBytes: avatarMaxBytes}
}

// List handles GET /api/players.
func (h *PlayerHandler) List(w http.ResponseWriter, r *http.Request) {
	players, err := h.players.List(r.Context(), "")
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, nonNil(players))
}

// ListByOffice handles GET /api/players/office/{office}.
func (h *PlayerHandler) ListByOffice(w http.ResponseWriter, r *http.Request) {
	office := domain.NormalizeOffice(chi.URLParam(r, "office"))
	if office == "" {
		RespondError(w, domain.ErrValidation("office is required"))
		return
	}
	players, err := h.players.List(r.Context(), office)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, nonNil(players))
}

// Register handles POST /api/players.
func (h *PlayerHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterPlayerParams
	if err := decodeBody(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	player, err := h.players.Register(r.Context(), req)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, player)
}

// Get handles GET /api/players/{id}.
func (h *PlayerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", "player")
	if err != nil {
		RespondError(w, err)
		return
	}
	player, err := h.players.Get(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, player)
}

// Update handles PUT /api/players/{id}.
func (h *PlayerHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", "player")
	if err != nil {
		RespondError(w, err)
		return
	}
	var req domain.UpdatePlayerParams
	if err := decodeBody(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	player, err := h.players.Update(r.Context(), id, req)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, player)
}

// Deactivate handles DELETE /api/players/{id}.
func (h *PlayerHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", "player")
	if err != nil {
		RespondError(w, err)
		return
	}
	if err := h.players.Deactivate(r.Context(), id); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"message": "player deactivated"})
}

// UploadAvatar handles POST /api/players/{id}/avatar with a multipart
// "avatar" file field.
func (h *PlayerHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", "player")
	if err != nil {
		RespondError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.avatarMaxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.avatarMaxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RespondError(w, domain.ErrValidation("file too large"))
			return
		}
		RespondError(w, domain.ErrValidation("invalid multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("avatar")
	if err != nil {
		RespondError(w, domain.ErrValidation("no file uploaded"))
		return
	}
	defer file.Close()

	ref, err := h.players.UploadAvatar(r.Context(), id, avatar.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{
		"message":    "avatar uploaded successfully",
		"avatar_url": ref,
	})
}

// DeleteAvatar handles DELETE /api/players/{id}/avatar.
func (h *PlayerHandler) DeleteAvatar(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", "player")
	if err != nil {
		RespondError(w, err)
		return
	}
	if err := h.players.DeleteAvatar(r.Context(), id); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"message": "avatar deleted successfully"})
}

// ListPrizes handles GET /api/players/{id}/prizes.
func (h *PlayerHandler) ListPrizes(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", "player")
	if err != nil {
		RespondError(w, err)
		return
	}
	prizes, err := h.prizes.ListByPlayer(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, nonNil(prizes))
}

func uuidParam(r *http.Request, name, entity string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, domain.ErrValidation("invalid " + entity + " id")
	}
	return id, nil
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
