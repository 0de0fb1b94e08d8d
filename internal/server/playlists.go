package server

import (
	"fmt"
	"net/http"

	"github.com/desertthunder/setlist/internal/formatter"
	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/playlists"
	"github.com/desertthunder/setlist/internal/shared"
)

// PlaylistHandler serves the caller's playlists and their songs. Every route is guarded.
type PlaylistHandler struct {
	playlists PlaylistService
	guard     Middleware
	errs      *responder
}

func (h *PlaylistHandler) Routes() []Route {
	routes := []Route{
		{Method: http.MethodPost, Path: "/api/playlists", Handler: http.HandlerFunc(h.create)},
		{Method: http.MethodGet, Path: "/api/playlists", Handler: http.HandlerFunc(h.list)},
		{Method: http.MethodGet, Path: "/api/playlists/{playlistId}", Handler: http.HandlerFunc(h.get)},
		{Method: http.MethodPut, Path: "/api/playlists/{playlistId}", Handler: http.HandlerFunc(h.update)},
		{Method: http.MethodDelete, Path: "/api/playlists/{playlistId}", Handler: http.HandlerFunc(h.delete)},
		{Method: http.MethodGet, Path: "/api/playlists/{playlistId}/export", Handler: http.HandlerFunc(h.export)},
		{Method: http.MethodPost, Path: "/api/playlists/{playlistId}/songs", Handler: http.HandlerFunc(h.addSong)},
		{Method: http.MethodPut, Path: "/api/playlists/{playlistId}/songs/{songId}", Handler: http.HandlerFunc(h.updateSong)},
		{Method: http.MethodDelete, Path: "/api/playlists/{playlistId}/songs/{songId}", Handler: http.HandlerFunc(h.removeSong)},
	}
	for i := range routes {
		routes[i].Handler = h.guard(routes[i].Handler)
	}
	return routes
}

func (h *PlaylistHandler) create(w http.ResponseWriter, r *http.Request) {
	var in playlists.CreateInput
	if err := decode(w, r, &in); err != nil {
		h.errs.fail(w, r, err)
		return
	}

	playlist, err := h.playlists.Create(r.Context(), IdentityFrom(r.Context()), in)
	h.respond(w, r, http.StatusCreated, playlist, err)
}

func (h *PlaylistHandler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.playlists.ListOwned(r.Context(), IdentityFrom(r.Context()))
	h.respond(w, r, http.StatusOK, list, err)
}

func (h *PlaylistHandler) get(w http.ResponseWriter, r *http.Request) {
	playlist, err := h.playlists.Get(r.Context(), IdentityFrom(r.Context()), pathVar(r, "playlistId"))
	h.respond(w, r, http.StatusOK, playlist, err)
}

func (h *PlaylistHandler) update(w http.ResponseWriter, r *http.Request) {
	var u models.PlaylistUpdate
	if err := decode(w, r, &u); err != nil {
		h.errs.fail(w, r, err)
		return
	}

	playlist, err := h.playlists.Update(r.Context(), IdentityFrom(r.Context()), pathVar(r, "playlistId"), u)
	h.respond(w, r, http.StatusOK, playlist, err)
}

func (h *PlaylistHandler) delete(w http.ResponseWriter, r *http.Request) {
	err := h.playlists.Delete(r.Context(), IdentityFrom(r.Context()), pathVar(r, "playlistId"))
	h.respond(w, r, http.StatusOK, map[string]string{"message": "Playlist deleted successfully"}, err)
}

// export serves the playlist as a CSV, Markdown or text attachment chosen by ?format=.
func (h *PlaylistHandler) export(w http.ResponseWriter, r *http.Request) {
	format, err := formatter.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.errs.fail(w, r, err)
		return
	}

	playlist, err := h.playlists.Get(r.Context(), IdentityFrom(r.Context()), pathVar(r, "playlistId"))
	if err != nil {
		h.errs.fail(w, r, err)
		return
	}

	data, err := formatter.Render(playlist, format)
	if err != nil {
		h.errs.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename(playlist)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *PlaylistHandler) addSong(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Song *models.Song `json:"song"`
	}
	if err := decode(w, r, &body); err != nil {
		h.errs.fail(w, r, err)
		return
	}
	if body.Song == nil {
		h.errs.fail(w, r, fmt.Errorf("%w: song data is required", shared.ErrInvalidInput))
		return
	}

	playlist, err := h.playlists.AddSong(r.Context(), IdentityFrom(r.Context()), pathVar(r, "playlistId"), *body.Song)
	h.respond(w, r, http.StatusOK, playlist, err)
}

func (h *PlaylistHandler) updateSong(w http.ResponseWriter, r *http.Request) {
	var u models.SongUpdate
	if err := decode(w, r, &u); err != nil {
		h.errs.fail(w, r, err)
		return
	}

	playlist, err := h.playlists.UpdateSong(r.Context(), IdentityFrom(r.Context()), pathVar(r, "playlistId"), pathVar(r, "songId"), u)
	h.respond(w, r, http.StatusOK, playlist, err)
}

func (h *PlaylistHandler) removeSong(w http.ResponseWriter, r *http.Request) {
	playlist, err := h.playlists.RemoveSong(r.Context(), IdentityFrom(r.Context()), pathVar(r, "playlistId"), pathVar(r, "songId"))
	h.respond(w, r, http.StatusOK, playlist, err)
}

func (h *PlaylistHandler) respond(w http.ResponseWriter, r *http.Request, status int, v any, err error) {
	if err != nil {
		h.errs.fail(w, r, err)
		return
	}
	writeJSON(w, status, v)
}
