package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"gif-api/internal/gifs"
	"gif-api/internal/models"
)

// ListGifs serves the unified GET /gifs query. The response is a JSON list
// for title searches and list=tags, and a single gif for random picks.
func (h *Handler) ListGifs(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	query := gifs.Query{
		Tag:       values.Get("tag"),
		Anime:     values.Get("anime"),
		Character: values.Get("character"),
		NSFW:      values.Get("nsfw"),
		Limit:     values.Get("limit"),
		Offset:    values.Get("offset"),
	}
	if _, ok := values["q"]; ok {
		q := values.Get("q")
		query.Q = &q
	}
	if _, ok := values["list"]; ok {
		list := values.Get("list")
		query.List = &list
	}

	plan, err := gifs.Resolve(query)
	if err != nil {
		h.recorder().ObserveLookup("unresolved", lookupOutcome(err))
		h.writeServiceError(w, r, err)
		return
	}
	result, err := h.gifService().Execute(r.Context(), plan)
	h.recorder().ObserveLookup(plan.Mode.String(), lookupOutcome(err))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	switch result.Mode {
	case gifs.ModeListTags:
		writeJSON(w, http.StatusOK, nonNil(result.Tags))
	case gifs.ModeSearchTitle:
		writeJSON(w, http.StatusOK, nonNil(result.Gifs))
	default:
		writeJSON(w, http.StatusOK, result.Gif)
	}
}

func (h *Handler) CreateGif(w http.ResponseWriter, r *http.Request) {
	var input models.GifInput
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	gif, created, err := h.gifService().Save(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	operation := "replace"
	if created {
		status = http.StatusCreated
		operation = "create"
	}
	h.recorder().ObserveGifWrite(operation)
	h.logger(r).Info("gif saved", "gif_id", gif.ID, "operation", operation)
	writeJSON(w, status, gif)
}

func (h *Handler) GetGif(w http.ResponseWriter, r *http.Request) {
	id, ok := gifIDParam(w, r)
	if !ok {
		return
	}
	gif, err := h.gifService().Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gif)
}

func (h *Handler) PatchGif(w http.ResponseWriter, r *http.Request) {
	id, ok := gifIDParam(w, r)
	if !ok {
		return
	}
	var update models.GifUpdate
	if err := decodeJSON(w, r, &update); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	gif, err := h.gifService().Update(r.Context(), id, update)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.recorder().ObserveGifWrite("update")
	writeJSON(w, http.StatusOK, gif)
}

func (h *Handler) DeleteGif(w http.ResponseWriter, r *http.Request) {
	id, ok := gifIDParam(w, r)
	if !ok {
		return
	}
	if err := h.gifService().Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.recorder().ObserveGifWrite("delete")
	h.logger(r).Info("gif deleted", "gif_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// AdminGifs is the guarded title search. nsfw defaults to true here.
func (h *Handler) AdminGifs(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	found, err := h.gifService().AdminSearch(r.Context(), gifs.AdminQuery{
		Q:      values.Get("q"),
		NSFW:   values.Get("nsfw"),
		Limit:  values.Get("limit"),
		Offset: values.Get("offset"),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(found))
}

func gifIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid gif id %q", raw))
		return 0, false
	}
	return id, true
}

func lookupOutcome(err error) string {
	switch {
	case err == nil:
		return "hit"
	case errors.Is(err, gifs.ErrNotFound):
		return "miss"
	case errors.Is(err, gifs.ErrInvalidRequest):
		return "invalid"
	default:
		return "error"
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
