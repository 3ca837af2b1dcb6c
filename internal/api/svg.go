package api

import (
	"encoding/base64"
	"net/http"
	"path"
	"strings"
)

// maxDrawingBytes caps the encoded drawing accepted by a save.
const maxDrawingBytes = 10 << 20

// FormField is the form field carrying the base64-encoded drawing. The name
// is fixed by the drawing editor's save extension.
const FormField = "filepath"

func isDrawing(p string) bool {
	return strings.EqualFold(path.Ext(p), ".svg")
}

// GetSVG handles GET /api/svg/*. A missing drawing is initialized blank.
func (h *Handler) GetSVG(w http.ResponseWriter, r *http.Request) {
	h.serveSVG(w, r, wildcardPath(r))
}

// SaveSVG handles POST /api/svg/*.
func (h *Handler) SaveSVG(w http.ResponseWriter, r *http.Request) {
	h.saveSVG(w, r, wildcardPath(r))
}

// EditorSave handles POST /*/x.svg/editor, the path the drawing editor posts to.
func (h *Handler) EditorSave(w http.ResponseWriter, r *http.Request) {
	target, ok := strings.CutSuffix(wildcardPath(r), "/editor")
	if !ok || !isDrawing(target) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	h.saveSVG(w, r, target)
}

func (h *Handler) serveSVG(w http.ResponseWriter, r *http.Request, p string) {
	data, err := h.svc.LoadSVG(r.Context(), p)
	if err != nil {
		writeError(w, "load svg", err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(data)
}

func (h *Handler) saveSVG(w http.ResponseWriter, r *http.Request, p string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxDrawingBytes)
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("drawing too large or invalid form"))
		return
	}
	encoded := r.PostForm.Get(FormField)
	if encoded == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("missing '"+FormField+"' field"))
		return
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("drawing is not valid base64"))
		return
	}
	if err := h.svc.SaveSVG(r.Context(), p, data); err != nil {
		writeError(w, "save svg", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
