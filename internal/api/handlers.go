// internal/api/handlers.go
package api

import (
	"encoding/json"
	"net/http"

	"blamer/internal/blame"
	"blamer/internal/errors"
	"blamer/internal/logging"

	"go.uber.org/zap"
)

// BlameHandler handles HTTP requests for blame records
type BlameHandler struct {
	box    blame.Box
	logger *logging.Logger
}

func NewBlameHandler(box blame.Box, logger *logging.Logger) *BlameHandler {
	return &BlameHandler{box: box, logger: logger}
}

// Register adds the blame routes to mux.
func (h *BlameHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/blames", h.List)
	mux.HandleFunc("GET /api/blames/all", h.All)
	mux.HandleFunc("GET /api/blames/file", h.Get)
	mux.HandleFunc("PUT /api/blames/file", h.Merge)
	mux.HandleFunc("DELETE /api/blames/file", h.Delete)
}

func (h *BlameHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := errors.From(err)
	if e.Code >= http.StatusInternalServerError {
		h.logger.WithRequestID(r.Context()).Error("request failed", zap.Error(err))
	}
	http.Error(w, e.Message, e.Code)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (h *BlameHandler) List(w http.ResponseWriter, r *http.Request) {
	files, err := h.box.Files()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if files == nil {
		files = []string{}
	}

	writeJSON(w, files)
}

// All responds with every stored record, ordered by file name.
func (h *BlameHandler) All(w http.ResponseWriter, r *http.Request) {
	blames, err := h.box.Load()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	records := make([]*blame.FileBlame, 0, blames.Size())
	for fb := range blames.Records() {
		records = append(records, fb)
	}
	writeJSON(w, records)
}

func (h *BlameHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "missing name", http.StatusBadRequest)
		return
	}

	fb, err := h.box.Get(name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, fb)
}

// Merge folds the record in the request body into the stored record for the
// same file and responds with the result. With replace=true the stored
// record is overwritten instead.
func (h *BlameHandler) Merge(w http.ResponseWriter, r *http.Request) {
	fb := blame.New("")
	if err := json.NewDecoder(r.Body).Decode(fb); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if fb.FileName() == "" {
		http.Error(w, "file_name is required", http.StatusBadRequest)
		return
	}

	if r.URL.Query().Get("replace") == "true" {
		if err := h.box.Put(fb); err != nil {
			h.writeError(w, r, err)
			return
		}
		h.logger.WithRequestID(r.Context()).Info("blame replaced",
			zap.String("file", fb.FileName()),
			zap.Int("lines", fb.Len()),
		)
		writeJSON(w, fb)
		return
	}

	merged, err := h.box.Merge(fb)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.WithRequestID(r.Context()).Info("blame merged",
		zap.String("file", merged.FileName()),
		zap.Int("received_lines", fb.Len()),
		zap.Int("lines", merged.Len()),
	)
	writeJSON(w, merged)
}

func (h *BlameHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "missing name", http.StatusBadRequest)
		return
	}

	if err := h.box.Delete(name); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
