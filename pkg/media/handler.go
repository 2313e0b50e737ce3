package media

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"lostfound/pkg/common"
	"lostfound/pkg/logger"
)

type blobReader interface {
	Open(ctx context.Context, path string, w io.Writer) error
}

type Handler struct {
	Blobs blobReader
}

func NewMediaHandler(blobs blobReader) *Handler {
	return &Handler{Blobs: blobs}
}

// Get serves /media/{path}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p := mux.Vars(r)["path"]
	if !strings.HasPrefix(p, Namespace) {
		common.WriteMsg(w, "not found", http.StatusNotFound)
		return
	}

	buf := new(bytes.Buffer)
	if err := h.Blobs.Open(r.Context(), p, buf); err != nil {
		logger.Log(r.Context()).Errorf("media/handler: can't open %s: %v", p, err)
		common.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(buf.Bytes()))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if _, err := buf.WriteTo(w); err != nil {
		logger.Log(r.Context()).Errorf("media/handler: failed writing %s: %v", p, err)
	}
}
