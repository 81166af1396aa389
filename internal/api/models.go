package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yegors/skylanes/internal/assets"
	"github.com/yegors/skylanes/pkg/logger"
)

// ModelFileHandler serves flight model files to the browser. Only names in
// the loader's configured list are served, straight from its cache.
type ModelFileHandler struct {
	loader *assets.Loader
	logger *logger.Logger
}

// NewModelFileHandler creates a new model file handler
func NewModelFileHandler(loader *assets.Loader, log *logger.Logger) *ModelFileHandler {
	return &ModelFileHandler{
		loader: loader,
		logger: log.Named("model-handler"),
	}
}

// ServeHTTP serves GET /models/{name}
func (h *ModelFileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	asset, err := h.loader.Model(name)
	if err != nil {
		if errors.Is(err, assets.ErrUnknownModel) {
			http.NotFound(w, r)
			return
		}
		h.logger.Error("Failed to read model file",
			logger.String("name", name),
			logger.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// Model files only change on restart
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("ETag", fmt.Sprintf(`"%x-%d"`, asset.LoadedAt.UnixNano(), len(asset.Data)))

	http.ServeContent(w, r, asset.Name, asset.LoadedAt, bytes.NewReader(asset.Data))
}
