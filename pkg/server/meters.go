package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/meterboard/meterboard/pkg/log"
	"github.com/meterboard/meterboard/pkg/storage"
)

func (s *Server) handleListMeters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kinds := r.URL.Query()["kind"]

	ids, err := s.storage.DiscoverMeters(ctx, kinds...)
	if err != nil {
		if errors.Is(err, storage.ErrUnknownKind) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "failed to discover meters", slog.Any("kinds", kinds), slog.Any("error", err))
		writeJSONError(w, "failed to discover meters: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if ids == nil {
		ids = []string{}
	}

	w.Header().Set("Cache-Control", "private, max-age=60")
	writeJSON(w, ids)
}
