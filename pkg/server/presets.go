package server

import (
	"net/http"

	"github.com/meterboard/meterboard/pkg/timerange"
	"github.com/meterboard/meterboard/pkg/types"
)

type presetResponse struct {
	Default string            `json:"default"`
	Presets []types.TimeRange `json:"presets"`
}

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	resp := presetResponse{Default: s.defaultPreset}
	for _, label := range timerange.Presets() {
		tr, err := timerange.ResolvePreset(label, now)
		if err != nil {
			// the list and the resolver share one table
			panic(err)
		}
		resp.Presets = append(resp.Presets, tr)
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, resp)
}
