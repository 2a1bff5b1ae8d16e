package trace

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Mount attaches introspection routes for Sink onto r, under the caller's
// chosen prefix (e.g. r.Mount("/trace", trace.Mount(sink))), letting a
// host process inspect ToolCall trace events live without touching the VM
// directly (SPEC_FULL.md's go-chi wiring for "the trace/introspection
// HTTP endpoint").
func Mount(s *Sink) http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, s.Events())
	})
	r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		ev, ok := s.ByID(id)
		if !ok {
			http.NotFound(w, req)
			return
		}
		writeJSON(w, ev)
	})
	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
