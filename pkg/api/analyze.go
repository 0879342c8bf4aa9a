package api

import (
	"net/http"

	"github.com/platinummonkey/kensaku/pkg/httputil"
)

// analyze answers GET /analyze?text= with the tokens the configured
// tokenizer produces and the representation they would be stored as.
func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("text")
	if text == "" {
		httputil.WriteBadRequest(w, "text is required")
		return
	}

	analysis, err := s.analyzer.Analyze(r.Context(), text)
	if err != nil {
		writeTokenizeError(w, r, "Analyze failed", err)
		return
	}
	httputil.WriteSuccess(w, analysis)
}
