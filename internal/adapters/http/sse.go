package httpadapter

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
)

// writeSSE streams the query response as a single event followed by the
// [DONE] sentinel. Degraded responses are streamed too; the envelope carries
// the error.
func writeSSE(w http.ResponseWriter, resp domain.QueryResponse) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming is not supported by response writer")
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	flusher.Flush()

	if _, err := io.WriteString(w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func (rt *Router) logStreamError(r *http.Request, err error) {
	slog.Warn("query_stream_failed",
		"request_id", requestIDFromContext(r.Context()),
		"error", err,
	)
}
