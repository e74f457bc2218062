package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/serendipitylabs/serendipity/internal/discovery"
	"github.com/serendipitylabs/serendipity/internal/httputil"
	"github.com/serendipitylabs/serendipity/internal/svc"
)

// roundRequest is the wire shape for starting a round. Approaches is a
// comma-joined name list.
type roundRequest struct {
	SessionID  string `json:"session_id"`
	Approaches string `json:"approaches,omitempty"`
	discovery.RoundRequest
}

func (r roundRequest) toRoundRequest() discovery.RoundRequest {
	req := r.RoundRequest
	for _, name := range strings.Split(r.Approaches, ",") {
		if name = strings.TrimSpace(name); name != "" {
			req.Approaches = append(req.Approaches, name)
		}
	}
	return req
}

// RunRoundHandler runs one discovery round and streams its progress events
// over SSE. The stream carries any number of status and tool_use events and
// ends with exactly one complete or error; an aborted request just ends.
func RunRoundHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req roundRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
		sess, err := svcCtx.Sessions.Get(req.SessionID)
		if err != nil {
			httputil.NotFound(w, err.Error())
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			httputil.ErrorWithCode(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for ev := range svcCtx.Orchestrator.RunRound(r.Context(), sess, req.toRoundRequest()) {
			if err := writeSSE(w, ev); err != nil {
				// Client went away; the round context is tied to the request
				// and will unwind on its own.
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w io.Writer, ev discovery.Event) error {
	var payload any
	switch ev.Type {
	case discovery.EventStatus:
		payload = ev.Status
	case discovery.EventToolUse:
		payload = ev.ToolUse
	case discovery.EventComplete:
		payload = ev.Complete
	case discovery.EventError:
		payload = ev.Err
	default:
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}
