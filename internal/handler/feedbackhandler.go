package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/serendipitylabs/serendipity/internal/httputil"
	"github.com/serendipitylabs/serendipity/internal/svc"
)

type feedbackRequest struct {
	SessionID string `json:"session_id"`
	Key       string `json:"key"`
	Rating    int    `json:"rating"`
}

// RecordFeedbackHandler upserts one rating. The session counters update
// immediately; the durable history write is best effort.
func RecordFeedbackHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req feedbackRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
		if req.Key == "" {
			httputil.ErrorWithCode(w, http.StatusBadRequest, "key is required")
			return
		}

		sess, err := svcCtx.Sessions.Get(req.SessionID)
		if err != nil {
			httputil.NotFound(w, err.Error())
			return
		}
		if err := sess.RecordFeedback(req.Key, req.Rating); err != nil {
			httputil.Error(w, err)
			return
		}
		if err := svcCtx.History.RecordFeedback(r.Context(), sess.ID, req.Key, req.Rating); err != nil {
			svcCtx.Logger.Warn("feedback history write failed", zap.String("key", req.Key), zap.Error(err))
		}
		httputil.OkJSON(w, sess.Stats())
	}
}
