package handler

import (
	"net/http"

	"github.com/serendipitylabs/serendipity/internal/httputil"
	"github.com/serendipitylabs/serendipity/internal/svc"
)

// CreateSessionHandler starts a new discovery session.
func CreateSessionHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := svcCtx.Sessions.Create()
		httputil.OkJSON(w, map[string]string{"session_id": sess.ID})
	}
}

// GetSessionStatsHandler returns the session's running counters.
func GetSessionStatsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := svcCtx.Sessions.Get(httputil.PathVar(r, "id"))
		if err != nil {
			httputil.NotFound(w, err.Error())
			return
		}
		httputil.OkJSON(w, sess.Stats())
	}
}

// ListSessionBatchesHandler returns the session's batches in round order.
func ListSessionBatchesHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := svcCtx.Sessions.Get(httputil.PathVar(r, "id"))
		if err != nil {
			httputil.NotFound(w, err.Error())
			return
		}
		httputil.OkJSON(w, sess.Batches())
	}
}

// DeleteSessionHandler drops a session. Deleting an unknown session is not
// an error; the end state is the same.
func DeleteSessionHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svcCtx.Sessions.Invalidate(httputil.PathVar(r, "id"))
		httputil.OkJSON(w, map[string]string{"status": "deleted"})
	}
}
