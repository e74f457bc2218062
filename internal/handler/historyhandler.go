package handler

import (
	"net/http"

	"github.com/serendipitylabs/serendipity/internal/httputil"
	"github.com/serendipitylabs/serendipity/internal/svc"
)

// ListHistoryHandler returns the newest history items, ratings included.
func ListHistoryHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := httputil.QueryInt(r, "limit", 50)
		items, err := svcCtx.History.Recent(r.Context(), limit)
		if err != nil {
			httputil.InternalError(w, err.Error())
			return
		}
		httputil.OkJSON(w, map[string]any{"items": items})
	}
}

// ClearHistoryHandler wipes the durable history.
func ClearHistoryHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svcCtx.History.Clear(r.Context()); err != nil {
			httputil.InternalError(w, err.Error())
			return
		}
		httputil.OkJSON(w, map[string]string{"status": "cleared"})
	}
}
