package handler

import (
	"net/http"

	"github.com/serendipitylabs/serendipity/internal/httputil"
	"github.com/serendipitylabs/serendipity/internal/settings"
	"github.com/serendipitylabs/serendipity/internal/svc"
)

type settingsResponse struct {
	Settings *settings.Effective `json:"settings"`
	Warnings []string            `json:"warnings,omitempty"`
}

// GetSettingsHandler returns the effective settings snapshot.
func GetSettingsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eff, warnings := svcCtx.Settings.Resolve()
		httputil.OkJSON(w, &settingsResponse{Settings: eff, Warnings: warnings})
	}
}

// UpdateSettingsHandler deep-merges a partial document into the persisted
// settings. Only the leaves present in the request change.
func UpdateSettingsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var partial map[string]any
		if err := httputil.Parse(r, &partial); err != nil {
			httputil.Error(w, err)
			return
		}
		if len(partial) == 0 {
			httputil.ErrorWithCode(w, http.StatusBadRequest, "empty settings update")
			return
		}

		eff, err := svcCtx.Settings.Update(partial)
		if err != nil {
			httputil.InternalError(w, err.Error())
			return
		}
		svcCtx.ReloadSources()
		httputil.OkJSON(w, &settingsResponse{Settings: eff})
	}
}

// ResetSettingsHandler discards the persisted document and returns to the
// built-in defaults.
func ResetSettingsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eff, err := svcCtx.Settings.Reset()
		if err != nil {
			httputil.InternalError(w, err.Error())
			return
		}
		svcCtx.ReloadSources()
		httputil.OkJSON(w, &settingsResponse{Settings: eff})
	}
}
