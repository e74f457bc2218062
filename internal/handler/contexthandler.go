package handler

import (
	"net/http"
	"sort"

	"go.uber.org/zap"

	"github.com/serendipitylabs/serendipity/internal/history"
	"github.com/serendipitylabs/serendipity/internal/httputil"
	"github.com/serendipitylabs/serendipity/internal/profile"
	"github.com/serendipitylabs/serendipity/internal/svc"
)

type contextResponse struct {
	ProfilePath string             `json:"profile_path"`
	Document    string             `json:"document"`
	Learnings   []profile.Learning `json:"learnings"`
	Sources     []string           `json:"sources"`
	Recent      []history.Item     `json:"recent"`
}

// GetContextHandler exposes what the engine currently knows about the user:
// the raw profile document, its parsed learnings, the enabled context
// sources, and the most recently shown items.
func GetContextHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eff, _ := svcCtx.Settings.Resolve()
		doc := svcCtx.Tracker.Current()

		recent, err := svcCtx.History.Recent(r.Context(), 20)
		if err != nil {
			svcCtx.Logger.Warn("history read failed", zap.Error(err))
		}

		var enabled []string
		for name, cfg := range eff.ContextSources {
			if cfg.Enabled {
				enabled = append(enabled, name)
			}
		}
		sort.Strings(enabled)

		httputil.OkJSON(w, &contextResponse{
			ProfilePath: svc.ProfilePath(eff),
			Document:    doc,
			Learnings:   profile.ParseLearnings(doc),
			Sources:     enabled,
			Recent:      recent,
		})
	}
}
