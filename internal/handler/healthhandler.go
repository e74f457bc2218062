package handler

import (
	"net/http"
	"time"

	"github.com/serendipitylabs/serendipity/internal/httputil"
	"github.com/serendipitylabs/serendipity/internal/svc"
)

const version = "1.0.0"

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

func HealthCheckHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.OkJSON(w, &healthResponse{
			Status:    "healthy",
			Version:   version,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}
