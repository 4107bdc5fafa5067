package handler

import (
	"net/http"
	"time"

	"github.com/ttsblind/pregen/internal/httputil"
	"github.com/ttsblind/pregen/internal/svc"
	"github.com/ttsblind/pregen/internal/types"
)

func HealthCheckHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.OkJSON(w, &types.HealthResponse{
			Status:    "healthy",
			Version:   svc.Version,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}
