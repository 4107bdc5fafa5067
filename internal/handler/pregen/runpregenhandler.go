package pregen

import (
	"net/http"

	"github.com/ttsblind/pregen/internal/httputil"
	"github.com/ttsblind/pregen/internal/logic/pregen"
	"github.com/ttsblind/pregen/internal/svc"
	"github.com/ttsblind/pregen/internal/types"
)

// Trigger a pre-generation batch. The shared-secret gate sits in front of
// this handler.
func RunPregenHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requested, err := httputil.QueryNonNegativeInt(r, "max", -1)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		pc := svcCtx.Config.Pregen
		req := types.PregenRequest{
			Max:      pregen.Clamp(requested, pc.DefaultMax, pc.MaxLimit),
			Language: httputil.QueryString(r, "language", ""),
		}

		l := pregen.NewRunPregenLogic(r.Context(), svcCtx)
		resp, err := l.RunPregen(&req)
		if err != nil {
			httputil.InternalError(w, "pre-generation failed: "+err.Error())
			return
		}
		httputil.OkJSON(w, resp)
	}
}
