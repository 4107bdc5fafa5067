package audio

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ttsblind/pregen/internal/audiostore"
	"github.com/ttsblind/pregen/internal/httputil"
	"github.com/ttsblind/pregen/internal/logging"
	"github.com/ttsblind/pregen/internal/svc"
)

// Stream a stored audio file
func GetAudioHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := httputil.PathVar(r, "id")
		if id == "" {
			httputil.BadRequest(w, "missing audio id")
			return
		}

		f, err := svcCtx.Audio.Open(r.Context(), id)
		if errors.Is(err, audiostore.ErrNotFound) {
			httputil.NotFound(w, "audio file not found")
			return
		}
		if err != nil {
			logging.WithContext(r.Context()).Errorf("Open audio %s: %v", id, err)
			httputil.InternalError(w, "")
			return
		}

		w.Header().Set("Content-Type", f.ContentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(f.Data)))
		w.Header().Set("Cache-Control", "private, max-age=31536000, immutable")
		w.WriteHeader(http.StatusOK)
		w.Write(f.Data)
	}
}
