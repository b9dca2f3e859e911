package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"github.com/VintageWander/filey/internal/logging"
	"github.com/VintageWander/filey/internal/metrics"
	"github.com/VintageWander/filey/pkg/models"
	"github.com/VintageWander/filey/pkg/protocol"
)

var (
	rangeRe = regexp.MustCompile(`^bytes=(\d*)-(\d*)$`)

	errUnsatisfiable = errors.New("range not satisfiable")
)

// byteRange covers length bytes starting at start.
type byteRange struct {
	start, length int64
}

// parseRange interprets a single-range Range header against size. ok is false
// when the whole body should be sent: no header, a malformed one, or one
// listing several ranges.
func parseRange(header string, size int64) (r byteRange, ok bool, err error) {
	if header == "" {
		return byteRange{}, false, nil
	}
	m := rangeRe.FindStringSubmatch(header)
	if m == nil || (m[1] == "" && m[2] == "") {
		return byteRange{}, false, nil
	}

	if m[1] == "" {
		n, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return byteRange{}, false, nil
		}
		if n == 0 || size == 0 {
			return byteRange{}, false, errUnsatisfiable
		}
		if n > size {
			n = size
		}
		return byteRange{start: size - n, length: n}, true, nil
	}

	start, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return byteRange{}, false, nil
	}
	if start >= size {
		return byteRange{}, false, errUnsatisfiable
	}
	end := size - 1
	if m[2] != "" {
		e, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil || e < start {
			return byteRange{}, false, nil
		}
		if e < end {
			end = e
		}
	}
	return byteRange{start: start, length: end - start + 1}, true, nil
}

func (s *Server) streamFile(w http.ResponseWriter, r *http.Request, rec models.FileRecord, mode protocol.Mode) {
	ctx := r.Context()
	info, err := s.fs.Stat(ctx, rec.Path)
	if err != nil {
		metrics.RecordContentServe(0, false)
		s.sendError(w, r, err)
		return
	}

	rng, partial, err := parseRange(r.Header.Get("Range"), info.Size)
	if errors.Is(err, errUnsatisfiable) {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", info.Size))
		sendJSON(w, http.StatusRequestedRangeNotSatisfiable, protocol.Envelope[any]{Message: err.Error()})
		return
	}
	if !partial {
		rng = byteRange{start: 0, length: info.Size}
	}

	h := w.Header()
	h.Set("Content-Type", rec.Mime)
	h.Set("Content-Disposition", mime.FormatMediaType(mode.Disposition(), map[string]string{"filename": rec.Name}))
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Length", strconv.FormatInt(rng.length, 10))

	status := http.StatusOK
	if partial {
		h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rng.start, rng.start+rng.length-1, info.Size))
		status = http.StatusPartialContent
	}

	if r.Method == http.MethodHead {
		w.WriteHeader(status)
		return
	}

	body, err := s.fs.Open(ctx, rec.Path, rng.start, rng.length)
	if err != nil {
		h.Del("Content-Disposition")
		h.Del("Content-Range")
		h.Del("Accept-Ranges")
		h.Del("Content-Length")
		metrics.RecordContentServe(0, false)
		s.sendError(w, r, err)
		return
	}
	defer body.Close()

	w.WriteHeader(status)
	n, err := io.Copy(w, body)
	metrics.RecordContentServe(n, err == nil)
	if err != nil {
		logging.FromContext(ctx).Warn("stream interrupted",
			zap.String("id", rec.ID.String()),
			zap.Int64("sent", n),
			zap.Error(err))
	}
}
