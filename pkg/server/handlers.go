package server

import (
	"net/http"
	"net/url"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"

	dcerrors "github.com/matzehuels/dotcharts/pkg/errors"
	"github.com/matzehuels/dotcharts/pkg/render"
)

// ErrorCodeHeader carries the error code of a failed render.
const ErrorCodeHeader = "X-Error-Code"

// RequestFromQuery builds a render request from URL query parameters.
// Repeated parameters use their first value.
func RequestFromQuery(q url.Values) render.Request {
	return render.Request{
		Graph:  q.Get("graph"),
		Format: q.Get("format"),
		Engine: q.Get("engine"),
		Width:  q.Get("width"),
		Height: q.Get("height"),
	}
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	req := RequestFromQuery(r.URL.Query())
	if req.Graph == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	res, err := s.renderer.Render(r.Context(), req)
	if err != nil {
		if dcerrors.IsClientError(err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.logger.Error("render failed",
			"err", err,
			"code", dcerrors.GetCode(err),
			"engine", req.Engine,
			"format", req.Format,
			"request_id", middleware.GetReqID(r.Context()),
			"stack", string(debug.Stack()))
		writeError(w, err)
		return
	}

	if res.Disposition != "" {
		w.Header().Set("Content-Disposition", res.Disposition)
	}
	w.Header().Set("Content-Type", res.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Body)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// writeError answers 500 with the error message as a plain text body.
func writeError(w http.ResponseWriter, err error) {
	code := dcerrors.GetCode(err)
	if code == "" {
		code = dcerrors.ErrCodeInternal
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set(ErrorCodeHeader, string(code))
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(dcerrors.UserMessage(err)))
}
