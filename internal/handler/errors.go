package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/rest/httpx"

	"pricesync/internal/cache"
	"pricesync/internal/logic"
	"pricesync/internal/types"
	"pricesync/pkg/journal"
	"pricesync/pkg/syncjob"
)

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, logic.ErrNoSymbols):
		return http.StatusBadRequest
	case errors.Is(err, logic.ErrNotRecorded), errors.Is(err, cache.ErrNotFound), errors.Is(err, journal.ErrNoRuns):
		return http.StatusNotFound
	case errors.Is(err, syncjob.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	writeStatus(w, r, statusFor(err), err)
}

func badRequest(w http.ResponseWriter, r *http.Request, err error) {
	writeStatus(w, r, http.StatusBadRequest, err)
}

func writeStatus(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		logx.WithContext(r.Context()).Errorf("handler: %s %s failed err=%v", r.Method, r.URL.Path, err)
	}
	httpx.WriteJsonCtx(r.Context(), w, status, types.ErrorResponse{Error: err.Error()})
}
