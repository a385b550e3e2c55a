// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Timeout bounds a request by d. The handler runs on its own goroutine; when
// d elapses before it has written anything the client gets a JSON 503 and
// later writes are discarded. A panic in the handler is re-raised on the
// serving goroutine so an outer Recoverer still sees it.
//
// Routes that stream document bodies are not mounted behind Timeout; see
// TransferDeadline.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			gw := &guardedWriter{ResponseWriter: w}
			done := make(chan struct{})
			panicked := make(chan any, 1)

			go func() {
				defer func() {
					if p := recover(); p != nil {
						panicked <- p
						return
					}
					close(done)
				}()
				next.ServeHTTP(gw, r.WithContext(ctx))
			}()

			select {
			case <-done:
			case p := <-panicked:
				panic(p)
			case <-ctx.Done():
				if gw.expire() {
					WriteAPIError(w, http.StatusServiceUnavailable, "timeout", "Request timeout", nil)
				}
			}
		})
	}
}

// guardedWriter drops writes once the request has expired.
type guardedWriter struct {
	http.ResponseWriter
	mu      sync.Mutex
	started bool
	expired bool
}

// expire marks the writer dead and reports whether the response was still
// unstarted, in which case the caller owns it.
func (g *guardedWriter) expire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expired = true
	if g.started {
		return false
	}
	g.started = true
	return true
}

func (g *guardedWriter) WriteHeader(code int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started || g.expired {
		return
	}
	g.started = true
	g.ResponseWriter.WriteHeader(code)
}

func (g *guardedWriter) Write(b []byte) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.expired {
		return 0, http.ErrHandlerTimeout
	}
	if !g.started {
		g.started = true
		g.ResponseWriter.WriteHeader(http.StatusOK)
	}
	return g.ResponseWriter.Write(b)
}

// TransferDeadline replaces the server's read and write timeouts for a route
// that moves a whole document (upload or download) with a single deadline d
// from now. Writers that cannot set deadlines, such as test recorders, are
// left alone.
func TransferDeadline(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc := http.NewResponseController(w)
			deadline := time.Now().Add(d)
			if err := rc.SetReadDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
				slog.Debug("extending read deadline failed", "path", r.URL.Path, "error", err)
			}
			if err := rc.SetWriteDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
				slog.Debug("extending write deadline failed", "path", r.URL.Path, "error", err)
			}
			next.ServeHTTP(w, r)
		})
	}
}
