package mw

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/TwigBush/deadbolt-go/internal/httpx"
	"github.com/TwigBush/deadbolt-go/internal/trace"
	"github.com/TwigBush/deadbolt-go/pkg/deadbolt"
)

type LogOpts struct {
	Logger        *slog.Logger
	SkipPaths     []string
	RedactHeaders []string
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions
}

// Logger logs one line per request, including whether a constraint
// authorised it. Denied and failed requests get a second line with headers.
func Logger(opts LogOpts) func(http.Handler) http.Handler {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	skip := make(map[string]struct{}, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skip[p] = struct{}{}
	}
	redact := map[string]struct{}{"authorization": {}, "cookie": {}}
	for _, h := range opts.RedactHeaders {
		redact[strings.ToLower(h)] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok || isPreflight(r) {
				next.ServeHTTP(w, r)
				return
			}

			r = deadbolt.Bind(r)
			start := time.Now()
			rec := httpx.NewRecorder(w)
			next.ServeHTTP(rec, r)
			dur := time.Since(start)

			log.Info("req",
				"trace", trace.From(r.Context()),
				"m", r.Method,
				"path", r.URL.Path,
				"status", rec.Status,
				"authorised", deadbolt.IsAuthorised(r.Context()),
				"ms", dur.Milliseconds(),
				"bytes", rec.Bytes,
			)

			if rec.Status >= 400 {
				h := map[string]string{}
				for k, vv := range r.Header {
					if len(vv) == 0 {
						continue
					}
					vl := vv[0]
					if _, ok := redact[strings.ToLower(k)]; ok {
						vl = "***redacted***"
					}
					h[k] = vl
				}
				log.Warn("req_detail",
					"trace", trace.From(r.Context()),
					"m", r.Method, "path", r.URL.Path,
					"status", rec.Status, "ms", dur.Milliseconds(),
					"headers", h,
				)
			}
		})
	}
}
