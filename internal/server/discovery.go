package server

import (
	"encoding/json"
	"net/http"

	"github.com/TwigBush/deadbolt-go/pkg/models"
)

// discoveryResp describes what the running deadbolt instance can evaluate.
type discoveryResp struct {
	Self                        string   `json:"self"`
	PatternTypes                []string `json:"pattern_types"`
	Composites                  []string `json:"composites,omitempty"`
	HandlerKeys                 []string `json:"handler_keys,omitempty"`
	ConstraintMode              string   `json:"constraint_mode"`
	Blocking                    bool     `json:"blocking"`
	BlockingTimeoutMS           int64    `json:"blocking_timeout_ms,omitempty"`
	UnrestrictedBeforeAuthCheck bool     `json:"unrestricted_before_auth_check"`
	BearerTokens                bool     `json:"bearer_tokens"`
}

// DiscoveryHandler serves the constraint capabilities of app.
func DiscoveryHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		cfg := app.Interceptor.Config()
		resp := &discoveryResp{
			Self:                        buildAbsoluteURL(req),
			PatternTypes:                []string{models.Equality.String(), models.Regex.String(), models.Custom.String()},
			Composites:                  app.Composites.Names(),
			HandlerKeys:                 app.Handlers.Keys(),
			ConstraintMode:              string(cfg.Mode),
			Blocking:                    cfg.Blocking,
			UnrestrictedBeforeAuthCheck: cfg.UnrestrictedBeforeAuthCheck,
			BearerTokens:                app.Tokens != nil,
		}
		if cfg.Blocking {
			resp.BlockingTimeoutMS = cfg.BlockingTimeout.Milliseconds()
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			http.Error(w, "failed to encode response", http.StatusInternalServerError)
		}
	}
}

// buildAbsoluteURL constructs a full URL using X-Forwarded-Proto or TLS detection.
func buildAbsoluteURL(r *http.Request) string {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		if r.TLS != nil {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}

	host := r.Host
	if host == "" {
		host = r.URL.Host
	}
	return scheme + "://" + host + r.URL.RequestURI()
}
