package di

import (
	"fmt"

	"github.com/TwigBush/deadbolt-go/internal/authz"
	"github.com/TwigBush/deadbolt-go/internal/config"
)

// ProvideAuthorizer builds the backend selected by authz.provider.
func ProvideAuthorizer(cfg config.Authz) (authz.Authorizer, error) {
	switch cfg.Provider {
	case "fga":
		a, err := authz.NewOpenFGA(authz.OpenFGAConfig{
			APIURL:   cfg.FGA.APIURL,
			StoreID:  cfg.FGA.StoreID,
			APIToken: cfg.FGA.APIToken,
			ModelID:  cfg.FGA.ModelID,
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	case "mock":
		return &authz.Mock{AlwaysAllow: true}, nil
	case "rules", "":
		return authz.LoadRules(cfg.RulesFile, cfg.CacheSize)
	default:
		return nil, fmt.Errorf("unknown authz provider %q", cfg.Provider)
	}
}
