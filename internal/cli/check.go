package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TwigBush/deadbolt-go/internal/config"
	"github.com/TwigBush/deadbolt-go/internal/server"
	"github.com/TwigBush/deadbolt-go/pkg/deadbolt"
	"github.com/TwigBush/deadbolt-go/pkg/models"
)

type checkResult struct {
	User    string   `json:"user" yaml:"user"`
	Check   string   `json:"check" yaml:"check"`
	Args    []string `json:"args,omitempty" yaml:"args,omitempty"`
	Allowed bool     `json:"allowed" yaml:"allowed"`
}

type checkFlags struct {
	user        string
	token       string
	handlerKey  string
	patternType string
	meta        string
	invert      bool
}

func cmdCheck() *cobra.Command {
	var f checkFlags

	c := &cobra.Command{
		Use:   "check <restrict|pattern|dynamic|present|not-present|rbp|composite> [args...]",
		Short: "Evaluate a constraint for a demo user without starting the server",
		Long: `Evaluate a constraint for a demo user without starting the server.

  restrict foo,bar hurdy     groups are comma separated; any group may match
  pattern killer.undead.zombie --type equality|regex|custom [--invert] [--meta m]
  dynamic niceName [--meta m]
  present | not-present
  rbp admin
  composite curatorOrFoo`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			res, err := runCheck(cmd.Context(), cfg, f, args[0], args[1:])
			if err != nil {
				return err
			}
			return printOut(cmd.OutOrStdout(), res)
		},
	}
	c.Flags().StringVarP(&f.user, "user", "u", "", "demo user identifier (empty checks an anonymous request)")
	c.Flags().StringVar(&f.token, "token", "", "bearer token presented instead of the user cookie")
	c.Flags().StringVar(&f.handlerKey, "handler", "", "handler key (default handler when empty)")
	c.Flags().StringVar(&f.patternType, "type", "equality", "pattern type: equality|regex|custom")
	c.Flags().StringVar(&f.meta, "meta", "", "meta passed to pattern and dynamic checks")
	c.Flags().BoolVar(&f.invert, "invert", false, "invert a pattern check")
	return c
}

func runCheck(ctx context.Context, cfg *config.Config, f checkFlags, kind string, args []string) (*checkResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := server.NewApp(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	if err != nil {
		return nil, err
	}
	defer app.Close()

	h := app.Handlers.Get()
	if f.handlerKey != "" {
		if h, err = app.Handlers.GetKey(f.handlerKey); err != nil {
			return nil, err
		}
	}

	c, err := checkConstraint(app, f, kind, args)
	if err != nil {
		return nil, err
	}

	r := httptest.NewRequestWithContext(ctx, http.MethodGet, "/check", nil)
	if f.user != "" {
		r.AddCookie(&http.Cookie{Name: server.UserCookie, Value: f.user})
	}
	if f.token != "" {
		r.Header.Set("Authorization", "Bearer "+f.token)
	}
	ctx = deadbolt.WithRequest(ctx, r)

	o := deadbolt.BoolOutcome()
	o.Label = kind
	if kind == "not-present" {
		o = o.Inverted()
	}
	allowed, err := deadbolt.Evaluate(ctx, app.Logic, h, "", c, o)
	if err != nil {
		return nil, err
	}
	return &checkResult{User: f.user, Check: kind, Args: args, Allowed: allowed}, nil
}

func checkConstraint(app *server.App, f checkFlags, kind string, args []string) (deadbolt.Constraint, error) {
	l := app.Logic
	one := func() (string, error) {
		if len(args) != 1 {
			return "", fmt.Errorf("%s takes exactly one argument", kind)
		}
		return args[0], nil
	}

	switch kind {
	case "present", "not-present":
		if len(args) != 0 {
			return nil, fmt.Errorf("%s takes no arguments", kind)
		}
		return l.SubjectPresent(), nil
	case "restrict":
		if len(args) == 0 {
			return nil, fmt.Errorf("restrict needs at least one role group")
		}
		groups := make([][]string, 0, len(args))
		for _, a := range args {
			groups = append(groups, strings.Split(a, ","))
		}
		rg := models.ParseRoleGroups(groups)
		return l.Restrict(func() models.RoleGroups { return rg }), nil
	case "pattern":
		v, err := one()
		if err != nil {
			return nil, err
		}
		pt, err := models.ParsePatternType(f.patternType)
		if err != nil {
			return nil, err
		}
		return l.Pattern(v, pt, f.meta, f.invert), nil
	case "dynamic":
		v, err := one()
		if err != nil {
			return nil, err
		}
		return l.Dynamic(v, f.meta), nil
	case "rbp":
		v, err := one()
		if err != nil {
			return nil, err
		}
		return l.RoleBasedPermissions(v), nil
	case "composite":
		v, err := one()
		if err != nil {
			return nil, err
		}
		return app.Composites.Lookup(v)
	default:
		return nil, fmt.Errorf("unknown check %q", kind)
	}
}
