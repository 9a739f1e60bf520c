package authz

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"github.com/hashicorp/go-bexpr"
	lru "github.com/hashicorp/golang-lru/v2"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

const defaultCacheSize = 128

// Rules answers dynamic checks with named go-bexpr expressions and custom
// permission checks with the permission value itself as the expression.
// Compiled evaluators are kept in a bounded cache.
type Rules struct {
	exprs map[string]string
	cache *lru.Cache[string, *bexpr.Evaluator]
}

type rulesFile struct {
	Rules map[string]string `yaml:"rules"`
}

// LoadRules reads a rules file; an empty path loads the built-in rules.
func LoadRules(path string, cacheSize int) (*Rules, error) {
	b := defaultRules
	if path != "" {
		var err error
		if b, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read rules: %w", err)
		}
	}
	var f rulesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	return NewRules(f.Rules, cacheSize)
}

// NewRules compiles every expression up front so a typo fails at startup.
func NewRules(exprs map[string]string, cacheSize int) (*Rules, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[string, *bexpr.Evaluator](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("rules cache: %w", err)
	}
	r := &Rules{exprs: make(map[string]string, len(exprs)), cache: cache}
	for name, expr := range exprs {
		if _, err := r.evaluator(expr); err != nil {
			return nil, fmt.Errorf("rule %q: %w", name, err)
		}
		r.exprs[name] = expr
	}
	return r, nil
}

func (r *Rules) Check(_ context.Context, req Request) (Decision, error) {
	expr := req.Relation
	if req.Kind() != KindPermission {
		var ok bool
		if expr, ok = r.exprs[req.Relation]; !ok {
			return Decision{Allowed: false, Reason: "no_rule"}, nil
		}
	}
	ev, err := r.evaluator(expr)
	if err != nil {
		return Decision{}, err
	}
	ok, err := ev.Evaluate(req.Context)
	if err != nil {
		return Decision{}, fmt.Errorf("evaluate %q: %w", expr, err)
	}
	if !ok {
		return Decision{Allowed: false, Reason: "rule_denied"}, nil
	}
	return Decision{Allowed: true}, nil
}

func (r *Rules) evaluator(expr string) (*bexpr.Evaluator, error) {
	if ev, ok := r.cache.Get(expr); ok {
		return ev, nil
	}
	ev, err := bexpr.CreateEvaluator(expr)
	if err != nil {
		return nil, fmt.Errorf("compile expression %q: %w", expr, err)
	}
	r.cache.Add(expr, ev)
	return ev, nil
}
