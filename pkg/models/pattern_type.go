package models

import (
	"fmt"
	"strings"
)

// PatternType selects how a pattern constraint interprets its value.
type PatternType int

const (
	// Equality matches a permission whose value equals the pattern exactly.
	Equality PatternType = iota
	// Regex matches a permission whose whole value matches the pattern.
	Regex
	// Custom delegates the decision to the DynamicResourceHandler.
	Custom
)

func (p PatternType) String() string {
	switch p {
	case Equality:
		return "EQUALITY"
	case Regex:
		return "REGEX"
	case Custom:
		return "CUSTOM"
	default:
		return fmt.Sprintf("PatternType(%d)", int(p))
	}
}

// ParsePatternType accepts the names produced by String, case-insensitively.
func ParsePatternType(s string) (PatternType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "EQUALITY", "":
		return Equality, nil
	case "REGEX":
		return Regex, nil
	case "CUSTOM":
		return Custom, nil
	default:
		return 0, fmt.Errorf("unknown pattern type %q", s)
	}
}

func (p PatternType) MarshalText() ([]byte, error) {
	if p < Equality || p > Custom {
		return nil, fmt.Errorf("invalid pattern type %d", int(p))
	}
	return []byte(p.String()), nil
}

func (p *PatternType) UnmarshalText(b []byte) error {
	v, err := ParsePatternType(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
