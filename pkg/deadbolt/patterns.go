package deadbolt

import (
	"fmt"
	"regexp"
	"sync"

	"golang.org/x/sync/singleflight"
)

// PatternCache memoizes compiled permission patterns by source string.
// Patterns match whole values. Compilation failures are cached too, so a
// malformed pattern denies on every use without being recompiled.
//
// Reads are lock-free; a first compilation only blocks callers asking for the
// same source.
type PatternCache struct {
	entries sync.Map // source -> *patternEntry
	group   singleflight.Group
	rec     Recorder
}

type patternEntry struct {
	re  *regexp.Regexp
	err error
}

func NewPatternCache(rec Recorder) *PatternCache {
	if rec == nil {
		rec = NoopRecorder{}
	}
	return &PatternCache{rec: rec}
}

// Get returns the compiled pattern for src. The same *regexp.Regexp is
// returned for every call with the same source.
func (c *PatternCache) Get(src string) (*regexp.Regexp, error) {
	if v, ok := c.entries.Load(src); ok {
		e := v.(*patternEntry)
		return e.re, e.err
	}
	v, _, _ := c.group.Do(src, func() (any, error) {
		if v, ok := c.entries.Load(src); ok {
			return v, nil
		}
		e := compilePattern(src)
		c.entries.Store(src, e)
		c.rec.RecordPatternCompile(e.err == nil)
		return e, nil
	})
	e := v.(*patternEntry)
	return e.re, e.err
}

// Len reports how many sources, valid or not, have been cached.
func (c *PatternCache) Len() int {
	n := 0
	c.entries.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}

// compilePattern checks src on its own before anchoring it, so a source such
// as "a)|(b" cannot close the wrapper group and escape the anchors.
func compilePattern(src string) *patternEntry {
	if _, err := regexp.Compile(src); err != nil {
		return &patternEntry{err: fmt.Errorf("%w %q: %v", ErrInvalidPattern, src, err)}
	}
	re, err := regexp.Compile("^(?:" + src + ")$")
	if err != nil {
		return &patternEntry{err: fmt.Errorf("%w %q: %v", ErrInvalidPattern, src, err)}
	}
	return &patternEntry{re: re}
}
