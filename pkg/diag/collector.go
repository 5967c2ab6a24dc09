package diag

import (
	"errors"
	"path"
)

// ErrTooManyDiagnostics is reported once a bounded collector exceeds its ceiling
var ErrTooManyDiagnostics = errors.New("too many diagnostics")

// AddResult tells the caller what happened to a diagnostic passed to the collector
type AddResult int

const (
	// Added means the diagnostic was recorded
	Added AddResult = iota
	// Suppressed means a directive on the target or an ancestor dropped it
	Suppressed
	// Aborted means the diagnostic was recorded but the ceiling is now exceeded
	Aborted
)

// Suppressor is implemented by anything diagnostics can be attached to
type Suppressor interface {
	SuppressionDirectives() []string
	SuppressionParent() Suppressor
}

// Collector accumulates diagnostics for a single run. It is not safe for concurrent use.
type Collector struct {
	diags      []Diag
	max        int
	errors     int
	warnings   int
	suppressed int
	aborted    bool
}

// NewCollector creates a collector. max <= 0 means unbounded.
func NewCollector(max int) *Collector {
	return &Collector{max: max}
}

// Add appends a diagnostic
func (c *Collector) Add(d Diag) AddResult {
	c.diags = append(c.diags, d)
	switch d.Kind() {
	case Error:
		c.errors++
	case Warning:
		c.warnings++
	}
	if c.max > 0 && len(c.diags) > c.max {
		c.aborted = true
	}
	if c.aborted {
		return Aborted
	}
	return Added
}

// AddFor appends a diagnostic unless a suppression directive on target, or on any of
// its ancestors, matches id.
func (c *Collector) AddFor(target Suppressor, id string, d Diag) AddResult {
	if id != "" && IsSuppressed(target, id) {
		c.suppressed++
		return Suppressed
	}
	return c.Add(d)
}

// IsSuppressed reports whether any directive attached to target or its ancestors matches id
func IsSuppressed(target Suppressor, id string) bool {
	for s := target; s != nil; s = s.SuppressionParent() {
		for _, pattern := range s.SuppressionDirectives() {
			if MatchDirective(pattern, id) {
				return true
			}
		}
	}
	return false
}

// MatchDirective matches a suppression pattern (glob syntax) against a diagnostic id
func MatchDirective(pattern, id string) bool {
	if pattern == id {
		return true
	}
	ok, err := path.Match(pattern, id)
	return err == nil && ok
}

// Diags returns the collected diagnostics in insertion order
func (c *Collector) Diags() []Diag {
	out := make([]Diag, len(c.diags))
	copy(out, c.diags)
	return out
}

func (c *Collector) Len() int             { return len(c.diags) }
func (c *Collector) ErrorCount() int      { return c.errors }
func (c *Collector) WarningCount() int    { return c.warnings }
func (c *Collector) SuppressedCount() int { return c.suppressed }
func (c *Collector) HasErrors() bool      { return c.errors > 0 }
func (c *Collector) Aborted() bool        { return c.aborted }

// Err returns ErrTooManyDiagnostics once the collector has aborted
func (c *Collector) Err() error {
	if c.aborted {
		return ErrTooManyDiagnostics
	}
	return nil
}
