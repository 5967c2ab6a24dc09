package model

import (
	"errors"
	"strings"
)

// DirectivePrefix starts a directive inside a comment: // @api:option:value
const DirectivePrefix = "@api:"

// SuppressOption is the directive option that suppresses diagnostics by id pattern:
//
//	// @api:suppress:http-*
const SuppressOption = "suppress"

// Directive is one @api:option:value comment directive
type Directive struct {
	Option string
	Value  string
	Line   int
}

// Directives is the ordered list of directives attached to an element
type Directives []Directive

// Get returns the value of the first directive with the given option
func (d Directives) Get(option string) (string, bool) {
	for _, dir := range d {
		if dir.Option == option {
			return dir.Value, true
		}
	}
	return "", false
}

// Suppressions returns the patterns of every suppress directive
func (d Directives) Suppressions() []string {
	var out []string
	for _, dir := range d {
		if dir.Option == SuppressOption {
			out = append(out, dir.Value)
		}
	}
	return out
}

// IsDirective checks if comment text is an @api directive
func IsDirective(text string) bool {
	return strings.HasPrefix(text, DirectivePrefix)
}

// ExtractDirective parses comment text of the form @api:option:value
func ExtractDirective(text string, line int) (Directive, error) {
	if !IsDirective(text) {
		return Directive{}, errors.New("not an api directive")
	}
	parts := strings.SplitN(strings.TrimPrefix(text, DirectivePrefix), ":", 2)
	if len(parts) != 2 {
		return Directive{}, errors.New("invalid api directive format, expected @api:option:value")
	}
	return Directive{
		Option: strings.TrimSpace(parts[0]),
		Value:  strings.TrimSpace(parts[1]),
		Line:   line,
	}, nil
}

// ParseComment splits a comment into documentation text and directives. Lines that are
// malformed directives are dropped and returned as errors.
func ParseComment(comment string) (string, Directives, []error) {
	var (
		text []string
		dirs Directives
		errs []error
	)
	for i, line := range strings.Split(comment, "\n") {
		trimmed := strings.TrimSpace(line)
		if IsDirective(trimmed) {
			d, err := ExtractDirective(trimmed, i+1)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			dirs = append(dirs, d)
			continue
		}
		text = append(text, line)
	}
	return strings.TrimSpace(strings.Join(text, "\n")), dirs, errs
}
