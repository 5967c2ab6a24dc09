package aspects

import (
	"fmt"
	"regexp"
	"strings"
)

var fieldPathPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// ParsePathTemplate returns the variables of an http path template in order of
// appearance: "/v1/{name=shelves/*}/books/{book.id}:publish" gives name and book.id.
// Only variable syntax is checked; literal segments are taken as written.
func ParsePathTemplate(path string) ([]string, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("path template %q must start with /", path)
	}
	var vars []string
	seen := make(map[string]bool)
	for i := 0; i < len(path); i++ {
		switch path[i] {
		case '}':
			return nil, fmt.Errorf("path template %q has an unmatched }", path)
		case '{':
			end := strings.IndexByte(path[i:], '}')
			if end < 0 {
				return nil, fmt.Errorf("path template %q has an unmatched {", path)
			}
			inner := path[i+1 : i+end]
			if strings.ContainsRune(inner, '{') {
				return nil, fmt.Errorf("path template %q has nested variables", path)
			}
			name, _, _ := strings.Cut(inner, "=")
			name = strings.TrimSpace(name)
			if !fieldPathPattern.MatchString(name) {
				return nil, fmt.Errorf("path template %q has invalid variable %q", path, name)
			}
			if seen[name] {
				return nil, fmt.Errorf("path template %q binds %s twice", path, name)
			}
			seen[name] = true
			vars = append(vars, name)
			i += end
		}
	}
	return vars, nil
}
