package protosrc

import (
	"strings"

	"github.com/platinummonkey/apicompiler/pkg/model"
)

// ScanDirectives extracts every @api: directive from the comments of a proto file,
// including directives in detached comments that no element owns. Malformed
// directives are returned as errors alongside the valid ones.
func ScanDirectives(content string) (model.Directives, []error) {
	var dirs model.Directives
	var errs []error
	add := func(text string, line int) {
		text = strings.TrimSpace(text)
		if !model.IsDirective(text) {
			return
		}
		d, err := model.ExtractDirective(text, line)
		if err != nil {
			errs = append(errs, err)
			return
		}
		dirs = append(dirs, d)
	}

	inBlock := false
	for i, line := range strings.Split(content, "\n") {
		lineNum := i + 1
		line = strings.TrimSpace(line)

		if inBlock {
			end := strings.Index(line, "*/")
			if end < 0 {
				add(strings.TrimPrefix(line, "*"), lineNum)
				continue
			}
			inBlock = false
			add(strings.TrimPrefix(line[:end], "*"), lineNum)
			continue
		}

		if start := strings.Index(line, "/*"); start >= 0 && !strings.Contains(line[:start], "//") {
			rest := line[start+2:]
			if end := strings.Index(rest, "*/"); end >= 0 {
				add(rest[:end], lineNum)
				continue
			}
			inBlock = true
			add(rest, lineNum)
			continue
		}

		if start := strings.Index(line, "//"); start >= 0 {
			add(line[start+2:], lineNum)
		}
	}
	return dirs, errs
}
