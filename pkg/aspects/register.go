package aspects

import (
	"fmt"
	"strings"

	"google.golang.org/genproto/googleapis/api/serviceconfig"

	"github.com/platinummonkey/apicompiler/pkg/confmerge"
	"github.com/platinummonkey/apicompiler/pkg/diag"
	"github.com/platinummonkey/apicompiler/pkg/model"
)

// Default returns new instances of the built-in aspects in registration order
func Default() []model.Aspect {
	return []model.Aspect{
		NewHTTP(),
		NewDocumentation(),
		NewVersioning(),
	}
}

// Register adds the built-in aspects to m
func Register(m *model.Model) error {
	for _, a := range Default() {
		if err := m.RegisterAspect(a); err != nil {
			return fmt.Errorf("failed to register aspect: %w", err)
		}
	}
	return nil
}

// inputConfig merges the model's primary and supplementary configurations the same way
// the Normalized stage does, so aspects can read their sections while merging
func inputConfig(m *model.Model) (*confmerge.Config, *serviceconfig.Service, error) {
	var b *confmerge.Builder
	if primary := m.PrimaryConfig(); primary != nil {
		b = primary.ToBuilder()
	} else {
		b = confmerge.NewBuilder((&serviceconfig.Service{}).ProtoReflect().Descriptor())
	}
	for _, cfg := range m.SupplementaryConfigs() {
		b.Merge(cfg, m.MergePolicy())
	}
	cfg, err := b.Build()
	if err != nil {
		return nil, nil, err
	}
	svc, err := confmerge.Proto(cfg, &serviceconfig.Service{})
	if err != nil {
		return nil, nil, err
	}
	return cfg, svc, nil
}

// selectorRule is one selector-keyed rule read from the configuration
type selectorRule[T any] struct {
	selector string
	rule     T
	loc      diag.Location
	used     bool
}

// readRules pairs the rules of a configuration section ("http", "documentation") with
// the location of their selector
func readRules[T any](cfg *confmerge.Config, section string, rules []T, selector func(T) string) []*selectorRule[T] {
	var parent *confmerge.Config
	if cfg != nil {
		parent = cfg.Message(section)
	}
	out := make([]*selectorRule[T], 0, len(rules))
	for i, r := range rules {
		var node *confmerge.Config
		if parent != nil {
			node = parent.MessageAt("rules", i)
		}
		out = append(out, &selectorRule[T]{
			selector: selector(r),
			rule:     r,
			loc:      cfg.GetLocation(node, "selector", ""),
		})
	}
	return out
}

// findRule returns the last rule whose selector matches fullName and marks it used
func findRule[T any](rules []*selectorRule[T], fullName string) *selectorRule[T] {
	for i := len(rules) - 1; i >= 0; i-- {
		if matchSelector(rules[i].selector, fullName) {
			rules[i].used = true
			return rules[i]
		}
	}
	return nil
}

// matchSelector reports whether a rule selector applies to the full name. A selector
// is a full name, "*", or a prefix ending in ".*".
func matchSelector(selector, fullName string) bool {
	switch {
	case selector == fullName, selector == "*":
		return true
	case strings.HasSuffix(selector, ".*"):
		return strings.HasPrefix(fullName, strings.TrimSuffix(selector, "*"))
	}
	return false
}
