package protosrc

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bufbuild/protocompile"
	"github.com/bufbuild/protocompile/reporter"
	"github.com/sirupsen/logrus"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"

	// google/api annotations are resolvable without shipping their sources
	_ "google.golang.org/genproto/googleapis/api/annotations"

	"github.com/platinummonkey/apicompiler/pkg/diag"
	"github.com/platinummonkey/apicompiler/pkg/model"
)

// SuppressFileOption is the directive option that suppresses diagnostics for a whole
// run, wherever it appears in a file:
//
//	// @api:suppress-file:documentation-*
const SuppressFileOption = "suppress-file"

// Result is a compiled source set. Descriptors is nil when the sources have errors,
// which are reported in Diags.
type Result struct {
	Descriptors *descriptorpb.FileDescriptorSet
	// Directives holds the directives of each source file in line order
	Directives map[string]model.Directives
	Diags      []diag.Diag
}

// Suppressions returns the patterns of every suppress-file directive
func (r *Result) Suppressions() []string {
	paths := make([]string, 0, len(r.Directives))
	for p := range r.Directives {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	var out []string
	for _, p := range paths {
		for _, d := range r.Directives[p] {
			if d.Option == SuppressFileOption {
				out = append(out, d.Value)
			}
		}
	}
	return out
}

// Compiler compiles .proto sources with protocompile
type Compiler struct {
	size    int
	cache   *resultCache
	logger  *logrus.Logger
	observe func(hit bool)
}

// NewCompiler creates a compiler caching up to cacheSize results; zero disables the
// cache. A nil logger is replaced by logrus.New().
func NewCompiler(cacheSize int, logger *logrus.Logger) *Compiler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Compiler{size: cacheSize, cache: newResultCache(cacheSize, DefaultCacheTTL), logger: logger}
}

// WithCacheTTL makes cached results expire after ttl instead of DefaultCacheTTL. It
// drops anything cached so far.
func (c *Compiler) WithCacheTTL(ttl time.Duration) *Compiler {
	if ttl > 0 {
		c.cache = newResultCache(c.size, ttl)
	}
	return c
}

// CacheStats returns hit and miss counts of the result cache
func (c *Compiler) CacheStats() CacheStats { return c.cache.stats() }

// OnCacheLookup registers fn to be called with the outcome of every cache lookup. It
// must be set before the compiler is shared between goroutines.
func (c *Compiler) OnCacheLookup(fn func(hit bool)) *Compiler {
	c.observe = fn
	return c
}

// Compile compiles roots, resolving imports against files, then the standard imports,
// then the files linked into the binary (such as google/api/annotations.proto). The
// descriptor set lists dependencies before the files importing them and keeps source
// info for comments and locations.
func (c *Compiler) Compile(ctx context.Context, files map[string]string, roots ...string) (*Result, error) {
	if len(roots) == 0 {
		return nil, errors.New("no files to compile")
	}
	key := contentKey(files, roots)
	r, ok := c.cache.get(key)
	if c.observe != nil && c.cache != nil {
		c.observe(ok)
	}
	if ok {
		c.logger.WithField("roots", roots).Debug("Using cached compilation")
		return r, nil
	}

	start := time.Now()
	res := &Result{Directives: make(map[string]model.Directives)}
	for _, name := range roots {
		content, ok := files[name]
		if !ok {
			return nil, fmt.Errorf("file %s is not among the sources", name)
		}
		dirs, errs := ScanDirectives(content)
		res.Directives[name] = dirs
		for _, err := range errs {
			res.Diags = append(res.Diags, diag.Warningf(diag.SimpleLocation{File: name}, "%v", err))
		}
	}

	rep := reporter.NewReporter(
		func(err reporter.ErrorWithPos) error {
			res.Diags = append(res.Diags, diag.New(diag.Error, position(err), err.Unwrap().Error()))
			return nil
		},
		func(err reporter.ErrorWithPos) {
			res.Diags = append(res.Diags, diag.New(diag.Warning, position(err), err.Unwrap().Error()))
		},
	)
	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(protocompile.CompositeResolver{
			&protocompile.SourceResolver{Accessor: protocompile.SourceAccessorFromMap(files)},
			registryResolver{},
		}),
		SourceInfoMode: protocompile.SourceInfoStandard,
		Reporter:       rep,
	}

	linked, err := compiler.Compile(ctx, roots...)
	switch {
	case errors.Is(err, reporter.ErrInvalidSource):
		c.logger.WithField("errors", len(res.Diags)).Debug("Sources have errors")
		return res, nil
	case err != nil:
		return nil, fmt.Errorf("failed to compile %v: %w", roots, err)
	}

	fds := make([]protoreflect.FileDescriptor, 0, len(linked))
	for _, f := range linked {
		fds = append(fds, f)
	}
	if res.Descriptors, err = descriptorSet(fds); err != nil {
		return nil, err
	}
	c.cache.add(key, res)

	c.logger.WithFields(logrus.Fields{
		"roots":    len(roots),
		"files":    len(res.Descriptors.GetFile()),
		"duration": time.Since(start),
	}).Debug("Compiled proto sources")
	return res, nil
}

func position(err reporter.ErrorWithPos) diag.Location {
	pos := err.GetPosition()
	return diag.SimpleLocation{File: pos.Filename, Line: pos.Line, Column: pos.Col}
}

// descriptorSet flattens the compiled files and their imports, dependencies first.
// Options come back from protocompile as dynamic messages, so the set is decoded
// again against the linked-in types to carry generated extension values.
func descriptorSet(roots []protoreflect.FileDescriptor) (*descriptorpb.FileDescriptorSet, error) {
	set := &descriptorpb.FileDescriptorSet{}
	seen := make(map[string]bool)
	var visit func(fd protoreflect.FileDescriptor)
	visit = func(fd protoreflect.FileDescriptor) {
		if seen[fd.Path()] {
			return
		}
		seen[fd.Path()] = true
		imports := fd.Imports()
		for i := 0; i < imports.Len(); i++ {
			visit(imports.Get(i).FileDescriptor)
		}
		set.File = append(set.File, protodesc.ToFileDescriptorProto(fd))
	}
	for _, fd := range roots {
		visit(fd)
	}
	raw, err := proto.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("failed to encode descriptor set: %w", err)
	}
	typed := &descriptorpb.FileDescriptorSet{}
	if err := (proto.UnmarshalOptions{Resolver: protoregistry.GlobalTypes}).Unmarshal(raw, typed); err != nil {
		return nil, fmt.Errorf("failed to decode descriptor set: %w", err)
	}
	return typed, nil
}

// registryResolver serves files linked into the binary
type registryResolver struct{}

func (registryResolver) FindFileByPath(path string) (protocompile.SearchResult, error) {
	fd, err := protoregistry.GlobalFiles.FindFileByPath(path)
	if err != nil {
		return protocompile.SearchResult{}, err
	}
	return protocompile.SearchResult{Desc: fd}, nil
}
