package compiler

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// CompileAll compiles independent inputs concurrently, at most Pipeline.Concurrency at a
// time. Each input gets its own model. Results are returned in input order; a nil entry
// marks an input whose run could not be set up, and the first such error is returned
// together with the partial results.
func (c *Compiler) CompileAll(ctx context.Context, inputs []Input) ([]*Result, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no inputs specified")
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(c.cfg.Pipeline.Concurrency)

	results := make([]*Result, len(inputs))
	for i, in := range inputs {
		eg.Go(func() error {
			res, err := c.Compile(ctx, in)
			if err != nil {
				return fmt.Errorf("%s: %w", in.Name, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
