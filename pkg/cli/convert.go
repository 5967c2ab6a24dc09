package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/apicompiler/pkg/compiler"
)

// emitFlags control where normalized configurations are written
type emitFlags struct {
	format string
	outDir string
}

func (f *emitFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.format, "output", "o", formatYAML, "Output format: yaml, json, text or binary")
	cmd.Flags().StringVar(&f.outDir, "out-dir", "", "Write one file per input to this directory instead of stdout")
}

func newConvertCommand(app *App) *cobra.Command {
	var (
		in       inputFlags
		emit     emitFlags
		skipLint bool
	)
	cmd := &cobra.Command{
		Use:   "convert [flags] <input>...",
		Short: "Compile inputs into normalized service configurations",
		Long: "Compile each input into a normalized google.api.Service. An input is a directory or\n" +
			"file of .proto sources, a binary descriptor set (.pb, .desc, .protoset) or an OpenAPI\n" +
			"or Swagger document (.yaml, .yml, .json). Inputs are compiled concurrently.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(emit.format); err != nil {
				return err
			}
			inputs, err := in.load(args)
			if err != nil {
				return err
			}
			for i := range inputs {
				inputs[i].SkipLint = skipLint
			}
			c, stop, err := app.newCompiler(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer stop()
			return app.convert(cmd.Context(), c, inputs, emit)
		},
	}
	in.register(cmd)
	emit.register(cmd)
	cmd.Flags().BoolVar(&skipLint, "skip-lint", false, "Stop after normalization")
	return cmd
}

// convert compiles inputs, prints their diagnostics and writes every configuration
// that compiled without errors
func (a *App) convert(ctx context.Context, c *compiler.Compiler, inputs []compiler.Input, emit emitFlags) error {
	results, err := c.CompileAll(ctx, inputs)
	if err != nil {
		return err
	}
	failed := 0
	for i, res := range results {
		errs, _ := printDiags(a.ErrOut, res.Diags)
		if errs > 0 || res.Service == nil {
			failed++
			continue
		}
		data, err := marshal(res.Service, emit.format)
		if err != nil {
			return fmt.Errorf("%s: %w", res.Name, err)
		}
		if emit.outDir == "" && emit.format == formatYAML && i > 0 {
			data = append([]byte("---\n"), data...)
		}
		if err := writeOutput(a.Out, emit.outDir, res.Name, emit.format, data); err != nil {
			return fmt.Errorf("failed to write %s: %w", res.Name, err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d inputs failed to compile", failed, len(results))
	}
	return nil
}
