package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/apicompiler/pkg/compiler"
	"github.com/platinummonkey/apicompiler/pkg/diag"
	"github.com/platinummonkey/apicompiler/pkg/linter"
	"github.com/platinummonkey/apicompiler/pkg/linter/rules"
)

func newLintCommand(app *App) *cobra.Command {
	var (
		in            inputFlags
		format        string
		failOnWarning bool
		rulesOnly     bool
	)
	cmd := &cobra.Command{
		Use:   "lint [flags] <input>...",
		Short: "Report problems and style findings without writing configurations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if rulesOnly {
				return lintListRules(app.Out)
			}
			if len(args) == 0 {
				return fmt.Errorf("requires at least 1 input")
			}
			inputs, err := in.load(args)
			if err != nil {
				return err
			}
			c, stop, err := app.newCompiler(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer stop()
			results, err := c.CompileAll(cmd.Context(), inputs)
			if err != nil {
				return err
			}
			return lintReport(app.Out, results, format, failOnWarning)
		},
	}
	in.register(cmd)
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, json, github")
	cmd.Flags().BoolVar(&failOnWarning, "fail-on-warning", false, "Exit with an error on warnings")
	cmd.Flags().BoolVar(&rulesOnly, "rules", false, "List available rules and exit")
	return cmd
}

// lintSummary counts diagnostics over all inputs
type lintSummary struct {
	Inputs   int `json:"inputs"`
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
}

type lintDiag struct {
	Kind     string `json:"kind"`
	Location string `json:"location"`
	Message  string `json:"message"`
}

type lintInput struct {
	Name        string     `json:"name"`
	Diagnostics []lintDiag `json:"diagnostics"`
}

func lintReport(w io.Writer, results []*compiler.Result, format string, failOnWarning bool) error {
	summary := lintSummary{Inputs: len(results)}
	switch format {
	case "json":
		out := struct {
			Results []lintInput  `json:"results"`
			Summary *lintSummary `json:"summary"`
		}{Summary: &summary}
		for _, res := range results {
			li := lintInput{Name: res.Name, Diagnostics: make([]lintDiag, 0, len(res.Diags))}
			for _, d := range res.Diags {
				count(&summary, d)
				li.Diagnostics = append(li.Diagnostics, lintDiag{
					Kind:     strings.ToLower(d.Kind().String()),
					Location: d.Location().DisplayString(),
					Message:  d.Message(),
				})
			}
			out.Results = append(out.Results, li)
		}
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(out); err != nil {
			return err
		}
	case "github":
		// ::error file={name},line={line},col={col}::{message}
		for _, res := range results {
			for _, d := range res.Diags {
				count(&summary, d)
				level := "warning"
				if d.Kind() == diag.Error {
					level = "error"
				}
				fmt.Fprintf(w, "::%s %s::%s\n", level, githubLocation(d.Location()), d.Message())
			}
		}
	case "text":
		for _, res := range results {
			errs, warns := printDiags(w, res.Diags)
			summary.Errors += errs
			summary.Warnings += warns
		}
		fmt.Fprintf(w, "\nSummary:\n")
		fmt.Fprintf(w, "  Inputs:   %d\n", summary.Inputs)
		fmt.Fprintf(w, "  Errors:   %d\n", summary.Errors)
		fmt.Fprintf(w, "  Warnings: %d\n", summary.Warnings)
	default:
		return fmt.Errorf("unknown format %q (must be text, json or github)", format)
	}

	if summary.Errors > 0 {
		return fmt.Errorf("lint failed with %d errors", summary.Errors)
	}
	if failOnWarning && summary.Warnings > 0 {
		return fmt.Errorf("lint failed with %d warnings", summary.Warnings)
	}
	return nil
}

func count(s *lintSummary, d diag.Diag) {
	if d.Kind() == diag.Error {
		s.Errors++
	} else {
		s.Warnings++
	}
}

func githubLocation(loc diag.Location) string {
	sl, ok := loc.(diag.SimpleLocation)
	if !ok || sl.File == "" {
		return ""
	}
	parts := []string{"file=" + sl.File}
	if sl.Line > 0 {
		parts = append(parts, fmt.Sprintf("line=%d", sl.Line))
	}
	if sl.Column > 0 {
		parts = append(parts, fmt.Sprintf("col=%d", sl.Column))
	}
	return strings.Join(parts, ",")
}

func lintListRules(w io.Writer) error {
	engine := linter.NewLintEngine(nil)
	rules.RegisterDefaultRules(engine.Registry())
	allRules := engine.Registry().GetAllRules()

	fmt.Fprintf(w, "Available lint rules (%d):\n\n", len(allRules))
	for _, cat := range []linter.Category{
		linter.CategoryNaming,
		linter.CategoryDocumentation,
		linter.CategoryStructure,
	} {
		catRules := engine.Registry().GetRulesByCategory(cat)
		if len(catRules) == 0 {
			continue
		}
		name := string(cat)
		fmt.Fprintf(w, "%s rules:\n", strings.ToUpper(name[:1])+name[1:])
		for _, rule := range catRules {
			fmt.Fprintf(w, "  - %-28s [%s]\n    %s\n", linter.RuleID(rule), rule.Severity(), rule.Description())
		}
		fmt.Fprintln(w)
	}
	return nil
}
