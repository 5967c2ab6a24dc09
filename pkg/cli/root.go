package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/apicompiler/pkg/compiler"
	"github.com/platinummonkey/apicompiler/pkg/config"
	"github.com/platinummonkey/apicompiler/pkg/observability"
)

// App is the state shared by every command once flags are parsed
type App struct {
	Out    io.Writer
	ErrOut io.Writer
	Config *config.Config
	Logger *logrus.Logger

	configPath string
	logLevel   string
	noColor    bool
}

// NewRootCommand creates the root command writing results to out and diagnostics and
// logs to errOut
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	app := &App{Out: out, ErrOut: errOut}
	cmd := &cobra.Command{
		Use:   "apicompiler",
		Short: "Compile API definitions into google.api.Service configurations",
		Long: "apicompiler turns .proto sources, descriptor sets and OpenAPI or Swagger documents,\n" +
			"together with YAML service configurations, into one normalized google.api.Service\n" +
			"and reports every problem it finds along the way.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup()
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.PersistentFlags().StringVar(&app.configPath, "config", "", "Path to the tool configuration file")
	cmd.PersistentFlags().StringVar(&app.logLevel, "log-level", "", "Log level (overrides the configuration)")
	cmd.PersistentFlags().BoolVar(&app.noColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(
		newConvertCommand(app),
		newLintCommand(app),
		newDescriptorCommand(app),
		newWatchCommand(app),
	)
	return cmd
}

func (a *App) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a.Config = cfg
	a.Logger = cfg.NewLogger()
	a.Logger.SetOutput(a.ErrOut)

	if _, set := os.LookupEnv("NO_COLOR"); set || a.noColor {
		color.NoColor = true
	}
	return nil
}

// newCompiler builds a compiler from the loaded configuration. The returned function
// flushes and stops tracing.
func (a *App) newCompiler(ctx context.Context, metrics *observability.PipelineMetrics) (*compiler.Compiler, func(), error) {
	tp, err := observability.InitTracing(ctx, a.Config.OTel(), a.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	stop := func() {
		_ = observability.ShutdownTracing(context.Background(), tp, a.Logger)
	}
	c, err := compiler.New(a.Config,
		compiler.WithLogger(a.Logger),
		compiler.WithMetrics(metrics),
		compiler.WithTracer(observability.Tracer()),
	)
	if err != nil {
		stop()
		return nil, nil, err
	}
	return c, stop, nil
}

// Execute runs the root command with the process arguments and returns the exit code
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCommand(os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		color.New(color.FgRed, color.Bold).Fprint(os.Stderr, "Error: ")
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
