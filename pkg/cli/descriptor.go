package cli

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/apicompiler/pkg/descgen"
)

func newDescriptorCommand(app *App) *cobra.Command {
	var (
		format string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "descriptor [flags] <service-config>",
		Short: "Regenerate a descriptor set from a normalized service configuration",
		Long: "Rebuild the files, messages, enums and services described by the apis, types and\n" +
			"enums of a normalized service configuration, as written by convert.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			svc, err := readService(args[0])
			if err != nil {
				return err
			}
			set, err := descgen.FromService(svc)
			if err != nil {
				return err
			}
			data, err := marshal(set, format)
			if err != nil {
				return err
			}
			app.Logger.WithFields(logrus.Fields{
				"service": svc.GetName(),
				"files":   len(set.GetFile()),
			}).Debug("Descriptor set regenerated")
			if out == "" {
				_, err = app.Out.Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", formatBinary, "Output format: binary, text, json or yaml")
	cmd.Flags().StringVar(&out, "out", "", "File to write instead of stdout")
	return cmd
}
