package main

import (
	"fmt"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/commandpost/internal/openapi"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		outDir     string
		module     string
		deprecated bool
		server     int
		force      bool
		externals  bool
	)
	cmd := &cobra.Command{
		Use:   "generate SPEC",
		Short: "Generate a cobra CLI from an OpenAPI document",
		Long: heredoc.Doc(`
			Generate writes a standalone Go module with one subcommand group per
			top-level resource and one subcommand per operation. Run
			"go mod tidy" in the output directory before building it.
		`),
		Example: heredoc.Doc(`
			$ commandpost generate ./openapi.yaml --out ./petcli --module example.com/petcli
		`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := a.specs.GenerateCLI(cmd.Context(), args[0], outDir, module, openapi.GenerateOptions{
				Parse: openapi.ParseOptions{ResolveExternalRefs: externals},
				Generate: openapi.GeneratorOptions{
					IncludeDeprecated:    deprecated,
					PreferredServerIndex: server,
				},
				Write: openapi.WriterOptions{OverwriteExisting: force},
			})
			if err != nil {
				return err
			}
			for _, f := range project.Files {
				fmt.Fprintf(a.out, "wrote %s\n", f.Path)
			}
			for _, w := range project.Warnings {
				fmt.Fprintf(a.errOut, "warning: %s\n", w)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "Output directory (required)")
	cmd.Flags().StringVar(&module, "module", "", "Go module path of the generated CLI (required)")
	cmd.Flags().BoolVar(&deprecated, "include-deprecated", false, "Generate commands for deprecated operations")
	cmd.Flags().IntVar(&server, "server", 0, "Index of the server used as default base URL")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	cmd.Flags().BoolVar(&externals, "external-refs", false, "Resolve external $refs in local files")
	_ = cmd.MarkFlagRequired("out")
	_ = cmd.MarkFlagRequired("module")
	return cmd
}
