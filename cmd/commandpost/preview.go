package main

import (
	"fmt"

	"github.com/MakeNowJust/heredoc"
	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/commandpost/internal/preview"
)

func newPreviewCmd(a *app) *cobra.Command {
	var (
		req    requestFlags
		binary string
		copyIt bool
	)
	cmd := &cobra.Command{
		Use:   "preview [METHOD] PATH",
		Short: "Show the generated-CLI command matching a request",
		Long: heredoc.Doc(`
			Preview prints the command line a CLI produced by "commandpost
			generate" would accept for the same request. Nothing is sent.
		`),
		Example: heredoc.Doc(`
			$ commandpost preview POST /users/{id}/posts -q draft=true --bearer t -d '{"title":"hi"}'
			cli users posts create --draft "true" --token "t" --body '{"title":"hi"}'
		`),
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			method, target, err := req.methodAndTarget(args)
			if err != nil {
				return err
			}
			in, err := req.input(method, target)
			if err != nil {
				return err
			}
			line := preview.Command(preview.Input{
				Binary:  binary,
				Method:  in.Method,
				Path:    in.Target,
				Params:  in.Params,
				Headers: in.Headers,
				Auth:    in.Auth,
				Body:    in.Body,
			})
			fmt.Fprintln(a.out, line)

			if copyIt {
				if err := clipboard.WriteAll(line); err != nil {
					a.logger.Warn("clipboard unavailable", "error", err)
					fmt.Fprintf(a.errOut, "notice: could not copy to clipboard: %v\n", err)
					return nil
				}
				fmt.Fprintln(a.errOut, "notice: copied to clipboard")
			}
			return nil
		},
	}
	req.register(cmd.Flags())
	cmd.Flags().StringVar(&binary, "binary", preview.DefaultBinary, "Binary name to show")
	cmd.Flags().BoolVar(&copyIt, "copy", false, "Copy the command to the clipboard")
	return cmd
}
