package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/commandpost/internal/errdef"
)

func newSpecCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "spec",
		Short: "Inspect OpenAPI documents",
	}
	cmd.PersistentFlags().StringVarP(&format, "output", "o", "json", "Output format: json or yaml")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "parse SOURCE",
			Short: "List the base URL and endpoints of a spec file or URL",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				details, err := a.specs.ParseSpec(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return encode(a.out, format, details)
			},
		},
		&cobra.Command{
			Use:   "validate SOURCE",
			Short: "Check that a spec loads",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ok, err := a.specs.ValidateSpec(cmd.Context(), args[0])
				if !ok {
					return err
				}
				fmt.Fprintf(a.out, "%s: valid\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "auth SOURCE",
			Short: "List the security schemes a spec declares",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				schemes, err := a.specs.DetectAuth(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return encode(a.out, format, schemes)
			},
		},
	)
	return cmd
}

func encode(w io.Writer, format string, v any) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return errdef.Wrap(errdef.CodeEncoding, err, "encode json")
		}
		return nil
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return errdef.Wrap(errdef.CodeEncoding, err, "encode yaml")
		}
		return enc.Close()
	default:
		return errdef.New(errdef.CodeValidation, "unknown output format %q", format)
	}
}
