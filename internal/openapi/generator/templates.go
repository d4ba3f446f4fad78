package generator

import (
	"strconv"
	"text/template"

	"github.com/MakeNowJust/heredoc"
)

// cobraVersion is the cobra release the generated go.mod requires.
const cobraVersion = "v1.10.2"

var funcs = template.FuncMap{
	"quote": strconv.Quote,
}

var (
	goModTemplate = template.Must(template.New("go.mod").Funcs(funcs).Parse(heredoc.Doc(`
		module {{.Module}}

		go 1.22

		require github.com/spf13/cobra {{.CobraVersion}}
	`)))

	mainTemplate = template.Must(template.New("main.go").Funcs(funcs).Parse(heredoc.Doc(`
		package main

		import "{{.Module}}/cmd"

		func main() {
			cmd.Execute()
		}
	`)))

	readmeTemplate = template.Must(template.New("README.md").Funcs(funcs).Parse(heredoc.Doc(`
		# {{.Binary}}

		Command line client for {{.Title}}{{if .Version}} {{.Version}}{{end}}.

		    go mod tidy
		    go build -o {{.Binary}} .
		    ./{{.Binary}} --help

		Every command accepts --base-url (default {{if .BaseURL}}{{.BaseURL}}{{else}}unset{{end}}),
		--token, --user, --header key=value, --body and --timeout.
		{{- if .Warnings}}

		Generation notes:
		{{range .Warnings}}
		- {{.}}
		{{- end}}
		{{- end}}
	`)))

	rootTemplate = template.Must(template.New("root.go").Funcs(funcs).Parse(heredoc.Doc(`
		package cmd

		import (
			"fmt"
			"io"
			"net/http"
			"net/url"
			"os"
			"strings"
			"time"

			"github.com/spf13/cobra"
		)

		var (
			baseURL string
			token   string
			user    string
			headers []string
			body    string
			timeout time.Duration
		)

		var rootCmd = &cobra.Command{
			Use:          {{quote .Binary}},
			Short:        {{quote .Short}},
			SilenceUsage: true,
		}

		// Execute runs the root command and exits non-zero on failure.
		func Execute() {
			if err := rootCmd.Execute(); err != nil {
				os.Exit(1)
			}
		}

		func init() {
			flags := rootCmd.PersistentFlags()
			flags.StringVar(&baseURL, "base-url", {{quote .BaseURL}}, "API base URL")
			flags.StringVar(&token, "token", "", "bearer token")
			flags.StringVar(&user, "user", "", "basic auth credentials as user:password")
			flags.StringArrayVar(&headers, "header", nil, "extra header as key=value (repeatable)")
			flags.StringVar(&body, "body", "", "raw JSON request body")
			flags.DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
		}

		type param struct {
			in    string
			name  string
			value *string
		}

		func send(cmd *cobra.Command, method, path string, params []param) error {
			query := url.Values{}
			extra := http.Header{}
			for _, p := range params {
				v := *p.value
				switch p.in {
				case "path":
					path = strings.ReplaceAll(path, "{"+p.name+"}", url.PathEscape(v))
				case "query":
					if v != "" {
						query.Set(p.name, v)
					}
				case "header":
					if v != "" {
						extra.Set(p.name, v)
					}
				}
			}

			target := strings.TrimRight(baseURL, "/") + path
			if len(query) > 0 {
				target += "?" + query.Encode()
			}

			var reader io.Reader
			if body != "" {
				reader = strings.NewReader(body)
			}
			req, err := http.NewRequestWithContext(cmd.Context(), method, target, reader)
			if err != nil {
				return err
			}
			for k, vs := range extra {
				req.Header[k] = vs
			}
			if body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			if token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
			if user != "" {
				name, pass, _ := strings.Cut(user, ":")
				req.SetBasicAuth(name, pass)
			}
			for _, h := range headers {
				k, v, ok := strings.Cut(h, "=")
				if !ok {
					return fmt.Errorf("invalid header %q, expected key=value", h)
				}
				req.Header.Set(strings.TrimSpace(k), strings.TrimSpace(v))
			}

			client := &http.Client{Timeout: timeout}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			fmt.Fprintln(cmd.ErrOrStderr(), resp.Status)
			if _, err := io.Copy(cmd.OutOrStdout(), resp.Body); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout())
			if resp.StatusCode >= 400 {
				return fmt.Errorf("request failed: %s", resp.Status)
			}
			return nil
		}
	`)))

	commandsTemplate = template.Must(template.New("commands.go").Funcs(funcs).Parse(heredoc.Doc(`
		package cmd

		import "github.com/spf13/cobra"
		{{range .Nodes}}{{if .Declare}}
		var {{.Var}} = &cobra.Command{
			Use:   {{quote .Use}},
			Short: {{quote .Short}},
		{{- if .Long}}
			Long: {{quote .Long}},
		{{- end}}
		{{- if .Example}}
			Example: {{quote .Example}},
		{{- end}}
		}
		{{end}}{{end}}
		{{- range .Nodes}}{{$n := .}}
		func init() {
		{{- if .Declare}}
			{{.Parent}}.AddCommand({{.Var}})
		{{- end}}
		{{- with .Op}}
			params := []param{
		{{- range .Flags}}
				{in: {{quote .Location}}, name: {{quote .Name}}, value: {{$n.Var}}.Flags().String({{quote .Flag}}, {{quote .Default}}, {{quote .Help}})},
		{{- end}}
			}
		{{- range .Flags}}{{if .Required}}
			_ = {{$n.Var}}.MarkFlagRequired({{quote .Flag}})
		{{- end}}{{end}}
			{{$n.Var}}.RunE = func(cmd *cobra.Command, _ []string) error {
				return send(cmd, {{quote .Method}}, {{quote .Path}}, params)
			}
		{{- end}}
		}
		{{end}}
	`)))
)
