package main

import (
	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "commandpost",
		Short: "Send, record and replay HTTP requests from the terminal",
		Long: heredoc.Doc(`
			CommandPost builds HTTP requests from parameters, headers, auth and
			body flags, sends them and keeps a local history.

			Collections and environments live in a SQLite database under the
			config directory (COMMANDPOST_CONFIG_DIR). OpenAPI documents can be
			inspected or turned into a standalone cobra CLI.
		`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	pf := root.PersistentFlags()
	pf.Int(keyTimeout, 0, "Request timeout in milliseconds (settings default 5000)")
	pf.Int(keyHistoryLimit, 0, "Number of history entries to load")
	pf.String(keyDatabase, "", "SQLite database path (relative paths resolve in the config dir)")
	pf.Bool(keyFollowRedirects, true, "Follow HTTP redirects")
	pf.Bool(keyInsecure, false, "Skip TLS certificate verification")
	pf.String(keyProxy, "", "Proxy URL for outgoing requests")
	pf.String(keyStyle, "", "Chroma style used for highlighted output")
	pf.String(keyCallbackAddr, "", "Loopback address for the OAuth redirect listener")
	pf.String(keyScope, "", "Default OAuth scope")
	pf.BoolP(keyVerbose, "v", false, "Enable debug logging on stderr")

	root.AddCommand(
		newSendCmd(a),
		newPreviewCmd(a),
		newSpecCmd(a),
		newGenerateCmd(a),
		newHistoryCmd(a),
		newCollectionCmd(a),
		newEnvCmd(a),
		newOAuthCmd(a),
		newConfigCmd(a),
		newVersionCmd(a),
	)
	return root
}
