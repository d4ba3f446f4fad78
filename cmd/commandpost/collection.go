package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/commandpost/internal/errdef"
)

func newCollectionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "collection",
		Aliases: []string{"collections", "col"},
		Short:   "Manage saved request collections",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List collections and their request counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			cols, err := db.LoadCollections(cmd.Context())
			if err != nil {
				return err
			}
			if len(cols) == 0 {
				fmt.Fprintln(a.out, "no collections")
				return nil
			}
			rows := make([][]string, 0, len(cols))
			for _, c := range cols {
				rows = append(rows, []string{c.Name, strconv.Itoa(len(c.Requests))})
			}
			p, err := a.printer(colorNever)
			if err != nil {
				return err
			}
			p.table([]string{"NAME", "REQUESTS"}, rows)
			return nil
		},
	}

	var req requestFlags
	save := &cobra.Command{
		Use:   "save NAME [METHOD] TARGET",
		Short: "Assemble a request and append it to a collection",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, err := a.assemble(cmd.Context(), &req, args[1:])
			if err != nil {
				return err
			}
			db, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			if err := db.AppendToCollection(cmd.Context(), args[0], desc); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "saved %s %s to %q\n", desc.Method(), desc.URL(), args[0])
			return nil
		},
	}
	req.register(save.Flags())

	del := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			ok, err := db.DeleteCollection(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return errdef.New(errdef.CodeValidation, "collection %q not found", args[0])
			}
			fmt.Fprintf(a.out, "deleted %q\n", args[0])
			return nil
		},
	}

	imp := &cobra.Command{
		Use:   "import PATH",
		Short: "Import a Postman v2.1 collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			col, err := db.ImportCollections(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "imported %q with %d requests\n", col.Name, len(col.Requests))
			return nil
		},
	}

	export := &cobra.Command{
		Use:   "export NAME PATH",
		Short: "Write a collection's requests as a JSON array",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			if err := db.ExportCollection(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "exported %q to %s\n", args[0], args[1])
			return nil
		},
	}

	var noHistory bool
	run := &cobra.Command{
		Use:   "run NAME",
		Short: "Send every request of a collection in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := a.store(ctx)
			if err != nil {
				return err
			}
			col, ok, err := db.GetCollection(ctx, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return errdef.New(errdef.CodeValidation, "collection %q not found", args[0])
			}
			p, err := a.printer(colorAuto)
			if err != nil {
				return err
			}

			failed := 0
			for i, desc := range col.Requests {
				label := fmt.Sprintf("%s #%d", col.Name, i+1)
				resp, err := a.client.Execute(ctx, desc, a.executeOptions(label))
				if err != nil {
					failed++
					fmt.Fprintf(a.out, "%-3d %-6s %s  %s\n", i+1, desc.Method(), desc.URL(), errdef.Message(err))
					continue
				}
				fmt.Fprintf(a.out, "%-3d %-6s %s  %s\n", i+1, desc.Method(), desc.URL(), p.status(resp))
				if resp.StatusCode >= 400 {
					failed++
				}
				if !noHistory {
					a.recordHistory(ctx, p, desc, resp)
				}
			}
			if failed > 0 {
				return errdef.New(errdef.CodeNetwork, "%d of %d requests failed", failed, len(col.Requests))
			}
			return nil
		},
	}
	run.Flags().BoolVar(&noHistory, "no-history", false, "Do not record the exchanges")

	cmd.AddCommand(list, save, del, imp, export, run)
	return cmd
}
