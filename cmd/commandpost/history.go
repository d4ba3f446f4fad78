package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/commandpost/internal/errdef"
	"github.com/unkn0wn-root/commandpost/internal/response"
	"github.com/unkn0wn-root/commandpost/internal/store"
)

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List, inspect and compare recorded exchanges",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Show the most recent exchanges, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			records, err := db.LoadHistory(cmd.Context())
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(a.out, "no history")
				return nil
			}
			rows := make([][]string, 0, len(records))
			for _, r := range records {
				rows = append(rows, historyRow(r))
			}
			p, err := a.printer(colorNever)
			if err != nil {
				return err
			}
			p.table([]string{"ID", "TIME", "METHOD", "URL", "STATUS", "MS"}, rows)
			return nil
		},
	}

	var include bool
	show := &cobra.Command{
		Use:   "show ID",
		Short: "Print a recorded request line and its response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.historyRecord(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			req, err := rec.DecodeRequest()
			if err != nil {
				return err
			}
			resp, err := rec.DecodeResponse()
			if err != nil {
				return err
			}
			p, err := a.printer(colorAuto)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %s\n", req.Method(), req.URL())
			return p.response(resp, responseView{includeHeaders: include})
		},
	}
	show.Flags().BoolVarP(&include, "include", "i", false, "Print response headers")

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete one entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseHistoryID(args[0])
			if err != nil {
				return err
			}
			db, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			ok, err := db.DeleteHistoryItem(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !ok {
				return errdef.New(errdef.CodeValidation, "history entry %d not found", id)
			}
			fmt.Fprintf(a.out, "deleted %d\n", id)
			return nil
		},
	}

	clearAll := &cobra.Command{
		Use:   "clear",
		Short: "Delete every entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			if err := db.DeleteAllHistory(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "history cleared")
			return nil
		},
	}

	export := &cobra.Command{
		Use:   "export PATH",
		Short: "Write history as alternating request and response JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			n, err := db.ExportHistory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "exported %d entries to %s\n", n, args[0])
			return nil
		},
	}

	diff := &cobra.Command{
		Use:   "diff ID ID",
		Short: "Unified diff of two recorded response bodies",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bodies := make([]string, 2)
			for i, raw := range args {
				rec, err := a.historyRecord(cmd.Context(), raw)
				if err != nil {
					return err
				}
				resp, err := rec.DecodeResponse()
				if err != nil {
					return err
				}
				bodies[i] = withNewline(response.Format(resp))
			}
			out := response.Diff("#"+args[0], "#"+args[1], bodies[0], bodies[1])
			if out == "" {
				fmt.Fprintln(a.out, "responses are identical")
				return nil
			}
			fmt.Fprint(a.out, out)
			return nil
		},
	}

	cmd.AddCommand(list, show, del, clearAll, export, diff)
	return cmd
}

func (a *app) historyRecord(ctx context.Context, raw string) (store.Record, error) {
	id, err := parseHistoryID(raw)
	if err != nil {
		return store.Record{}, err
	}
	db, err := a.store(ctx)
	if err != nil {
		return store.Record{}, err
	}
	rec, ok, err := db.GetHistoryItem(ctx, id)
	if err != nil {
		return store.Record{}, err
	}
	if !ok {
		return store.Record{}, errdef.New(errdef.CodeValidation, "history entry %d not found", id)
	}
	return rec, nil
}

func parseHistoryID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(raw), "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errdef.New(errdef.CodeValidation, "invalid history id %q", raw)
	}
	return id, nil
}

// historyRow keeps going when a stored document no longer decodes.
func historyRow(r store.Record) []string {
	row := []string{strconv.FormatInt(r.ID, 10), r.Timestamp, "?", "?", "?", "?"}
	if req, err := r.DecodeRequest(); err == nil {
		row[2] = req.Method()
		row[3] = truncateURL(req.URL())
	}
	if resp, err := r.DecodeResponse(); err == nil {
		row[4] = strconv.Itoa(resp.StatusCode)
		row[5] = strconv.FormatInt(resp.ElapsedMs, 10)
	}
	return row
}

func withNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
