// Package preview renders the command a generated CLI would accept for the
// request being edited.
package preview

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/unkn0wn-root/commandpost/internal/auth"
	"github.com/unkn0wn-root/commandpost/internal/body"
	"github.com/unkn0wn-root/commandpost/internal/kv"
)

const DefaultBinary = "cli"

type Input struct {
	Binary  string
	Method  string
	Path    string
	Params  *kv.List
	Headers *kv.List
	Auth    auth.Config
	Body    body.Spec
}

// Command builds the preview line. Static path segments become subcommands
// and the method picks the action word; GET and PATCH add none.
func Command(in Input) string {
	var b strings.Builder
	b.WriteString(binary(in.Binary))

	if parts := staticParts(in.Path); len(parts) > 0 {
		b.WriteByte(' ')
		b.WriteString(strings.Join(parts, " "))
	}

	method := strings.ToUpper(strings.TrimSpace(in.Method))
	switch method {
	case "POST":
		b.WriteString(" create")
	case "PUT":
		b.WriteString(" update")
	case "DELETE":
		b.WriteString(" delete")
	}

	for _, p := range effective(in.Params) {
		fmt.Fprintf(&b, " --%s \"%s\"", p.Key, p.Value)
	}

	switch s := in.Auth.Active().(type) {
	case auth.Bearer:
		if s.Token != "" {
			fmt.Fprintf(&b, " --token \"%s\"", s.Token)
		}
	case auth.Basic:
		fmt.Fprintf(&b, " --user \"%s:%s\"", s.Username, s.Password)
	}

	for _, h := range effective(in.Headers) {
		fmt.Fprintf(&b, " --header \"%s=%s\"", h.Key, h.Value)
	}

	if hasBody(method) {
		if raw := body.Encode(method, in.Body).Body; raw != "" && raw != "{}" {
			fmt.Fprintf(&b, " --body '%s'", ShellQuote(raw))
		}
	}
	return b.String()
}

// ShellQuote escapes s for use inside single quotes.
func ShellQuote(s string) string {
	return strings.ReplaceAll(s, "'", `'\''`)
}

func binary(name string) string {
	if strings.TrimSpace(name) == "" {
		return DefaultBinary
	}
	return strings.TrimSpace(name)
}

func hasBody(method string) bool {
	return method == "POST" || method == "PUT" || method == "PATCH"
}

// staticParts accepts a bare path or a full URL; the query is ignored.
func staticParts(p string) []string {
	if strings.Contains(p, "://") {
		if u, err := url.Parse(p); err == nil {
			p = u.Path
		}
	}
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	var out []string
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || strings.HasPrefix(seg, "{") {
			continue
		}
		out = append(out, seg)
	}
	return out
}

func effective(l *kv.List) []kv.Entry {
	if l == nil {
		return nil
	}
	return l.Effective()
}
