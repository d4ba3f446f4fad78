package kv

import (
	"net/url"
	"strings"
)

var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// Escape percent-encodes s as a URI component: everything except
// A-Z a-z 0-9 - _ . ! ~ * ' ( ) is escaped and spaces become %20.
func Escape(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}

// EncodePairs renders effective entries as k=v pairs joined with '&'.
func EncodePairs(entries []Entry) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(Escape(e.Key))
		b.WriteByte('=')
		b.WriteString(Escape(e.Value))
	}
	return b.String()
}
