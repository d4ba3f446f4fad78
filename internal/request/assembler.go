package request

import (
	"strings"

	"github.com/unkn0wn-root/commandpost/internal/auth"
	"github.com/unkn0wn-root/commandpost/internal/body"
	"github.com/unkn0wn-root/commandpost/internal/kv"
	"github.com/unkn0wn-root/commandpost/internal/vars"
)

const headerContentType = "Content-Type"

// Env is the environment a request is assembled against. It replaces any
// ambient "active environment" state.
type Env struct {
	BaseURL   string
	TimeoutMs int
	Vars      *vars.Resolver
}

// Input is the editable state of one request.
type Input struct {
	Method  string
	Target  string // path or the live URL field
	Params  *kv.List
	Headers *kv.List
	Auth    auth.Config
	Body    body.Spec
}

// Assemble builds the descriptor. It performs no I/O and no validation:
// malformed URLs and header values are passed through for the transport to
// reject. Calling it twice on the same input yields identical descriptors.
func Assemble(env Env, in Input) Descriptor {
	expand := env.Vars.Lenient

	rawURL := JoinURL(expand(env.BaseURL), expand(in.Target))
	rawURL = SyncQuery(rawURL, expandEntries(effective(in.Params), expand))

	headers := make(map[string]string)
	for _, e := range expandEntries(effective(in.Headers), expand) {
		headers[e.Key] = e.Value
	}

	emissions := auth.Emissions(expandScheme(in.Auth.Active(), expand))
	auth.ApplyHeaders(headers, emissions)

	encoded := body.Encode(in.Method, expandBody(in.Body, expand))
	if encoded.ContentType != "" {
		headers[headerContentType] = encoded.ContentType
	}

	rawURL = auth.ApplyQuery(rawURL, emissions)

	timeout := env.TimeoutMs
	if timeout <= 0 {
		timeout = DefaultTimeoutMs
	}

	desc := Descriptor{
		method:    strings.ToUpper(strings.TrimSpace(in.Method)),
		url:       rawURL,
		headers:   headers,
		body:      encoded.Body,
		timeoutMs: timeout,
	}
	if in.Body.Type == body.TypeFormData {
		desc.form = append([]body.Field{}, encoded.FormData...)
	}
	return desc
}

// JoinURL returns target untouched when it already carries an http(s)
// scheme, otherwise base (without trailing slash) + "/" + path.
func JoinURL(base, target string) string {
	if hasScheme(target) {
		return target
	}
	base = strings.TrimRight(base, "/")
	if target == "" {
		return base
	}
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	return base + target
}

// SyncQuery rebuilds the query string from params. With no params the
// existing query, if any, is kept as is.
func SyncQuery(rawURL string, params []kv.Entry) string {
	if len(params) == 0 {
		return rawURL
	}
	base, _, _ := strings.Cut(rawURL, "?")
	return base + "?" + kv.EncodePairs(params)
}

func hasScheme(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func effective(list *kv.List) []kv.Entry {
	if list == nil {
		return nil
	}
	return list.Effective()
}

func expandEntries(entries []kv.Entry, expand func(string) string) []kv.Entry {
	for i := range entries {
		entries[i].Key = expand(entries[i].Key)
		entries[i].Value = expand(entries[i].Value)
	}
	return entries
}

// expandScheme expands the scheme's fields before it renders, so encoded
// credentials see the resolved values.
func expandScheme(s auth.Scheme, expand func(string) string) auth.Scheme {
	switch v := s.(type) {
	case auth.Bearer:
		v.Token = expand(v.Token)
		return v
	case auth.Basic:
		v.Username = expand(v.Username)
		v.Password = expand(v.Password)
		return v
	case auth.APIKey:
		v.KeyName = expand(v.KeyName)
		v.KeyValue = expand(v.KeyValue)
		return v
	case auth.OAuth2:
		v.AccessToken = expand(v.AccessToken)
		return v
	default:
		return s
	}
}

func expandBody(spec body.Spec, expand func(string) string) body.Spec {
	out := spec
	out.Raw = expand(spec.Raw)
	out.FormData = expandList(spec.FormData, expand)
	out.URLEncoded = expandList(spec.URLEncoded, expand)
	return out
}

func expandList(list *kv.List, expand func(string) string) *kv.List {
	if list == nil {
		return nil
	}
	var pairs []kv.Pair
	for _, e := range expandEntries(list.Effective(), expand) {
		pairs = append(pairs, kv.Pair{Key: e.Key, Value: e.Value, IsFile: e.IsFile})
	}
	return kv.FromPairs(pairs...)
}
