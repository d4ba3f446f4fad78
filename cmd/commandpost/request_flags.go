package main

import (
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/unkn0wn-root/commandpost/internal/auth"
	"github.com/unkn0wn-root/commandpost/internal/body"
	"github.com/unkn0wn-root/commandpost/internal/errdef"
	"github.com/unkn0wn-root/commandpost/internal/kv"
	"github.com/unkn0wn-root/commandpost/internal/request"
	"github.com/unkn0wn-root/commandpost/internal/store"
	"github.com/unkn0wn-root/commandpost/internal/vars"
)

// requestFlags are shared by every command that builds a request.
type requestFlags struct {
	method     string
	params     []string
	headers    []string
	data       string
	form       []string
	formFiles  []string
	urlencoded []string

	bearer   string
	basic    string
	apiKey   string
	apiKeyIn string
	oauth    bool

	env      string
	envFiles []string
	vars     []string
}

func (f *requestFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.method, "method", "X", "", "HTTP method (default GET, or the first argument)")
	fs.StringArrayVarP(&f.params, "param", "q", nil, "Query parameter key=value (repeatable)")
	fs.StringArrayVarP(&f.headers, "header", "H", nil, `Header "Key: value" or key=value (repeatable)`)
	fs.StringVarP(&f.data, "data", "d", "", "Raw body; @path reads it from a file")
	fs.StringArrayVar(&f.form, "form", nil, "Multipart text field key=value (repeatable)")
	fs.StringArrayVar(&f.formFiles, "form-file", nil, "Multipart file field key=path (repeatable)")
	fs.StringArrayVar(&f.urlencoded, "urlencoded", nil, "URL-encoded body field key=value (repeatable)")

	fs.StringVar(&f.bearer, "bearer", "", "Bearer token")
	fs.StringVar(&f.basic, "basic", "", "Basic credentials user:password")
	fs.StringVar(&f.apiKey, "api-key", "", "API key name=value")
	fs.StringVar(&f.apiKeyIn, "api-key-in", string(auth.InHeader), "Where the API key goes: header or query")
	fs.BoolVar(&f.oauth, "oauth", false, "Authorize with the environment's OAuth2 token")

	fs.StringVarP(&f.env, "env", "e", "", "Stored environment supplying base URL and variables")
	fs.StringArrayVar(&f.envFiles, "env-file", nil, "KEY=VALUE file with template variables (repeatable)")
	fs.StringArrayVar(&f.vars, "var", nil, "Template variable key=value (repeatable)")
}

// methodAndTarget accepts "TARGET" or "METHOD TARGET".
func (f *requestFlags) methodAndTarget(args []string) (string, string, error) {
	var method, target string
	switch len(args) {
	case 1:
		target = args[0]
	case 2:
		method, target = args[0], args[1]
	default:
		return "", "", errdef.New(errdef.CodeValidation, "expected [METHOD] TARGET")
	}
	if method != "" && f.method != "" && !strings.EqualFold(method, f.method) {
		return "", "", errdef.New(errdef.CodeValidation, "method given twice: %s and %s", method, f.method)
	}
	if method == "" {
		method = f.method
	}
	if method == "" {
		method = "GET"
	}
	return strings.ToUpper(method), target, nil
}

// input builds the editable request from flags. Scheme selection for
// --oauth happens later because it needs the environment.
func (f *requestFlags) input(method, target string) (request.Input, error) {
	in := request.Input{
		Method:  method,
		Target:  target,
		Params:  pairList(f.params, "="),
		Headers: headerList(f.headers),
	}

	cfg, err := f.authConfig()
	if err != nil {
		return request.Input{}, err
	}
	in.Auth = cfg

	spec, err := f.bodySpec()
	if err != nil {
		return request.Input{}, err
	}
	in.Body = spec
	return in, nil
}

func (f *requestFlags) authConfig() (auth.Config, error) {
	var chosen []string
	var scheme auth.Scheme = auth.None{}
	if f.bearer != "" {
		chosen = append(chosen, "--bearer")
		scheme = auth.Bearer{Token: f.bearer}
	}
	if f.basic != "" {
		chosen = append(chosen, "--basic")
		user, pass, _ := strings.Cut(f.basic, ":")
		scheme = auth.Basic{Username: user, Password: pass}
	}
	if f.apiKey != "" {
		chosen = append(chosen, "--api-key")
		p := kv.ParsePair(f.apiKey, "=")
		if p.Key == "" {
			return auth.Config{}, errdef.New(errdef.CodeValidation, "--api-key needs name=value")
		}
		loc := auth.Location(strings.ToLower(strings.TrimSpace(f.apiKeyIn)))
		if loc != auth.InHeader && loc != auth.InQuery {
			return auth.Config{}, errdef.New(errdef.CodeValidation, "--api-key-in must be header or query")
		}
		scheme = auth.APIKey{KeyName: p.Key, KeyValue: p.Value, Location: loc}
	}
	if f.oauth {
		chosen = append(chosen, "--oauth")
		scheme = auth.DefaultOAuth2()
	}
	if len(chosen) > 1 {
		return auth.Config{}, errdef.New(errdef.CodeValidation, "choose one auth flag, got %s", strings.Join(chosen, ", "))
	}
	return auth.NewConfig(scheme), nil
}

func (f *requestFlags) bodySpec() (body.Spec, error) {
	spec := body.NewSpec()
	spec.Type = body.TypeNone

	kinds := 0
	if len(f.form) > 0 || len(f.formFiles) > 0 {
		kinds++
		spec.Type = body.TypeFormData
		pairs := make([]kv.Pair, 0, len(f.form)+len(f.formFiles))
		for _, raw := range f.form {
			pairs = append(pairs, kv.ParsePair(raw, "="))
		}
		for _, raw := range f.formFiles {
			p := kv.ParsePair(raw, "=")
			p.IsFile = true
			pairs = append(pairs, p)
		}
		spec.FormData = kv.FromPairs(pairs...)
	}
	if len(f.urlencoded) > 0 {
		kinds++
		spec.Type = body.TypeURLEncoded
		spec.URLEncoded = pairList(f.urlencoded, "=")
	}
	if f.data != "" {
		kinds++
		raw, err := readData(f.data)
		if err != nil {
			return body.Spec{}, err
		}
		spec.Type = body.TypeRaw
		spec.Raw = raw
	}
	if kinds > 1 {
		return body.Spec{}, errdef.New(errdef.CodeValidation, "--data, --form and --urlencoded are mutually exclusive")
	}
	return spec, nil
}

func readData(raw string) (string, error) {
	path, ok := strings.CutPrefix(raw, "@")
	if !ok {
		return raw, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errdef.Wrap(errdef.CodeFilesystem, err, "read body file %s", path)
	}
	return string(data), nil
}

// resolver layers --var over --env-file over the stored environment.
// Process variables answer prefixed lookups only ({{env:HOME}}).
func (f *requestFlags) resolver(env *store.Environment) (*vars.Resolver, error) {
	var providers []vars.Provider
	if len(f.vars) > 0 {
		values := make(map[string]string, len(f.vars))
		for _, raw := range f.vars {
			p := kv.ParsePair(raw, "=")
			if p.Key == "" {
				return nil, errdef.New(errdef.CodeValidation, "--var needs key=value, got %q", raw)
			}
			values[p.Key] = p.Value
		}
		providers = append(providers, vars.NewMapProvider("cli", values))
	}
	for _, path := range f.envFiles {
		p, err := vars.LoadFile(path)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	if env != nil {
		values := make(map[string]string, len(env.Variables)+1)
		for k, v := range env.Variables {
			values[k] = v
		}
		if _, ok := values["baseUrl"]; !ok && env.BaseURL != "" {
			values["baseUrl"] = env.BaseURL
		}
		providers = append(providers, vars.NewMapProvider(env.Name, values))
	}
	providers = append(providers, vars.EnvProvider{})
	return vars.NewResolver(providers...), nil
}

func pairList(raw []string, sep string) *kv.List {
	pairs := make([]kv.Pair, 0, len(raw))
	for _, r := range raw {
		pairs = append(pairs, kv.ParsePair(r, sep))
	}
	return kv.FromPairs(pairs...)
}

// headerList accepts curl style "Key: value" and key=value, splitting at
// whichever separator comes first.
func headerList(raw []string) *kv.List {
	pairs := make([]kv.Pair, 0, len(raw))
	for _, r := range raw {
		sep := ":"
		colon, eq := strings.Index(r, ":"), strings.Index(r, "=")
		if colon < 0 || (eq >= 0 && eq < colon) {
			sep = "="
		}
		pairs = append(pairs, kv.ParsePair(r, sep))
	}
	return kv.FromPairs(pairs...)
}
