package vars

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Provider interface {
	Resolve(name string) (string, bool)
	Label() string
}

type Resolver struct {
	providers []Provider
}

func NewResolver(providers ...Provider) *Resolver {
	return &Resolver{providers: providers}
}

// With returns a resolver that consults extra before the existing providers.
func (r *Resolver) With(extra ...Provider) *Resolver {
	if r == nil {
		return NewResolver(extra...)
	}
	merged := make([]Provider, 0, len(extra)+len(r.providers))
	merged = append(merged, extra...)
	merged = append(merged, r.providers...)
	return &Resolver{providers: merged}
}

// First tries direct lookup across all providers.
// If that fails and the name has a dot or colon, tries to match a provider
// prefix, so "env:HOME" or "staging.token" are routed to the provider
// labeled "env" or "staging".
func (r *Resolver) Resolve(name string) (string, bool) {
	if r == nil {
		return "", false
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", false
	}
	for _, provider := range r.providers {
		if value, ok := provider.Resolve(trimmed); ok {
			return value, true
		}
	}
	idx := strings.IndexAny(trimmed, ".:")
	if idx <= 0 {
		return "", false
	}
	prefix := strings.ToLower(trimmed[:idx])
	subject := strings.TrimSpace(trimmed[idx+1:])
	if subject == "" {
		return "", false
	}
	for _, provider := range r.providers {
		if strings.ToLower(strings.TrimSpace(provider.Label())) != prefix {
			continue
		}
		lookup := provider.Resolve
		if scoped, ok := provider.(scopedProvider); ok {
			lookup = scoped.ResolveScoped
		}
		if value, ok := lookup(subject); ok {
			return value, true
		}
	}
	return "", false
}

// scopedProvider answers differently when addressed through its label.
type scopedProvider interface {
	ResolveScoped(name string) (string, bool)
}

var templateVarPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// ExpandTemplates replaces {{name}} placeholders, including dynamic helpers
// such as {{$uuid}}. Unresolved placeholders stay in place and the first
// failure is returned alongside the partial result.
func (r *Resolver) ExpandTemplates(input string) (string, error) {
	return r.expandTemplates(input, true)
}

// ExpandTemplatesStatic only consults providers, so the same input always
// yields the same output.
func (r *Resolver) ExpandTemplatesStatic(input string) (string, error) {
	return r.expandTemplates(input, false)
}

// Lenient expands statically and ignores failures.
func (r *Resolver) Lenient(input string) string {
	if r == nil || !strings.Contains(input, "{{") {
		return input
	}
	out, _ := r.ExpandTemplatesStatic(input)
	return out
}

func (r *Resolver) expandTemplates(input string, allowDynamic bool) (string, error) {
	var firstErr error
	result := templateVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		sub := templateVarPattern.FindStringSubmatch(match)
		if len(sub) < 2 {
			return match
		}
		name := strings.TrimSpace(sub[1])
		if name == "" {
			return match
		}
		if value, ok := r.Resolve(name); ok {
			return value
		}
		if allowDynamic && strings.HasPrefix(name, "$") {
			if dynamic, ok := resolveDynamic(name); ok {
				return dynamic
			}
		}
		if firstErr == nil {
			firstErr = fmt.Errorf("undefined variable: %s", name)
		}
		return match
	})
	return result, firstErr
}

func resolveDynamic(name string) (string, bool) {
	switch strings.ToLower(name) {
	case "$timestamp":
		return fmt.Sprintf("%d", time.Now().Unix()), true
	case "$timestampiso8601":
		return time.Now().UTC().Format(time.RFC3339), true
	case "$randomint":
		n, _ := rand.Int(rand.Reader, big.NewInt(1<<62))
		return n.String(), true
	case "$uuid", "$guid":
		return uuid.NewString(), true
	default:
		return "", false
	}
}

type MapProvider struct {
	values map[string]string
	label  string
}

// Keys get lowercased so lookups are case-insensitive
func NewMapProvider(label string, values map[string]string) Provider {
	normalized := make(map[string]string, len(values))
	for k, v := range values {
		normalized[strings.ToLower(k)] = v
	}
	return &MapProvider{values: normalized, label: label}
}

func (p *MapProvider) Resolve(name string) (string, bool) {
	value, ok := p.values[strings.ToLower(name)]
	return value, ok
}

func (p *MapProvider) Label() string {
	return p.label
}

// EnvProvider only answers prefixed lookups ({{env:HOME}}) so process
// variables never shadow environment values by accident.
type EnvProvider struct{}

func (EnvProvider) Resolve(string) (string, bool) {
	return "", false
}

func (EnvProvider) ResolveScoped(name string) (string, bool) {
	if value, ok := os.LookupEnv(name); ok {
		return value, true
	}
	return os.LookupEnv(strings.ToUpper(name))
}

func (EnvProvider) Label() string {
	return "env"
}
