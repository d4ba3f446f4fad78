// Package auth turns an auth configuration into header and query mutations.
package auth

import (
	"encoding/base64"
	"strings"

	"github.com/unkn0wn-root/commandpost/internal/kv"
)

// Emission is one mutation produced by a scheme.
type Emission struct {
	Key      string
	Value    string
	Location Location
}

const headerAuthorization = "Authorization"

// Resolve returns the emissions of the active scheme.
func Resolve(cfg Config) []Emission {
	return Emissions(cfg.Active())
}

// Emissions returns what a single scheme contributes to a request.
func Emissions(s Scheme) []Emission {
	if s == nil {
		return nil
	}
	return s.emit()
}

func (None) emit() []Emission { return nil }

func (b Bearer) emit() []Emission {
	if b.Token == "" {
		return nil
	}
	return []Emission{authHeader(prefixOrDefault(b.Prefix), b.Token)}
}

func (b Basic) emit() []Emission {
	if b.Username == "" {
		return nil
	}
	token := base64.StdEncoding.EncodeToString([]byte(b.Username + ":" + b.Password))
	return []Emission{authHeader("Basic", token)}
}

func (k APIKey) emit() []Emission {
	if k.KeyName == "" {
		return nil
	}
	loc := k.Location
	if loc != InQuery {
		loc = InHeader
	}
	return []Emission{{Key: k.KeyName, Value: k.KeyValue, Location: loc}}
}

func (o OAuth2) emit() []Emission {
	if o.AccessToken == "" {
		return nil
	}
	return []Emission{authHeader(prefixOrDefault(o.HeaderPrefix), o.AccessToken)}
}

func authHeader(prefix, token string) Emission {
	return Emission{
		Key:      headerAuthorization,
		Value:    prefix + " " + token,
		Location: InHeader,
	}
}

func prefixOrDefault(prefix string) string {
	if p := strings.TrimSpace(prefix); p != "" {
		return p
	}
	return DefaultPrefix
}

// ApplyHeaders overlays header emissions onto headers; emissions win.
func ApplyHeaders(headers map[string]string, ems []Emission) {
	for _, em := range ems {
		if em.Location == InHeader {
			headers[em.Key] = em.Value
		}
	}
}

// ApplyQuery appends query emissions to rawURL, joining with '&' when a '?'
// is already present and introducing '?' otherwise.
func ApplyQuery(rawURL string, ems []Emission) string {
	for _, em := range ems {
		if em.Location != InQuery {
			continue
		}
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		rawURL += sep + kv.Escape(em.Key) + "=" + kv.Escape(em.Value)
	}
	return rawURL
}
