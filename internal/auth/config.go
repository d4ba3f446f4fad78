package auth

import (
	"encoding/json"
	"strings"
)

type Kind string

const (
	KindNone   Kind = "none"
	KindBearer Kind = "bearer"
	KindBasic  Kind = "basic"
	KindAPIKey Kind = "api_key"
	KindOAuth2 Kind = "oauth2"
)

// ParseKind accepts the canonical names plus a few spellings seen in
// collections ("apikey", "api-key", "oauth").
func ParseKind(raw string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "none", "noauth":
		return KindNone, true
	case "bearer":
		return KindBearer, true
	case "basic":
		return KindBasic, true
	case "api_key", "apikey", "api-key":
		return KindAPIKey, true
	case "oauth2", "oauth":
		return KindOAuth2, true
	default:
		return KindNone, false
	}
}

type Location string

const (
	InHeader Location = "header"
	InQuery  Location = "query"
)

type ClientAuth string

const (
	ClientAuthBasic ClientAuth = "basic"
	ClientAuthBody  ClientAuth = "body"
)

const DefaultPrefix = "Bearer"

// Scheme is one variant of the auth configuration. The set is closed.
type Scheme interface {
	Kind() Kind
	emit() []Emission
}

type None struct{}

type Bearer struct {
	Token  string `json:"token"`
	Prefix string `json:"prefix,omitempty"`
}

type Basic struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type APIKey struct {
	KeyName  string   `json:"keyName"`
	KeyValue string   `json:"keyValue"`
	Location Location `json:"location"`
}

type OAuth2 struct {
	AccessToken      string     `json:"accessToken"`
	HeaderPrefix     string     `json:"headerPrefix,omitempty"`
	TokenName        string     `json:"tokenName,omitempty"`
	AutoRefreshToken bool       `json:"autoRefreshToken"`
	ShareToken       bool       `json:"shareToken"`
	GrantType        string     `json:"grantType,omitempty"`
	CallbackURL      string     `json:"callbackUrl,omitempty"`
	AuthURL          string     `json:"authUrl,omitempty"`
	AccessTokenURL   string     `json:"accessTokenUrl,omitempty"`
	ClientID         string     `json:"clientId,omitempty"`
	ClientSecret     string     `json:"clientSecret,omitempty"`
	Scope            string     `json:"scope,omitempty"`
	State            string     `json:"state,omitempty"`
	ClientAuth       ClientAuth `json:"clientAuth,omitempty"`
}

// DefaultOAuth2 mirrors the defaults of a freshly opened OAuth2 form.
func DefaultOAuth2() OAuth2 {
	return OAuth2{
		HeaderPrefix:     DefaultPrefix,
		AutoRefreshToken: true,
		GrantType:        "authorization_code",
		ClientAuth:       ClientAuthBasic,
	}
}

func (None) Kind() Kind   { return KindNone }
func (Bearer) Kind() Kind { return KindBearer }
func (Basic) Kind() Kind  { return KindBasic }
func (APIKey) Kind() Kind { return KindAPIKey }
func (OAuth2) Kind() Kind { return KindOAuth2 }

// Config holds one active scheme and keeps the payload of every other scheme
// so switching back and forth never loses input. The zero value is "none".
type Config struct {
	active Kind
	bearer Bearer
	basic  Basic
	apiKey APIKey
	oauth2 OAuth2
}

// NewConfig returns a config with scheme stored and active.
func NewConfig(scheme Scheme) Config {
	var c Config
	c.Set(scheme)
	return c
}

// Set stores the payload and makes it active.
func (c *Config) Set(scheme Scheme) {
	switch s := scheme.(type) {
	case Bearer:
		c.bearer = s
	case Basic:
		c.basic = s
	case APIKey:
		c.apiKey = s
	case OAuth2:
		c.oauth2 = s
	case nil:
		c.active = KindNone
		return
	}
	c.active = scheme.Kind()
}

// Select switches the active tag without touching stored payloads.
func (c *Config) Select(kind Kind) Scheme {
	switch kind {
	case KindBearer, KindBasic, KindAPIKey, KindOAuth2:
		c.active = kind
	default:
		c.active = KindNone
	}
	return c.Active()
}

func (c Config) Kind() Kind {
	if c.active == "" {
		return KindNone
	}
	return c.active
}

func (c Config) Active() Scheme {
	return c.Stored(c.Kind())
}

// Stored returns the payload kept for kind whether or not it is active.
func (c Config) Stored(kind Kind) Scheme {
	switch kind {
	case KindBearer:
		return c.bearer
	case KindBasic:
		return c.basic
	case KindAPIKey:
		return c.apiKey
	case KindOAuth2:
		return c.oauth2
	default:
		return None{}
	}
}

type configJSON struct {
	Type   Kind    `json:"type"`
	Bearer *Bearer `json:"bearer,omitempty"`
	Basic  *Basic  `json:"basic,omitempty"`
	APIKey *APIKey `json:"apiKey,omitempty"`
	OAuth2 *OAuth2 `json:"oauth2,omitempty"`
}

func (c Config) MarshalJSON() ([]byte, error) {
	out := configJSON{Type: c.Kind()}
	if c.bearer != (Bearer{}) {
		b := c.bearer
		out.Bearer = &b
	}
	if c.basic != (Basic{}) {
		b := c.basic
		out.Basic = &b
	}
	if c.apiKey != (APIKey{}) {
		k := c.apiKey
		out.APIKey = &k
	}
	if c.oauth2 != (OAuth2{}) {
		o := c.oauth2
		out.OAuth2 = &o
	}
	return json.Marshal(out)
}

func (c *Config) UnmarshalJSON(data []byte) error {
	var in configJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*c = Config{}
	if in.Bearer != nil {
		c.bearer = *in.Bearer
	}
	if in.Basic != nil {
		c.basic = *in.Basic
	}
	if in.APIKey != nil {
		c.apiKey = *in.APIKey
	}
	if in.OAuth2 != nil {
		c.oauth2 = *in.OAuth2
	}
	kind, _ := ParseKind(string(in.Type))
	c.Select(kind)
	return nil
}
