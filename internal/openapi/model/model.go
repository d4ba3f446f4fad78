package model

type HTTPMethod string

const (
	MethodGet     HTTPMethod = "GET"
	MethodPost    HTTPMethod = "POST"
	MethodPut     HTTPMethod = "PUT"
	MethodDelete  HTTPMethod = "DELETE"
	MethodPatch   HTTPMethod = "PATCH"
	MethodHead    HTTPMethod = "HEAD"
	MethodOptions HTTPMethod = "OPTIONS"
	MethodTrace   HTTPMethod = "TRACE"
)

type ParameterLocation string

const (
	InPath   ParameterLocation = "path"
	InQuery  ParameterLocation = "query"
	InHeader ParameterLocation = "header"
	InCookie ParameterLocation = "cookie"
)

type SecuritySchemeType string

const (
	SecurityAPIKey        SecuritySchemeType = "apiKey"
	SecurityHTTP          SecuritySchemeType = "http"
	SecurityOAuth2        SecuritySchemeType = "oauth2"
	SecurityOpenIDConnect SecuritySchemeType = "openIdConnect"
)

type OAuthFlowType string

const (
	OAuthFlowClientCredentials OAuthFlowType = "client_credentials"
	OAuthFlowPassword          OAuthFlowType = "password"
	OAuthFlowAuthorizationCode OAuthFlowType = "authorization_code"
	OAuthFlowImplicit          OAuthFlowType = "implicit"
)

type ExampleSource string

const (
	ExampleFromExplicit ExampleSource = "explicit"
	ExampleFromDefault  ExampleSource = "default"
	ExampleFromEnum     ExampleSource = "enum"
)

// Spec is the loaded document reduced to what listing and generation need.
type Spec struct {
	Title           string
	Version         string
	Description     string
	Servers         []Server
	SecuritySchemes map[string]SecurityScheme
	Operations      []Operation
}

type Server struct {
	URL         string
	Description string
}

type Operation struct {
	ID          string
	Method      HTTPMethod
	Path        string
	Summary     string
	Description string
	Tags        []string
	Deprecated  bool
	Parameters  []Parameter
	RequestBody *RequestBody
	Security    []SecurityRequirement
}

type Parameter struct {
	Name        string
	Location    ParameterLocation
	Description string
	Required    bool
	Example     Example
}

type Example struct {
	Summary  string
	Value    any
	Source   ExampleSource
	HasValue bool
}

type RequestBody struct {
	Description string
	Required    bool
	MediaTypes  []MediaType
}

type MediaType struct {
	ContentType string
	Example     Example
}

type SecurityRequirement struct {
	SchemeName string
	Scopes     []string
}

type SecurityScheme struct {
	Type         SecuritySchemeType
	Subtype      string
	Name         string
	In           ParameterLocation
	Description  string
	BearerFormat string
	OAuthFlows   []OAuthFlow
}

type OAuthFlow struct {
	Type             OAuthFlowType
	AuthorizationURL string
	TokenURL         string
	RefreshURL       string
	Scopes           []string
}
