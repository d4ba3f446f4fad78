package parser

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/unkn0wn-root/commandpost/internal/errdef"
	"github.com/unkn0wn-root/commandpost/internal/openapi"
	"github.com/unkn0wn-root/commandpost/internal/openapi/model"
)

type Loader struct{}

func NewLoader() *Loader {
	return &Loader{}
}

// IsURL reports whether source names a remote document rather than a file.
func IsURL(source string) bool {
	u, err := url.Parse(source)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func (l *Loader) Parse(
	ctx context.Context,
	source string,
	opts openapi.ParseOptions,
) (*model.Spec, error) {
	document, err := l.load(ctx, source, opts)
	if err != nil {
		return nil, err
	}

	spec := &model.Spec{
		Servers: convertServers(document.Servers, source),
	}
	if document.Info != nil {
		spec.Title = document.Info.Title
		spec.Version = document.Info.Version
		spec.Description = document.Info.Description
	}
	if document.Components != nil {
		spec.SecuritySchemes = convertSecuritySchemes(document.Components.SecuritySchemes)
	}
	spec.Operations = collectOperations(document)
	return spec, nil
}

func (l *Loader) load(ctx context.Context, source string, opts openapi.ParseOptions) (*openapi3.T, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, errdef.New(errdef.CodeSpecParse, "spec path is empty")
	}

	loader := openapi3.NewLoader()
	loader.Context = ctx
	loader.IsExternalRefsAllowed = opts.ResolveExternalRefs

	var (
		document *openapi3.T
		err      error
	)
	if IsURL(source) {
		u, perr := url.Parse(source)
		if perr != nil {
			return nil, errdef.Wrap(errdef.CodeSpecParse, perr, "parse spec url")
		}
		loader.IsExternalRefsAllowed = true
		document, err = loader.LoadFromURI(u)
	} else {
		document, err = loader.LoadFromFile(source)
	}
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeSpecParse, err, "load OpenAPI spec")
	}
	return document, nil
}

var methodOrder = []model.HTTPMethod{
	model.MethodGet,
	model.MethodPost,
	model.MethodPut,
	model.MethodDelete,
	model.MethodPatch,
	model.MethodHead,
	model.MethodOptions,
	model.MethodTrace,
}

func operationFor(item *openapi3.PathItem, method model.HTTPMethod) *openapi3.Operation {
	switch method {
	case model.MethodGet:
		return item.Get
	case model.MethodPost:
		return item.Post
	case model.MethodPut:
		return item.Put
	case model.MethodDelete:
		return item.Delete
	case model.MethodPatch:
		return item.Patch
	case model.MethodHead:
		return item.Head
	case model.MethodOptions:
		return item.Options
	case model.MethodTrace:
		return item.Trace
	}
	return nil
}

func collectOperations(doc *openapi3.T) []model.Operation {
	if doc.Paths == nil {
		return nil
	}

	pathMap := doc.Paths.Map()
	paths := make([]string, 0, len(pathMap))
	for path := range pathMap {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var ops []model.Operation
	for _, path := range paths {
		item := doc.Paths.Value(path)
		if item == nil {
			continue
		}
		for _, method := range methodOrder {
			raw := operationFor(item, method)
			if raw == nil {
				continue
			}
			ops = append(ops, normalizeOperation(doc, path, method, raw, item.Parameters))
		}
	}
	return ops
}

func normalizeOperation(
	doc *openapi3.T,
	path string,
	method model.HTTPMethod,
	raw *openapi3.Operation,
	baseParams openapi3.Parameters,
) model.Operation {
	return model.Operation{
		ID:          raw.OperationID,
		Method:      method,
		Path:        path,
		Summary:     raw.Summary,
		Description: raw.Description,
		Tags:        cloneStringSlice(raw.Tags),
		Deprecated:  raw.Deprecated,
		Parameters:  mergeParameters(baseParams, raw.Parameters),
		RequestBody: convertRequestBody(raw.RequestBody),
		Security:    resolveSecurityRequirements(doc, raw),
	}
}

func convertServers(servers openapi3.Servers, source string) []model.Server {
	if len(servers) == 0 {
		return nil
	}

	result := make([]model.Server, 0, len(servers))
	for _, srv := range servers {
		if srv == nil {
			continue
		}
		result = append(result, model.Server{
			URL:         resolveAgainstSource(resolveServerURL(srv), source),
			Description: srv.Description,
		})
	}
	return result
}

// resolveAgainstSource makes a relative server URL absolute when the
// document itself was fetched over HTTP.
func resolveAgainstSource(serverURL, source string) string {
	if strings.HasPrefix(serverURL, "http") || !IsURL(source) {
		return serverURL
	}
	base, err := url.Parse(source)
	if err != nil {
		return serverURL
	}
	rel, err := url.Parse(serverURL)
	if err != nil {
		return serverURL
	}
	return base.ResolveReference(rel).String()
}

func resolveServerURL(server *openapi3.Server) string {
	if len(server.Variables) == 0 {
		return server.URL
	}
	resolved := server.URL
	for name, variable := range server.Variables {
		if variable == nil {
			continue
		}
		replacement := variable.Default
		if replacement == "" && len(variable.Enum) > 0 {
			replacement = variable.Enum[0]
		}
		resolved = strings.ReplaceAll(resolved, fmt.Sprintf("{%s}", name), replacement)
	}
	return resolved
}

// mergeParameters lets operation parameters override path-level ones with
// the same location and name.
func mergeParameters(baseParams, opParams openapi3.Parameters) []model.Parameter {
	combined := make(map[string]model.Parameter)
	var order []string

	add := func(ref *openapi3.ParameterRef) {
		if ref == nil || ref.Value == nil {
			return
		}
		key := ref.Value.In + ":" + ref.Value.Name
		if _, seen := combined[key]; !seen {
			order = append(order, key)
		}
		combined[key] = convertParameter(ref.Value)
	}
	for _, ref := range baseParams {
		add(ref)
	}
	for _, ref := range opParams {
		add(ref)
	}
	if len(order) == 0 {
		return nil
	}

	params := make([]model.Parameter, 0, len(order))
	for _, key := range order {
		params = append(params, combined[key])
	}
	return params
}

func convertParameter(p *openapi3.Parameter) model.Parameter {
	param := model.Parameter{
		Name:        p.Name,
		Location:    model.ParameterLocation(p.In),
		Description: p.Description,
		Required:    p.Required,
		Example:     extractParameterExample(p),
	}
	if !param.Example.HasValue {
		if ex, ok := extractExampleFromSchema(p.Schema); ok {
			param.Example = ex
		}
	}
	return param
}

func extractParameterExample(p *openapi3.Parameter) model.Example {
	if p.Example != nil {
		return model.Example{Value: p.Example, Source: model.ExampleFromExplicit, HasValue: true}
	}
	return firstExample(p.Examples)
}

func firstExample(examples openapi3.Examples) model.Example {
	if len(examples) == 0 {
		return model.Example{}
	}
	names := make([]string, 0, len(examples))
	for name := range examples {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ref := examples[name]
		if ref != nil && ref.Value != nil {
			return model.Example{
				Summary:  ref.Value.Summary,
				Value:    ref.Value.Value,
				Source:   model.ExampleFromExplicit,
				HasValue: true,
			}
		}
	}
	return model.Example{}
}

func extractExampleFromSchema(ref *openapi3.SchemaRef) (model.Example, bool) {
	if ref == nil || ref.Value == nil {
		return model.Example{}, false
	}

	schema := ref.Value
	switch {
	case schema.Example != nil:
		return model.Example{Value: schema.Example, Source: model.ExampleFromExplicit, HasValue: true}, true
	case schema.Default != nil:
		return model.Example{Value: schema.Default, Source: model.ExampleFromDefault, HasValue: true}, true
	case len(schema.Enum) > 0:
		return model.Example{Value: schema.Enum[0], Source: model.ExampleFromEnum, HasValue: true}, true
	}
	return model.Example{}, false
}

func convertRequestBody(ref *openapi3.RequestBodyRef) *model.RequestBody {
	if ref == nil || ref.Value == nil {
		return nil
	}

	rb := ref.Value
	result := &model.RequestBody{
		Description: rb.Description,
		Required:    rb.Required,
	}

	mediaTypes := make([]string, 0, len(rb.Content))
	for mediaType := range rb.Content {
		mediaTypes = append(mediaTypes, mediaType)
	}
	sort.Strings(mediaTypes)

	for _, mediaType := range mediaTypes {
		mt := rb.Content[mediaType]
		if mt == nil {
			continue
		}
		media := model.MediaType{ContentType: mediaType}
		if mt.Example != nil {
			media.Example = model.Example{Value: mt.Example, Source: model.ExampleFromExplicit, HasValue: true}
		} else {
			media.Example = firstExample(mt.Examples)
		}
		if !media.Example.HasValue {
			if ex, ok := extractExampleFromSchema(mt.Schema); ok {
				media.Example = ex
			}
		}
		result.MediaTypes = append(result.MediaTypes, media)
	}
	return result
}

func resolveSecurityRequirements(doc *openapi3.T, op *openapi3.Operation) []model.SecurityRequirement {
	var source openapi3.SecurityRequirements
	if op.Security != nil {
		source = *op.Security
	} else if len(doc.Security) > 0 {
		source = doc.Security
	}

	var requirements []model.SecurityRequirement
	for _, requirement := range source {
		keys := make([]string, 0, len(requirement))
		for scheme := range requirement {
			keys = append(keys, scheme)
		}
		sort.Strings(keys)
		for _, scheme := range keys {
			requirements = append(requirements, model.SecurityRequirement{
				SchemeName: scheme,
				Scopes:     cloneStringSlice(requirement[scheme]),
			})
		}
	}
	return requirements
}

func convertSecuritySchemes(raw openapi3.SecuritySchemes) map[string]model.SecurityScheme {
	if len(raw) == 0 {
		return nil
	}
	result := make(map[string]model.SecurityScheme, len(raw))
	for name, ref := range raw {
		if ref == nil || ref.Value == nil {
			continue
		}
		scheme := ref.Value
		entry := model.SecurityScheme{
			Type:         model.SecuritySchemeType(scheme.Type),
			Subtype:      strings.ToLower(scheme.Scheme),
			Name:         scheme.Name,
			In:           model.ParameterLocation(scheme.In),
			Description:  scheme.Description,
			BearerFormat: scheme.BearerFormat,
		}
		if strings.EqualFold(scheme.Type, string(model.SecurityOAuth2)) {
			entry.OAuthFlows = convertOAuthFlows(scheme.Flows)
		}
		result[name] = entry
	}
	return result
}

func convertOAuthFlows(flows *openapi3.OAuthFlows) []model.OAuthFlow {
	if flows == nil {
		return nil
	}
	var result []model.OAuthFlow
	appendFlow := func(flow *openapi3.OAuthFlow, flowType model.OAuthFlowType) {
		if flow == nil {
			return
		}
		scopes := make([]string, 0, len(flow.Scopes))
		for scope := range flow.Scopes {
			scopes = append(scopes, scope)
		}
		sort.Strings(scopes)
		result = append(result, model.OAuthFlow{
			Type:             flowType,
			AuthorizationURL: flow.AuthorizationURL,
			TokenURL:         flow.TokenURL,
			RefreshURL:       flow.RefreshURL,
			Scopes:           scopes,
		})
	}
	appendFlow(flows.ClientCredentials, model.OAuthFlowClientCredentials)
	appendFlow(flows.Password, model.OAuthFlowPassword)
	appendFlow(flows.AuthorizationCode, model.OAuthFlowAuthorizationCode)
	appendFlow(flows.Implicit, model.OAuthFlowImplicit)
	return result
}

func cloneStringSlice(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}
