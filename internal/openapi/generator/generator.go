package generator

import (
	"bytes"
	"context"
	"fmt"
	"go/format"
	"sort"
	"strings"
	"text/template"

	"github.com/unkn0wn-root/commandpost/internal/errdef"
	"github.com/unkn0wn-root/commandpost/internal/openapi"
	"github.com/unkn0wn-root/commandpost/internal/openapi/model"
)

const rootVar = "rootCmd"

// reservedFlags are persistent flags on the generated root command.
var reservedFlags = map[string]bool{
	"base-url": true,
	"token":    true,
	"user":     true,
	"header":   true,
	"body":     true,
	"timeout":  true,
	"help":     true,
}

type Builder struct {
	binary   string
	warnings []string
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) Generate(
	ctx context.Context,
	spec *model.Spec,
	opts openapi.GeneratorOptions,
) (*openapi.Project, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if spec == nil {
		return nil, errdef.New(errdef.CodeGeneration, "spec is nil")
	}
	if err := openapi.ValidateModule(opts.Module); err != nil {
		return nil, err
	}
	mod := strings.TrimSpace(opts.Module)
	b.binary = binaryName(mod)
	b.warnings = nil

	tree := newCommandTree()
	for _, op := range spec.Operations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if op.Method == "" || op.Path == "" {
			continue
		}
		if op.Deprecated && !opts.IncludeDeprecated {
			b.noteWarning(fmt.Sprintf("skipped deprecated operation %s %s", op.Method, op.Path))
			continue
		}
		b.addOperation(tree, op)
	}

	view := projectView{
		Module:       mod,
		Binary:       b.binary,
		Title:        firstNonEmpty(spec.Title, "the API"),
		Version:      spec.Version,
		Short:        firstNonEmpty(spec.Title, "API client") + " command line client",
		BaseURL:      selectBaseURL(spec, opts.PreferredServerIndex),
		CobraVersion: cobraVersion,
	}

	project := &openapi.Project{Module: mod}
	add := func(name string, tmpl *template.Template, data any, gofmt bool) error {
		content, err := render(tmpl, data, gofmt)
		if err != nil {
			return errdef.Wrap(errdef.CodeGeneration, err, "render %s", name)
		}
		project.Files = append(project.Files, openapi.File{Path: name, Content: content})
		return nil
	}

	if err := add("go.mod", goModTemplate, view, false); err != nil {
		return nil, err
	}
	if err := add("main.go", mainTemplate, view, true); err != nil {
		return nil, err
	}
	if err := add("cmd/root.go", rootTemplate, view, true); err != nil {
		return nil, err
	}
	for _, group := range tree.groups() {
		name := "cmd/" + commandFileName(group.resource)
		if err := add(name, commandsTemplate, group, true); err != nil {
			return nil, err
		}
	}

	project.Warnings = b.Warnings()
	view.Warnings = project.Warnings
	if err := add("README.md", readmeTemplate, view, false); err != nil {
		return nil, err
	}
	return project, nil
}

func (b *Builder) Warnings() []string {
	return append([]string(nil), b.warnings...)
}

func (b *Builder) noteWarning(message string) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return
	}
	b.warnings = append(b.warnings, trimmed)
}

type projectView struct {
	Module       string
	Binary       string
	Title        string
	Version      string
	Short        string
	BaseURL      string
	CobraVersion string
	Warnings     []string
}

type commandNode struct {
	Key      string
	Var      string
	Use      string
	Short    string
	Long     string
	Example  string
	Parent   string
	Declare  bool
	Op       *operationView
	resource string
	path     []string
}

type operationView struct {
	Method string
	Path   string
	Flags  []flagView
}

type flagView struct {
	Name     string
	Flag     string
	Location string
	Help     string
	Default  string
	Required bool
}

type commandGroup struct {
	resource string
	Nodes    []*commandNode
}

type commandTree struct {
	nodes    map[string]*commandNode
	order    []*commandNode
	varNames map[string]int
}

func newCommandTree() *commandTree {
	root := &commandNode{Var: rootVar}
	return &commandTree{
		nodes:    map[string]*commandNode{"": root},
		order:    []*commandNode{root},
		varNames: map[string]int{rootVar: 1},
	}
}

// ensure returns the node for the command path, creating missing parents.
func (t *commandTree) ensure(segments []string) *commandNode {
	key := strings.Join(segments, " ")
	if n, ok := t.nodes[key]; ok {
		return n
	}
	parent := t.ensure(segments[:len(segments)-1])
	use := segments[len(segments)-1]
	n := &commandNode{
		Key:      key,
		Var:      t.uniqueVar(segments),
		Use:      use,
		Short:    "Operations on " + key,
		Parent:   parent.Var,
		Declare:  true,
		resource: segments[0],
		path:     append([]string(nil), segments...),
	}
	t.nodes[key] = n
	t.order = append(t.order, n)
	return n
}

func (t *commandTree) uniqueVar(segments []string) string {
	var b strings.Builder
	b.WriteString("cmd")
	for _, seg := range segments {
		b.WriteString(camelIdent(seg))
	}
	name := b.String()
	t.varNames[name]++
	if n := t.varNames[name]; n > 1 {
		name = fmt.Sprintf("%s%d", name, n)
	}
	return name
}

// groups splits the tree into one file per top-level resource. Operations
// bound to the root command land in an "index" group.
func (t *commandTree) groups() []commandGroup {
	byResource := map[string]*commandGroup{}
	var names []string
	for _, n := range t.order {
		resource := n.resource
		if !n.Declare {
			if n.Op == nil {
				continue
			}
			resource = "index"
		}
		g, ok := byResource[resource]
		if !ok {
			g = &commandGroup{resource: resource}
			byResource[resource] = g
			names = append(names, resource)
		}
		g.Nodes = append(g.Nodes, n)
	}
	sort.Strings(names)
	out := make([]commandGroup, 0, len(names))
	for _, name := range names {
		out = append(out, *byResource[name])
	}
	return out
}

func (b *Builder) addOperation(tree *commandTree, op model.Operation) {
	segments := staticSegments(op.Path)
	parent := tree.ensure(segments)

	target := parent
	if verb := actionVerb(op.Method); verb != "" {
		target = tree.ensure(append(append([]string(nil), segments...), verb))
	}
	if target.Op != nil {
		alt := kebab(deriveRequestName(op))
		target = tree.ensure(append(append([]string(nil), segments...), alt))
		b.noteWarning(fmt.Sprintf("%s %s exposed as %q", op.Method, op.Path, strings.TrimSpace(target.Key)))
		if target.Op != nil {
			b.noteWarning(fmt.Sprintf("skipped %s %s: command name already taken", op.Method, op.Path))
			return
		}
	}

	target.Op = b.buildOperation(op)
	target.Short = firstNonEmpty(strings.TrimSpace(op.Summary), fmt.Sprintf("%s %s", op.Method, op.Path))
	target.Long = composeDescription(op.Summary, op.Description)
	target.Example = exampleLine(b.binary, target, op)
}

func (b *Builder) buildOperation(op model.Operation) *operationView {
	view := &operationView{Method: string(op.Method), Path: op.Path}
	used := map[string]bool{}
	for _, p := range op.Parameters {
		if p.Location == model.InCookie {
			b.noteWarning(fmt.Sprintf("cookie parameter %q on %s %s is not exposed", p.Name, op.Method, op.Path))
			continue
		}
		name := flagName(p.Name)
		if reservedFlags[name] || used[name] {
			name = string(p.Location) + "-" + name
		}
		used[name] = true

		help := strings.TrimSpace(p.Description)
		if help == "" {
			help = fmt.Sprintf("%s parameter %s", p.Location, p.Name)
		}
		view.Flags = append(view.Flags, flagView{
			Name:     p.Name,
			Flag:     name,
			Location: string(p.Location),
			Help:     help,
			Default:  defaultValue(p),
			Required: p.Location == model.InPath || p.Required,
		})
	}
	return view
}

func exampleLine(binary string, n *commandNode, op model.Operation) string {
	var b strings.Builder
	b.WriteString("  ")
	b.WriteString(strings.Join(append([]string{binary}, n.path...), " "))
	for _, f := range n.Op.Flags {
		if f.Location != string(model.InPath) {
			continue
		}
		fmt.Fprintf(&b, " --%s %q", f.Flag, "<"+f.Name+">")
	}
	if op.RequestBody != nil {
		for _, mt := range op.RequestBody.MediaTypes {
			if !mt.Example.HasValue {
				continue
			}
			fmt.Fprintf(&b, " --body '%s'", strings.ReplaceAll(stringifyExample(mt.Example.Value), "'", `'\''`))
			break
		}
	}
	return b.String()
}

func render(tmpl *template.Template, data any, gofmt bool) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	if !gofmt {
		return buf.Bytes(), nil
	}
	out, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format generated source: %w", err)
	}
	return out, nil
}

func binaryName(mod string) string {
	parts := strings.Split(strings.Trim(mod, "/"), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if i > 0 && isMajorSuffix(parts[i]) {
			continue
		}
		if name := flagName(parts[i]); name != "" {
			return name
		}
	}
	return "cli"
}

func isMajorSuffix(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var reservedFileSuffixes = map[string]bool{
	"root": true, "test": true, "index_test": true,
	"aix": true, "android": true, "darwin": true, "dragonfly": true, "freebsd": true,
	"illumos": true, "ios": true, "js": true, "linux": true, "netbsd": true,
	"openbsd": true, "plan9": true, "solaris": true, "wasip1": true, "windows": true,
	"386": true, "amd64": true, "arm": true, "arm64": true, "loong64": true,
	"mips": true, "mips64": true, "mips64le": true, "mipsle": true, "ppc64": true,
	"ppc64le": true, "riscv64": true, "s390x": true, "wasm": true,
}

// commandFileName keeps generated files clear of build-constraint suffixes.
func commandFileName(resource string) string {
	name := strings.ToLower(strings.ReplaceAll(flagName(resource), "-", "_"))
	if name == "" {
		name = "resource"
	}
	last := name
	if i := strings.LastIndex(name, "_"); i >= 0 {
		last = name[i+1:]
	}
	if reservedFileSuffixes[name] || reservedFileSuffixes[last] {
		name += "_cmd"
	}
	return name + ".go"
}

func selectBaseURL(spec *model.Spec, preferred int) string {
	if len(spec.Servers) == 0 {
		return ""
	}
	idx := preferred
	if idx < 0 || idx >= len(spec.Servers) {
		idx = 0
	}
	return spec.Servers[idx].URL
}
