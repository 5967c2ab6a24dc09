package openapi

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
	"google.golang.org/genproto/googleapis/api/annotations"
	"google.golang.org/genproto/googleapis/api/serviceconfig"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/apipb"
	"google.golang.org/protobuf/types/known/sourcecontextpb"
	"google.golang.org/protobuf/types/known/typepb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/platinummonkey/apicompiler/pkg/descgen"
	"github.com/platinummonkey/apicompiler/pkg/diag"
	"github.com/platinummonkey/apicompiler/pkg/processors"
)

// Options control how a document is imported
type Options struct {
	// Namespace is the protobuf package of the generated types. When empty it is derived
	// from the document title and major version.
	Namespace string
	// ServiceName is the service configuration name. Defaults to the document host, then
	// the namespace.
	ServiceName string
}

// Result is an imported document: the descriptors of the synthesized api and the base
// service configuration to compile it with
type Result struct {
	Descriptors *descriptorpb.FileDescriptorSet
	Service     *serviceconfig.Service
	Diags       []diag.Diag
}

// Importer turns OpenAPI and Swagger documents into service definitions
type Importer struct {
	opts   Options
	logger *logrus.Logger
}

// NewImporter creates an importer. A nil logger is replaced by logrus.New().
func NewImporter(opts Options, logger *logrus.Logger) *Importer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Importer{opts: opts, logger: logger}
}

type importRun struct {
	doc     *Document
	types   *TypeBuilder
	iface   string
	methods map[string]bool
	api     *apipb.Api
	http    []*annotations.HttpRule
	docs    []*serviceconfig.DocumentationRule
	diags   []diag.Diag
}

// Import translates doc. Problems in the document are returned as diagnostics; an
// error means the synthesized definitions could not be turned into descriptors.
func (im *Importer) Import(doc *Document) (*Result, error) {
	ns := im.opts.Namespace
	if ns == "" {
		ns = namespace(doc.Info)
	}
	run := &importRun{
		doc:     doc,
		types:   NewTypeBuilder(ns, doc),
		iface:   ns + "." + interfaceName(doc.Info.Title),
		methods: make(map[string]bool),
	}
	run.api = &apipb.Api{
		Name:          run.iface,
		Version:       ns[strings.LastIndexByte(ns, '.')+1:],
		SourceContext: &sourcecontextpb.SourceContext{FileName: doc.Name()},
		Syntax:        typepb.Syntax_SYNTAX_PROTO3,
	}
	if doc.Info.Description != "" {
		run.docs = append(run.docs, &serviceconfig.DocumentationRule{Selector: run.iface, Description: doc.Info.Description})
	}

	for _, item := range doc.Paths {
		for _, op := range item.Operations {
			run.operation(item, op)
		}
	}

	svc := &serviceconfig.Service{
		Name:          im.serviceName(doc, ns),
		Title:         doc.Info.Title,
		ConfigVersion: wrapperspb.UInt32(3),
		Apis:          []*apipb.Api{run.api},
		Types:         run.types.Types(),
		Http:          &annotations.Http{Rules: run.http},
		Documentation: &serviceconfig.Documentation{Summary: doc.Info.Title, Rules: run.docs},
	}
	set, err := descgen.FromService(svc)
	if err != nil {
		return nil, fmt.Errorf("failed to build descriptors for %s: %w", doc.Name(), err)
	}

	diags := append(run.types.Diags(), run.diags...)
	im.logger.WithFields(logrus.Fields{
		"document": doc.Name(),
		"methods":  len(run.api.Methods),
		"types":    len(svc.Types),
		"diags":    len(diags),
	}).Debug("OpenAPI document imported")
	return &Result{Descriptors: set, Service: svc, Diags: diags}, nil
}

func (im *Importer) serviceName(doc *Document, ns string) string {
	switch {
	case im.opts.ServiceName != "":
		return im.opts.ServiceName
	case doc.Host != "":
		return doc.Host
	}
	return ns
}

func (r *importRun) location(line int) diag.Location {
	return diag.SimpleLocation{File: r.doc.Name(), Line: line}
}

func (r *importRun) operation(item *PathItem, op *Operation) {
	name := op.OperationID
	if name == "" {
		name = strings.ToLower(op.Method) + " " + item.Path
	}
	name = uniqueName(r.methods, pascalCase(name))
	selector := r.iface + "." + name

	params := r.parameters(item, op)
	path, vars := httpPath(r.doc.BasePath, item.Path)

	var props []Property
	declared := make(map[string]bool)
	hasForm := false
	var body *Property
	for _, p := range params {
		switch p.In {
		case "body":
			body = &Property{Name: p.Name, Schema: p.Schema}
			continue
		case "header", "cookie":
			continue
		case "path":
			declared[p.Name] = true
		case "formData":
			hasForm = true
		}
		props = append(props, Property{Name: p.Name, Schema: p.ValueSchema()})
	}
	for _, v := range vars {
		if !declared[v] {
			r.diags = append(r.diags, diag.Warningf(r.location(0), "path variable %q of %s %s has no parameter, assuming a string", v, op.Method, item.Path))
			props = append(props, Property{Name: v, Schema: &Schema{Type: "string"}})
		}
	}
	if rb, err := r.doc.requestBody(op.RequestBody); err != nil {
		r.diags = append(r.diags, diag.Errorf(r.location(0), "%s %s: %v", op.Method, item.Path, err))
	} else if rb != nil {
		body = &Property{Name: "body", Schema: rb.Content.JSONSchema()}
	}
	if body != nil {
		props = append(props, *body)
	}

	rule := &annotations.HttpRule{Selector: selector}
	request := r.types.MessageInfo(nil, "")
	if len(props) > 0 {
		request = r.types.MessageFromFields(name+"Request", props)
		switch {
		case body != nil && body.Schema != nil:
			fields := request.shape.fields
			rule.Body = fields[len(fields)-1].name
		case hasForm:
			rule.Body = "*"
		}
	}
	setPattern(rule, op.Method, snakeVars(path, vars))

	var response *TypeInfo
	if success := op.Responses.Success(); success != nil {
		response = r.types.MessageInfo(success.BodySchema(), name+"Response")
	} else {
		response = r.types.MessageInfo(nil, "")
	}

	r.api.Methods = append(r.api.Methods, &apipb.Method{
		Name:            name,
		RequestTypeUrl:  processors.TypeURL(request.TypeRef),
		ResponseTypeUrl: processors.TypeURL(response.TypeRef),
		Syntax:          typepb.Syntax_SYNTAX_PROTO3,
	})
	r.http = append(r.http, rule)
	if text := description(op); text != "" {
		r.docs = append(r.docs, &serviceconfig.DocumentationRule{Selector: selector, Description: text})
	}
}

// parameters merges path item parameters with operation parameters, which override
// them by name and location
func (r *importRun) parameters(item *PathItem, op *Operation) []*Parameter {
	var out []*Parameter
	index := make(map[string]int)
	for _, list := range [][]*Parameter{item.Parameters, op.Parameters} {
		for _, p := range list {
			resolved, err := r.doc.parameter(p)
			if err != nil {
				r.diags = append(r.diags, diag.Errorf(r.location(0), "%s %s: %v", op.Method, item.Path, err))
				continue
			}
			key := resolved.In + ":" + resolved.Name
			if i, ok := index[key]; ok {
				out[i] = resolved
				continue
			}
			index[key] = len(out)
			out = append(out, resolved)
		}
	}
	return out
}

func description(op *Operation) string {
	switch {
	case op.Summary != "" && op.Description != "":
		return op.Summary + "\n\n" + op.Description
	case op.Summary != "":
		return op.Summary
	}
	return op.Description
}

// httpPath prefixes the base path and returns the template variables in order
func httpPath(basePath, path string) (string, []string) {
	base := strings.TrimSuffix(basePath, "/")
	full := base + path
	var vars []string
	for rest := full; ; {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			break
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			break
		}
		vars = append(vars, rest[open+1:open+end])
		rest = rest[open+end+1:]
	}
	return full, vars
}

// snakeVars rewrites template variables to the field names they bind
func snakeVars(path string, vars []string) string {
	for _, v := range vars {
		path = strings.Replace(path, "{"+v+"}", "{"+snakeCase(v)+"}", 1)
	}
	return path
}

func setPattern(rule *annotations.HttpRule, method, path string) {
	switch method {
	case "GET":
		rule.Pattern = &annotations.HttpRule_Get{Get: path}
	case "PUT":
		rule.Pattern = &annotations.HttpRule_Put{Put: path}
	case "POST":
		rule.Pattern = &annotations.HttpRule_Post{Post: path}
	case "DELETE":
		rule.Pattern = &annotations.HttpRule_Delete{Delete: path}
	case "PATCH":
		rule.Pattern = &annotations.HttpRule_Patch{Patch: path}
	default:
		rule.Pattern = &annotations.HttpRule_Custom{Custom: &annotations.CustomHttpPattern{Kind: method, Path: path}}
	}
}

// namespace derives a package such as swagger_petstore.v1 from the document info
func namespace(info Info) string {
	ws := words(info.Title)
	for i, w := range ws {
		ws[i] = strings.ToLower(w)
	}
	pkg := identifier(strings.Join(ws, "_"))
	if len(ws) == 0 {
		pkg = "api"
	}
	return pkg + "." + majorVersion(info.Version)
}

func majorVersion(version string) string {
	v := strings.TrimPrefix(strings.ToLower(version), "v")
	end := strings.IndexFunc(v, func(r rune) bool { return !unicode.IsDigit(r) })
	if end < 0 {
		end = len(v)
	}
	if end == 0 {
		return "v1"
	}
	return "v" + v[:end]
}

func interfaceName(title string) string {
	if len(words(title)) == 0 {
		return "Api"
	}
	return pascalCase(title)
}
