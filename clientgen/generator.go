// Package clientgen 由服务契约生成 python 客户端
package clientgen

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/owasp-sbot/OSBot-Fast-API-sub000/contract"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/godantic"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/pathschema"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/utils"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("clientgen").ParseFS(templateFS, "templates/*.tmpl"))

// Header 生成文件的首行注释
const Header = "generated by fastapi-client, do not edit"

// RequestIdHeader 服务端返回的请求ID响应头
const RequestIdHeader = "fast-api-request-id"

// SchemasModule 模型定义所在的 python 模块
const SchemasModule = "schemas"

var ErrEmptyClientName = errors.New("clientgen: client name is empty")

var pyKeywords = []string{
	"False", "None", "True", "and", "as", "assert", "async", "await", "break", "class", "continue",
	"def", "del", "elif", "else", "except", "finally", "for", "from", "global", "if", "import", "in",
	"is", "lambda", "nonlocal", "not", "or", "pass", "raise", "return", "try", "while", "with", "yield",
}

// 生成的方法内部使用的变量名, 不能作为参数名
var reservedArgs = []string{"self", "path", "params", "headers", "body"}

var title = cases.Title(language.English, cases.NoLower)

// Generator python 客户端生成器
type Generator struct {
	ClientName string `description:"客户端包名, 同时作为主模块名称, snake_case"`
}

// NewGenerator 创建生成器, clientName 为空时由服务名称推导
func NewGenerator(clientName string) *Generator {
	return &Generator{ClientName: clientName}
}

type argData struct {
	Name     string // 参数原始名称
	PyName   string
	PyType   string
	Required bool
}

type methodData struct {
	Name       string
	HTTPMethod string
	Path       string // python f-string
	Summary    string
	Signature  []string
	Query      []*argData
	Headers    []*argData
	HasBody    bool
	ReturnType string
}

type moduleData struct {
	ModuleName string
	ClassName  string
	FileName   string
	PathPrefix string
	Methods    []*methodData
}

type fieldData struct {
	Name     string
	PyType   string
	Required bool
}

type schemaData struct {
	Name        string
	Description string
	Fields      []*fieldData
}

type clientData struct {
	Header          string
	ClientName      string
	ClassName       string
	EnvPrefix       string
	ServiceName     string
	Version         string
	BaseURL         string
	RequestIdHeader string
	Modules         []*moduleData
	Schemas         []*schemaData
}

type moduleFileData struct {
	*clientData
	Module *moduleData
}

// Generate 生成客户端全部文件, 文件名: 文件内容
func (g *Generator) Generate(sc *contract.ServiceContract) (map[string]string, error) {
	if sc == nil {
		return nil, errors.New("clientgen: service contract is nil")
	}
	clientName := g.ClientName
	if clientName == "" {
		clientName = pyIdent(sc.ServiceName)
	}
	if clientName == "" || clientName == "_" {
		return nil, ErrEmptyClientName
	}

	data := &clientData{
		Header:          Header,
		ClientName:      clientName,
		ClassName:       ClassName(clientName),
		EnvPrefix:       strings.ToUpper(clientName),
		ServiceName:     sc.ServiceName,
		Version:         sc.Version,
		BaseURL:         sc.BaseURL,
		RequestIdHeader: RequestIdHeader,
		Modules:         make([]*moduleData, 0, len(sc.Modules)),
		Schemas:         schemasOf(sc.Schemas),
	}
	for _, m := range sc.Modules {
		data.Modules = append(data.Modules, moduleOf(data, m))
	}

	files := make(map[string]string)
	render := func(name, tmpl string, v any) error {
		var buf bytes.Buffer
		if err := templates.ExecuteTemplate(&buf, tmpl, v); err != nil {
			return fmt.Errorf("clientgen: render %s: %w", name, err)
		}
		files[name] = buf.String()
		return nil
	}

	if err := render("__init__.py", "init.py.tmpl", data); err != nil {
		return nil, err
	}
	if err := render(clientName+"__config.py", "config.py.tmpl", data); err != nil {
		return nil, err
	}
	if err := render(clientName+"__requests.py", "requests.py.tmpl", data); err != nil {
		return nil, err
	}
	if err := render(clientName+".py", "client.py.tmpl", data); err != nil {
		return nil, err
	}
	if err := render(SchemasModule+".py", "schemas.py.tmpl", data); err != nil {
		return nil, err
	}
	for _, m := range data.Modules {
		if err := render(m.FileName+".py", "module.py.tmpl", &moduleFileData{clientData: data, Module: m}); err != nil {
			return nil, err
		}
	}

	return files, nil
}

// WriteTo 将生成的文件写入目录, 目录不存在时创建
func WriteTo(dir string, files map[string]string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, name := range utils.SortedKeys(files) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(files[name]), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// ClassName 将 snake_case 名称转换为 python 类名: files_api => FilesApi
func ClassName(name string) string {
	spans := strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == '-' || r == ' ' || r == '.' })
	for i, s := range spans {
		spans[i] = title.String(s)
	}
	return strings.Join(spans, "")
}

// 转换为合法的 python 标识符
func pyIdent(name string) string {
	name = utils.SnakeCase(strings.TrimSpace(name))
	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	ident := b.String()
	if utils.Has(pyKeywords, ident) {
		ident += "_"
	}
	return ident
}

// 模块文件名不能与客户端的其它文件重名
func moduleOf(data *clientData, m *contract.ModuleContract) *moduleData {
	md := &moduleData{
		ModuleName: pyIdent(m.ModuleName),
		ClassName:  data.ClassName + "__" + ClassName(m.ModuleName),
		PathPrefix: utils.Ternary(m.PathPrefix != "", m.PathPrefix, pathschema.PathSeparator),
		Methods:    make([]*methodData, 0, len(m.Endpoints)),
	}
	md.FileName = md.ModuleName
	if md.FileName == SchemasModule || strings.HasPrefix(md.FileName, data.ClientName) {
		md.FileName = data.ClientName + "__" + md.FileName + "__routes"
	}
	for _, ep := range m.Endpoints {
		md.Methods = append(md.Methods, methodOf(ep))
	}
	return md
}

func methodOf(ep *contract.EndpointContract) *methodData {
	md := &methodData{
		Name:       pyIdent(ep.OperationID),
		HTTPMethod: ep.Method,
		Path:       ep.PathPattern,
		Summary:    strings.ReplaceAll(ep.Summary, `"""`, `'''`),
		Signature:  make([]string, 0),
		Query:      make([]*argData, 0),
		Headers:    make([]*argData, 0),
		HasBody:    ep.HasBody(),
		ReturnType: pyType(ep.ResponseSchema),
	}

	required := make([]string, 0)
	optional := make([]string, 0)
	add := func(arg *argData) {
		if arg.Required {
			required = append(required, arg.PyName+": "+arg.PyType)
		} else {
			optional = append(optional, arg.PyName+": "+arg.PyType+" | None = None")
		}
	}

	for _, p := range ep.PathParams {
		arg := newArg(p)
		md.Path = strings.ReplaceAll(md.Path, "{"+p.Name+"}", "{"+arg.PyName+"}")
		add(arg)
	}
	for _, p := range ep.QueryParams {
		arg := newArg(p)
		md.Query = append(md.Query, arg)
		add(arg)
	}
	for _, p := range ep.HeaderParams {
		arg := newArg(p)
		md.Headers = append(md.Headers, arg)
		add(arg)
	}
	if md.HasBody {
		add(&argData{Name: "body", PyName: "body", PyType: pyType(ep.RequestSchema), Required: ep.RequestRequired})
	}

	md.Signature = append(required, optional...)
	return md
}

func newArg(p *contract.EndpointParam) *argData {
	name := pyIdent(p.Name)
	if utils.Has(reservedArgs, name) {
		name += "_"
	}
	return &argData{Name: p.Name, PyName: name, PyType: pyType(p.Type), Required: p.Required}
}

// python 类型注解, 模型引用带有模块前缀
func pyType(ref *contract.TypeRef) string {
	if ref == nil {
		return "Any"
	}
	switch ref.Type {
	case godantic.ArrayType:
		if ref.Items != nil {
			return "list[" + pyType(ref.Items) + "]"
		}
	case godantic.ObjectType:
		if ref.Ref != "" {
			return SchemasModule + "." + ClassName(ref.Ref)
		}
		if ref.Items != nil {
			return "dict[str, " + pyType(ref.Items) + "]"
		}
	}
	return ref.PyType()
}

// 将 json schema 转换为 dataclass 定义, 必须字段在前
func schemasOf(schemas map[string]map[string]any) []*schemaData {
	out := make([]*schemaData, 0, len(schemas))
	for _, name := range utils.SortedKeys(schemas) {
		schema := schemas[name]
		sd := &schemaData{Name: ClassName(name), Fields: make([]*fieldData, 0)}
		if desc, ok := schema["description"].(string); ok {
			sd.Description = strings.ReplaceAll(desc, `"""`, `'''`)
		}

		required := stringsOf(schema["required"])
		props, _ := schema["properties"].(map[string]any)
		optional := make([]*fieldData, 0)
		for _, prop := range utils.SortedKeys(props) {
			fd := &fieldData{Name: pyIdent(prop), PyType: schemaPyType(props[prop]), Required: utils.Has(required, prop)}
			if fd.Required {
				sd.Fields = append(sd.Fields, fd)
			} else {
				fd.PyType += " | None"
				optional = append(optional, fd)
			}
		}
		sd.Fields = append(sd.Fields, optional...)
		out = append(out, sd)
	}
	return out
}

// json schema 片段对应的 python 类型, 模型引用在同一模块内
func schemaPyType(v any) string {
	prop, ok := v.(map[string]any)
	if !ok {
		return "Any"
	}
	if ref, ok := prop[godantic.RefName].(string); ok {
		return ClassName(strings.TrimPrefix(ref, godantic.RefPrefix))
	}
	dt := godantic.OpenApiDataType(fmt.Sprint(prop["type"]))
	switch dt {
	case godantic.ArrayType:
		if items, ok := prop["items"]; ok {
			return "list[" + schemaPyType(items) + "]"
		}
	case godantic.ObjectType:
		if values, ok := prop["additionalProperties"]; ok {
			return "dict[str, " + schemaPyType(values) + "]"
		}
	}
	if prop["type"] == nil {
		return "Any"
	}
	return contract.PyType(dt)
}

// 兼容 []string 和反序列化得到的 []any
func stringsOf(v any) []string {
	switch vs := v.(type) {
	case []string:
		return vs
	case []any:
		out := make([]string, 0, len(vs))
		for _, s := range vs {
			out = append(out, fmt.Sprint(s))
		}
		return out
	}
	return nil
}
