package pathschema

import (
	"strings"

	"github.com/owasp-sbot/OSBot-Fast-API-sub000/utils"
)

// ParseFunctionName 将函数名解析为REST路由模板, 字面量段采用默认方案 LowerCaseDash
//
//	ParseFunctionName("user__user_id", []string{"user_id"})		=> /user/{user_id}
//	ParseFunctionName("file_id_info", []string{"file_id"})		=> /{file_id}/info
//	ParseFunctionName("FileInfo", nil)				=> /file-info
func ParseFunctionName(name string, params []string) string {
	return ParseWithSchema(name, params, Default())
}

// ParseWithSchema 将函数名解析为REST路由模板
//
// "__" 总是开启一个新的路由段; 每一段按下划线或大小写分词后从左到右贪婪匹配:
// 从当前位置开始的最长单词序列如果等于某个已声明参数(比较时均转为下划线形式),
// 则成为一个 {param} 段, 否则该单词为字面量. 连续的字面量单词组成一个路由段,
// 并由 schema 格式化.
//
//	@param	name	string			函数名或去除HTTP方法后的方法名
//	@param	params	[]string		已声明的路径参数名
//	@param	schema	RoutePathSchema	字面量段的格式化方案, nil 则采用默认方案
//	@return	string 以 / 开头的路由模板
func ParseWithSchema(name string, params []string, schema RoutePathSchema) string {
	if schema == nil {
		schema = Default()
	}

	lookup := make(map[string]string, len(params))
	for _, p := range params {
		lookup[strings.Join(Tokenize(p), TokenSeparator)] = p
	}

	segments := make([]string, 0)
	for _, group := range strings.Split(name, SegmentSeparator) {
		tokens := Tokenize(group)
		literals := make([]string, 0, len(tokens))
		flush := func() {
			if len(literals) == 0 {
				return
			}
			if seg := formatLiteral(literals, schema); seg != "" {
				segments = append(segments, seg)
			}
			literals = literals[:0]
		}

		for i := 0; i < len(tokens); {
			matched := false
			for j := len(tokens); j > i; j-- {
				if p, ok := lookup[strings.Join(tokens[i:j], TokenSeparator)]; ok {
					flush()
					segments = append(segments, "{"+p+"}")
					i, matched = j, true
					break
				}
			}
			if !matched {
				literals = append(literals, tokens[i])
				i++
			}
		}
		flush()
	}

	if len(segments) == 0 {
		return PathSeparator
	}
	return PathSeparator + strings.Join(segments, PathSeparator)
}

// Tokenize 将标识符拆分为小写单词, 下划线和大写字母均视为单词边界
//
//	FileId		=> file, id
//	user_id		=> user, id
//	HTTPStatus	=> http, status
func Tokenize(identifier string) []string {
	parts := strings.Split(utils.SnakeCase(identifier), TokenSeparator)
	return utils.SliceFilter(parts, func(span string) bool { return span != "" })
}

// 字面量单词先还原为大驼峰形式, 再交由 schema 分词并连接
func formatLiteral(tokens []string, schema RoutePathSchema) string {
	camel := make([]string, len(tokens))
	for i, tk := range tokens {
		camel[i] = UppercaseFirstLetter(tk)
	}
	spans := schema.Split(strings.Join(camel, ""))
	spans = utils.SliceFilter(spans, func(span string) bool { return span != "" })

	return strings.Trim(strings.Join(spans, schema.Connector()), PathSeparator)
}

// JoinPath 合并路由前缀与相对路由, 结果以 / 开头, 除根路由外不以 / 结尾, 且不包含 //
func JoinPath(prefix string, path string) string {
	spans := make([]string, 0)
	for _, s := range strings.Split(prefix+PathSeparator+path, PathSeparator) {
		if s != "" {
			spans = append(spans, s)
		}
	}
	return PathSeparator + strings.Join(spans, PathSeparator)
}

// ToFiberPath 将路由模板转换为fiber路由格式
//
//	/user/{user_id}	=> /user/:user_id
func ToFiberPath(template string) string {
	spans := strings.Split(template, PathSeparator)
	for i, s := range spans {
		if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
			spans[i] = PathParamPrefix + s[1:len(s)-1]
		}
	}
	return strings.Join(spans, PathSeparator)
}

// ToTemplatePath 将fiber路由转换为路由模板, 可选标志被去除
//
//	/user/:user_id?	=> /user/{user_id}
func ToTemplatePath(fiberPath string) string {
	spans := strings.Split(fiberPath, PathSeparator)
	for i, s := range spans {
		if strings.HasPrefix(s, PathParamPrefix) {
			spans[i] = "{" + strings.TrimSuffix(s[1:], OptionalQueryParamPrefix) + "}"
		}
	}
	return strings.Join(spans, PathSeparator)
}

// PathParams 按出现顺序返回路由模板中的参数名
func PathParams(template string) []string {
	params := make([]string, 0)
	for _, s := range strings.Split(template, PathSeparator) {
		if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") && len(s) > 2 {
			params = append(params, s[1:len(s)-1])
		}
	}
	return params
}
