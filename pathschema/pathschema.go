// Package pathschema 由函数名或方法名推导路由
package pathschema

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	PathParamPrefix          = ":" // fiber 路径参数起始字符
	PathSeparator            = "/"
	OptionalQueryParamPrefix = "?" // fiber 可选参数标志
	SegmentSeparator         = "__"
	TokenSeparator           = "_"
)

var wordRule = regexp.MustCompile(`^[^A-Z]+|[A-Z][a-z0-9]*`)

// RoutePathSchema 路由格式化方案
type RoutePathSchema interface {
	Name() string                       // 方案名称
	Connector() string                  // 单词之间的连接符
	Split(relativePath string) []string // 将相对路由分词，relativePath 为去除 Http.Method 后的方法名
}

// Schema 由分词函数和连接符定义的格式化方案
type Schema struct {
	name      string
	connector string
	split     func(relativePath string) []string
}

func (s *Schema) Name() string { return s.name }

func (s *Schema) Connector() string { return s.connector }

func (s *Schema) Split(relativePath string) []string { return s.split(relativePath) }

// NewSchema 创建格式化方案
//
//	@param	name		string						方案名称
//	@param	connector	string						单词连接符
//	@param	split		func(string) []string		分词函数
func NewSchema(name, connector string, split func(relativePath string) []string) *Schema {
	return &Schema{name: name, connector: connector, split: split}
}

func mapWords(fn func(word string) string) func(string) []string {
	return func(relativePath string) []string {
		words := SplitWords(relativePath)
		for i := range words {
			words[i] = fn(words[i])
		}
		return words
	}
}

func whole(fn func(s string) string) func(string) []string {
	return func(relativePath string) []string { return []string{fn(relativePath)} }
}

var (
	// LowerCamelCase 小驼峰
	//
	//	ClipboardContent	=> clipboardContent
	LowerCamelCase = NewSchema("LowerCamelCase", "", whole(LowercaseFirstLetter))

	// LowerCase 全小写
	//
	//	ClipboardContent	=> clipboardcontent
	LowerCase = NewSchema("LowerCase", "", mapWords(strings.ToLower))

	// UnixDash 短横线
	//
	//	ClipboardContent	=> Clipboard-Content
	UnixDash = NewSchema("UnixDash", "-", SplitWords)

	// Underline 下划线
	//
	//	ClipboardContent	=> Clipboard_Content
	Underline = NewSchema("Underline", "_", SplitWords)

	// Backslash 每一个单词都作为一个路由段
	//
	//	ClipboardContent	=> Clipboard/Content
	Backslash = NewSchema("Backslash", PathSeparator, SplitWords)

	// Original 原始不变
	Original = NewSchema("Original", "", whole(func(s string) string { return s }))
)

// AddPrefix 在每一个单词前添加前缀，通常与其他方案组合使用
func AddPrefix(prefix string) *Schema {
	return NewSchema("AddPrefix", "", mapWords(func(w string) string { return prefix + w }))
}

// AddSuffix 在每一个单词后添加后缀，通常与其他方案组合使用
func AddSuffix(suffix string) *Schema {
	return NewSchema("AddSuffix", "", mapWords(func(w string) string { return w + suffix }))
}

// NewComposition 组合多个方案, 连接符为全部方案连接符的拼接.
//
// 第一个方案负责分词, 之后每一个单词依次代入全部方案的 Split 并直接拼接.
// 如果方案为空，则效果等同于 Original
func NewComposition(schemas ...RoutePathSchema) *Schema {
	var names, connector strings.Builder
	for i, s := range schemas {
		if i > 0 {
			names.WriteString(",")
		}
		names.WriteString(s.Name())
		connector.WriteString(s.Connector())
	}

	return NewSchema("Composition("+names.String()+")", connector.String(), func(relativePath string) []string {
		if len(schemas) == 0 {
			return []string{relativePath}
		}
		words := schemas[0].Split(relativePath)
		for i := range words {
			for _, s := range schemas {
				words[i] = strings.Join(s.Split(words[i]), "")
			}
		}
		return words
	})
}

// LowerCaseDash 全小写-短横线
var LowerCaseDash = NewComposition(LowerCase, UnixDash)

// LowerCaseBackslash 全小写, 每个单词一段
var LowerCaseBackslash = NewComposition(LowerCase, Backslash)

// Default 默认路由格式化方案, 全小写-短横线
func Default() RoutePathSchema { return LowerCaseDash }

// Format 按照方案格式化相对路由并添加前缀
//
//	Format("/api", "ClipboardContent", LowerCaseDash)	=> /api/clipboard-content
func Format(prefix string, relativePath string, schema RoutePathSchema) string {
	if relativePath == "" {
		return prefix
	}
	if !strings.HasSuffix(prefix, PathSeparator) {
		prefix += PathSeparator
	}
	return prefix + strings.Join(schema.Split(relativePath), schema.Connector())
}

// SplitWords 按大写字母切分单词, 数字归属于前一个单词, 首个大写字母之前的字符构成一个单词.
// 无法切分时返回只包含 s 的数组
//
//	File2Dir		=> File2, Dir
//	clipboardContent	=> clipboard, Content
func SplitWords(s string) []string {
	if words := wordRule.FindAllString(s, -1); words != nil {
		return words
	}
	return []string{s}
}

func mapFirstRune(s string, fn func(rune) rune) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(fn(r)) + s[size:]
}

// LowercaseFirstLetter 首字母小写
func LowercaseFirstLetter(s string) string { return mapFirstRune(s, unicode.ToLower) }

// UppercaseFirstLetter 首字母大写
func UppercaseFirstLetter(s string) string { return mapFirstRune(s, unicode.ToTitle) }
