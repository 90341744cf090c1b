package contract

import (
	"go/ast"
	"go/parser"
	"go/token"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/owasp-sbot/OSBot-Fast-API-sub000/utils"
)

// ValidationErrorCode 存在入参的路由总是可能返回 422
const ValidationErrorCode = http.StatusUnprocessableEntity

// 可以识别的错误构造函数, 第一个参数为状态码
var errorConstructors = []string{"NewHTTPError", "NewError"}

// 可以识别的状态码常量所在的包
var statusPackages = []string{"http", "fiber"}

// statusNames 状态码常量名: 状态码, 如 StatusNotFound: 404
var statusNames = func() map[string]int {
	names := map[string]int{"StatusTeapot": http.StatusTeapot}
	for code := 400; code < 600; code++ {
		text := http.StatusText(code)
		if text == "" {
			continue
		}
		name := strings.NewReplacer(" ", "", "-", "", "'", "").Replace(text)
		names["Status"+name] = code
	}
	return names
}()

// 源码解析缓存
var sources = &sourceCache{files: make(map[string]*parsedFile)}

type parsedFile struct {
	fset *token.FileSet
	file *ast.File
	err  error
}

type sourceCache struct {
	mu    sync.Mutex
	files map[string]*parsedFile
}

func (c *sourceCache) parse(filename string) *parsedFile {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pf, ok := c.files[filename]; ok {
		return pf
	}
	pf := &parsedFile{fset: token.NewFileSet()}
	pf.file, pf.err = parser.ParseFile(pf.fset, filename, nil, parser.SkipObjectResolution)
	c.files[filename] = pf
	return pf
}

// ScanErrorCodes 扫描函数的源码, 找出其可能返回的错误状态码, 源码不可用时返回空
//
// 识别以下形式:
//
//	fastapi.NewHTTPError(404, ...)
//	fiber.NewError(http.StatusConflict, ...)
//	http.StatusForbidden / fiber.StatusForbidden / fiber.ErrForbidden
func ScanErrorCodes(fn any) []int {
	filename, line := utils.ReflectFuncSource(fn)
	if filename == "" || line == 0 {
		return nil
	}
	pf := sources.parse(filename)
	if pf.err != nil {
		return nil
	}

	body := findFunc(pf, line)
	if body == nil {
		return nil
	}

	codes := make([]int, 0)
	astutil.Apply(body, func(cur *astutil.Cursor) bool {
		switch n := cur.Node().(type) {
		case *ast.CallExpr:
			if isErrorConstructor(n.Fun) && len(n.Args) > 0 {
				if code, ok := statusCodeOf(n.Args[0]); ok {
					codes = append(codes, code)
				}
			}
		case *ast.SelectorExpr:
			if code, ok := statusCodeOf(n); ok && code >= 400 {
				codes = append(codes, code)
			}
		}
		return true
	}, nil)

	return normalizeCodes(codes)
}

// 查找包含给定行的最内层函数体.
// 函数入口所在的行通常是函数声明行, 但不需要栈帧的叶子函数入口位于函数体的第一条语句,
// 因此起始行相同的函数优先, 其次取跨度最小的函数
func findFunc(pf *parsedFile, line int) *ast.BlockStmt {
	var (
		body  *ast.BlockStmt
		exact bool
		span  int
	)
	ast.Inspect(pf.file, func(n ast.Node) bool {
		if n == nil {
			return false
		}
		first, last := pf.fset.Position(n.Pos()).Line, pf.fset.Position(n.End()).Line
		if first > line || last < line {
			return false
		}
		var fb *ast.BlockStmt
		switch fn := n.(type) {
		case *ast.FuncDecl:
			fb = fn.Body
		case *ast.FuncLit:
			fb = fn.Body
		}
		if fb == nil {
			return true
		}
		isExact := first == line
		if body == nil || (isExact && !exact) || (isExact == exact && last-first <= span) {
			body, exact, span = fb, isExact, last-first
		}
		return true
	})
	return body
}

func isErrorConstructor(fun ast.Expr) bool {
	switch f := astutil.Unparen(fun).(type) {
	case *ast.Ident:
		return utils.Has(errorConstructors, f.Name)
	case *ast.SelectorExpr:
		return utils.Has(errorConstructors, f.Sel.Name)
	}
	return false
}

// 解析状态码字面量或常量
func statusCodeOf(expr ast.Expr) (int, bool) {
	switch e := astutil.Unparen(expr).(type) {
	case *ast.BasicLit:
		if e.Kind != token.INT {
			return 0, false
		}
		code, err := strconv.Atoi(e.Value)
		if err != nil || code < 100 || code > 599 {
			return 0, false
		}
		return code, true
	case *ast.SelectorExpr:
		pkg, ok := e.X.(*ast.Ident)
		if !ok || !utils.Has(statusPackages, pkg.Name) {
			return 0, false
		}
		name := e.Sel.Name
		if pkg.Name == "fiber" && strings.HasPrefix(name, "Err") {
			name = "Status" + strings.TrimPrefix(name, "Err")
		}
		code, ok := statusNames[name]
		return code, ok
	}
	return 0, false
}

// 去重并升序排列
func normalizeCodes(codes []int) []int {
	codes = utils.Unique(codes)
	sort.Ints(codes)
	return codes
}
