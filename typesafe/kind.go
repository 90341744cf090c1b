package typesafe

import "fmt"

// Kind 字段的值类型
type Kind int

const (
	Any Kind = iota
	String
	Int
	Float
	Bool
	List
	Dict
	ObjectKind
)

var kindNames = [...]string{
	Any:        "any",
	String:     "str",
	Int:        "int",
	Float:      "float",
	Bool:       "bool",
	List:       "list",
	Dict:       "dict",
	ObjectKind: "object",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind 从名称解析值类型, 未知名称返回 Any
func ParseKind(name string) Kind {
	for k, n := range kindNames {
		if n == name {
			return Kind(k)
		}
	}
	return Any
}

// TypeError 类型检查错误
type TypeError struct {
	Class string `json:"class"`
	Field string `json:"field"`
	Want  string `json:"want"`
	Got   string `json:"got"`
}

func (e *TypeError) Error() string {
	if e.Want == "" {
		return fmt.Sprintf("typesafe: %s has no attribute '%s'", e.Class, e.Field)
	}
	return fmt.Sprintf("typesafe: %s.%s expected %s, got %s", e.Class, e.Field, e.Want, e.Got)
}
