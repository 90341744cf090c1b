package godantic

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type address struct {
	City string `json:"city" validate:"required"`
	Zip  *int   `json:"zip,omitempty" validate:"omitempty,gte=1000,lte=9999"`
}

type user struct {
	Name    string            `json:"name" validate:"required,min=1,max=32" description:"user name"`
	Age     int               `json:"age" default:"18" validate:"gte=0"`
	Role    string            `json:"role" validate:"oneof=admin guest"`
	Tags    []string          `json:"tags" default:"[\"a\"]"`
	Address *address          `json:"address" validate:"required"`
	History []address         `json:"history"`
	Extra   map[string]int    `json:"extra,omitempty"`
	Any     any               `json:"any"`
	Ignored string            `json:"-"`
	Labels  map[string]string `json:"labels"`
}

func (u *user) SchemaDesc() string { return "a user" }

type node struct {
	Value    string  `json:"value"`
	Children []*node `json:"children"`
}

func TestStructReflect(t *testing.T) {
	md := StructReflect(reflect.TypeOf(&user{}))
	require.NotNil(t, md)

	assert.Equal(t, "user", md.Name())
	assert.Equal(t, "a user", md.SchemaDesc())
	assert.Len(t, md.Fields(), 9)

	tests := []struct {
		name     string
		dataType OpenApiDataType
		required bool
		optional bool
		def      any
	}{
		{name: "name", dataType: StringType, required: true},
		{name: "age", dataType: IntegerType, def: int64(18)},
		{name: "tags", dataType: ArrayType, def: []any{"a"}},
		{name: "address", dataType: ObjectType, required: true, optional: true},
		{name: "extra", dataType: ObjectType, optional: true},
		{name: "any", dataType: AnyType, optional: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := md.Field(tt.name)
			require.NotNil(t, f)
			assert.Equal(t, tt.dataType, f.DataType)
			assert.Equal(t, tt.required, f.Required)
			assert.Equal(t, tt.optional, f.Optional)
			if tt.def != nil {
				assert.True(t, f.HasDefault)
				assert.Equal(t, tt.def, f.Default)
			}
		})
	}

	assert.Nil(t, md.Field("Ignored"))
	assert.Nil(t, StructReflect(reflect.TypeOf(1)))
	assert.Same(t, md, StructReflect(reflect.TypeOf(user{})))
}

func TestMetadata_Schema(t *testing.T) {
	md := StructReflect(reflect.TypeOf(user{}))
	schema := md.Schema()

	assert.Equal(t, "user", schema["title"])
	assert.Equal(t, []string{"name", "address"}, schema["required"])

	props := schema["properties"].(map[string]any)

	name := props["name"].(map[string]any)
	assert.Equal(t, StringType, name["type"])
	assert.Equal(t, int64(1), name["minLength"])
	assert.Equal(t, int64(32), name["maxLength"])
	assert.Equal(t, "user name", name["description"])

	role := props["role"].(map[string]any)
	assert.Equal(t, []any{"admin", "guest"}, role["enum"])

	addr := props["address"].(map[string]any)
	assert.Equal(t, RefPrefix+"address", addr[RefName])

	history := props["history"].(map[string]any)
	assert.Equal(t, map[string]any{RefName: RefPrefix + "address"}, history["items"])

	extra := props["extra"].(map[string]any)
	assert.Equal(t, map[string]any{"type": IntegerType}, extra["additionalProperties"])

	deps := md.Dependencies()
	names := make([]string, 0)
	for _, d := range deps {
		names = append(names, d.Name())
	}
	assert.ElementsMatch(t, []string{"user", "address"}, names)
}

func TestStructReflect_SelfReference(t *testing.T) {
	md := StructReflect(reflect.TypeOf(node{}))
	require.NotNil(t, md)

	children := md.Field("children")
	require.NotNil(t, children)
	assert.Same(t, md, children.Elem.Inner)
	assert.Len(t, md.Dependencies(), 1)
}

func TestSetModelName(t *testing.T) {
	rt := reflect.StructOf([]reflect.StructField{
		{Name: "Id", Type: reflect.TypeOf(""), Tag: `json:"id"`},
	})
	SetModelName(rt, "Dynamic")

	md := StructReflect(rt)
	assert.Equal(t, "Dynamic", md.Name())
	assert.Equal(t, "Dynamic", ModelName(rt))
}
