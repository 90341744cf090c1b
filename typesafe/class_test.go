package typesafe

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserClass() (*Class, *Class) {
	address := NewClass("Address",
		StringField("city"),
		IntField("zip").Opt(),
	)
	user := NewClass("User",
		StringField("name"),
		IntField("age").WithDefault(18),
		FloatField("score"),
		BoolField("active"),
		ListField("tags", StringField("")),
		DictField("meta", nil),
		ObjectField("address", address),
		ListField("history", ObjectField("", address)),
		AnyField("extra"),
	)
	return user, address
}

func TestClass_New(t *testing.T) {
	user, address := newUserClass()

	obj, err := user.New(map[string]any{
		"name":    "bob",
		"tags":    []string{"a", "b"},
		"address": map[string]any{"city": "Lisbon"},
		"history": []any{map[string]any{"city": "Porto", "zip": float64(4000)}},
	})
	require.NoError(t, err)

	assert.Equal(t, "bob", obj.MustGet("name"))
	assert.Equal(t, int64(18), obj.MustGet("age"))
	assert.Equal(t, float64(0), obj.MustGet("score"))
	assert.Equal(t, false, obj.MustGet("active"))
	assert.Equal(t, []any{"a", "b"}, obj.MustGet("tags"))
	assert.Equal(t, map[string]any{}, obj.MustGet("meta"))
	assert.Nil(t, obj.MustGet("extra"))

	addr, ok := obj.MustGet("address").(*Object)
	require.True(t, ok)
	assert.Same(t, address, addr.Class())
	assert.Nil(t, addr.MustGet("zip"))

	history := obj.MustGet("history").([]any)
	require.Len(t, history, 1)
	assert.Equal(t, int64(4000), history[0].(*Object).MustGet("zip"))
}

func TestClass_NewErrors(t *testing.T) {
	user, _ := newUserClass()

	tests := []struct {
		name   string
		values map[string]any
		want   TypeError
	}{
		{
			name:   "unknown attribute",
			values: map[string]any{"nope": 1},
			want:   TypeError{Class: "User", Field: "nope"},
		},
		{
			name:   "wrong scalar",
			values: map[string]any{"name": 1},
			want:   TypeError{Class: "User", Field: "name", Want: "str", Got: "int"},
		},
		{
			name:   "fractional int",
			values: map[string]any{"age": 1.5},
			want:   TypeError{Class: "User", Field: "age", Want: "int", Got: "float64"},
		},
		{
			name:   "wrong list element",
			values: map[string]any{"tags": []any{"a", 2}},
			want:   TypeError{Class: "User", Field: "tags", Want: "list[str]", Got: "list"},
		},
		{
			name:   "nested error keeps nested class",
			values: map[string]any{"address": map[string]any{"city": true}},
			want:   TypeError{Class: "Address", Field: "city", Want: "str", Got: "bool"},
		},
		{
			name:   "int out of range",
			values: map[string]any{"age": 1e30},
			want:   TypeError{Class: "User", Field: "age", Want: "int", Got: "float64"},
		},
		{
			name:   "int at 2^63",
			values: map[string]any{"age": float64(math.MaxInt64)},
			want:   TypeError{Class: "User", Field: "age", Want: "int", Got: "float64"},
		},
		{
			name:   "uint out of range",
			values: map[string]any{"age": uint64(math.MaxUint64)},
			want:   TypeError{Class: "User", Field: "age", Want: "int", Got: "uint64"},
		},
		{
			name:   "nil for required",
			values: map[string]any{"name": nil},
			want:   TypeError{Class: "User", Field: "name", Want: "str", Got: "None"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := user.New(tt.values)
			var te *TypeError
			require.True(t, errors.As(err, &te), "err = %v", err)
			assert.Equal(t, tt.want, *te)
		})
	}
}

func TestClass_DecodeIntRange(t *testing.T) {
	counter := NewClass("Counter", IntField("n"))

	obj, err := counter.Decode([]byte(`{"n":-9007199254740992}`))
	require.NoError(t, err)
	assert.Equal(t, int64(-9007199254740992), obj.MustGet("n"))

	_, err = counter.Decode([]byte(`{"n":1e30}`))
	var te *TypeError
	require.True(t, errors.As(err, &te), "err = %v", err)
	assert.Equal(t, "n", te.Field)
}

func TestClass_NewSelfReference(t *testing.T) {
	tests := []struct {
		name     string
		optional bool
		values   map[string]any
		wantErr  bool
	}{
		{name: "required-missing", values: nil, wantErr: true},
		{name: "required-nested-missing", values: map[string]any{"next": map[string]any{}}, wantErr: true},
		{name: "optional-missing", optional: true, values: nil},
		{name: "optional-nested", optional: true, values: map[string]any{"next": map[string]any{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := NewClass("Node", StringField("value"))
			next := ObjectField("next", node)
			if tt.optional {
				next.Opt()
			}
			node.Add(next)

			obj, err := node.New(tt.values)
			if tt.wantErr {
				var te *TypeError
				require.True(t, errors.As(err, &te), "err = %v", err)
				assert.Equal(t, TypeError{Class: "Node", Field: "next", Want: "Node", Got: "None"}, *te)
				assert.NotNil(t, node.Zero())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "", obj.MustGet("value"))
		})
	}
}

func TestObject_SetGet(t *testing.T) {
	user, _ := newUserClass()
	obj := user.Zero()

	require.NoError(t, obj.Set("name", "alice"))
	require.NoError(t, obj.Set("age", 30))
	require.NoError(t, obj.Set("score", 3))
	assert.Equal(t, int64(30), obj.MustGet("age"))
	assert.Equal(t, float64(3), obj.MustGet("score"))

	assert.Error(t, obj.Set("age", "30"))
	assert.Error(t, obj.Set("missing", 1))

	_, err := obj.Get("missing")
	assert.Error(t, err)
	assert.Panics(t, func() { obj.MustGet("missing") })
}

func TestObject_JSON(t *testing.T) {
	user, _ := newUserClass()
	obj, err := user.Decode([]byte(`{"name":"bob","address":{"city":"Lisbon","zip":1000}}`))
	require.NoError(t, err)

	m := obj.Map()
	assert.Equal(t, map[string]any{"city": "Lisbon", "zip": int64(1000)}, m["address"])

	data, err := obj.MarshalJSON()
	require.NoError(t, err)

	again := user.Zero()
	require.NoError(t, again.UnmarshalJSON(data))
	assert.Equal(t, m, again.Map())

	_, err = user.Decode([]byte(`{"name":`))
	assert.Error(t, err)

	var bare Object
	assert.Error(t, bare.UnmarshalJSON(data))
}

func TestKind(t *testing.T) {
	assert.Equal(t, "str", String.String())
	assert.Equal(t, Dict, ParseKind("dict"))
	assert.Equal(t, Any, ParseKind("unknown"))
	assert.Equal(t, "Kind(42)", Kind(42).String())
}

func TestRegistry(t *testing.T) {
	user, _ := newUserClass()
	r := NewRegistry()
	r.Register(user)

	names := make([]string, 0)
	for _, c := range r.Classes() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Address", "User"}, names)
	assert.NotNil(t, r.Get("Address"))
}
