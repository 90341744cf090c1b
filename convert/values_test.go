package convert

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owasp-sbot/OSBot-Fast-API-sub000/godantic"
	"github.com/owasp-sbot/OSBot-Fast-API-sub000/typesafe"
)

func TestObjectToValue_Model(t *testing.T) {
	user, _ := newClasses()
	obj, err := user.New(map[string]any{
		"name":    "bob",
		"tags":    []any{"a"},
		"scores":  map[string]any{"math": 9.5},
		"address": map[string]any{"city": "Lisbon"},
		"history": []any{map[string]any{"city": "Porto", "zip": 4000}},
	})
	require.NoError(t, err)

	rt, err := TypeSafeToModel(user)
	require.NoError(t, err)

	rv, err := ObjectToValue(obj, reflect.PointerTo(rt))
	require.NoError(t, err)
	require.Equal(t, reflect.Ptr, rv.Kind())

	// 转换后的模型可以直接校验
	assert.Empty(t, godantic.Validate(rv.Interface()))

	elem := rv.Elem()
	assert.Equal(t, "bob", elem.FieldByName("Name").Elem().String())
	assert.Equal(t, int64(18), elem.FieldByName("Age").Elem().Int())
	assert.True(t, elem.FieldByName("Nickname").IsNil())
	assert.Equal(t, "Lisbon", elem.FieldByName("Address").Elem().FieldByName("City").Elem().String())
	assert.Equal(t, 9.5, elem.FieldByName("Scores").MapIndex(reflect.ValueOf("math")).Float())

	history := elem.FieldByName("History")
	require.Equal(t, 1, history.Len())
	assert.Equal(t, int64(4000), history.Index(0).Elem().FieldByName("Zip").Elem().Int())
}

func TestObjectTo_Record(t *testing.T) {
	obj, err := ValueToObject(recordUser{
		Name:    "ann",
		Age:     40,
		Tags:    []string{"x"},
		Address: recordAddress{City: "Faro"},
		Others:  []*recordAddress{{City: "Braga"}},
		Data:    []byte("raw"),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "recordUser", obj.Class().Name)
	assert.Equal(t, int64(40), obj.MustGet("age"))
	assert.Equal(t, "raw", obj.MustGet("data"))
	assert.Nil(t, obj.MustGet("meta"))

	back, err := ObjectTo[recordUser](obj)
	require.NoError(t, err)
	assert.Equal(t, "ann", back.Name)
	assert.Equal(t, 40, back.Age)
	assert.Equal(t, []string{"x"}, back.Tags)
	assert.Equal(t, "Faro", back.Address.City)
	assert.Nil(t, back.Address.Zip)
	require.Len(t, back.Others, 1)
	assert.Equal(t, "Braga", back.Others[0].City)
	assert.Equal(t, []byte("raw"), back.Data)
}

func TestObjectTo_Overflow(t *testing.T) {
	type counter struct {
		Count uint8   `json:"count"`
		Small int8    `json:"small"`
		Ratio float32 `json:"ratio"`
	}
	class := typesafe.NewClass("Counter",
		typesafe.IntField("count"),
		typesafe.IntField("small"),
		typesafe.FloatField("ratio"),
	)

	tests := []struct {
		name    string
		values  map[string]any
		wantErr bool
	}{
		{name: "in-range", values: map[string]any{"count": 255, "small": -128, "ratio": 0.5}},
		{name: "negative-unsigned", values: map[string]any{"count": -1}, wantErr: true},
		{name: "unsigned-overflow", values: map[string]any{"count": 256}, wantErr: true},
		{name: "signed-overflow", values: map[string]any{"small": 300}, wantErr: true},
		{name: "float32-overflow", values: map[string]any{"ratio": 1e300}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := class.New(tt.values)
			require.NoError(t, err)

			got, err := ObjectTo[counter](obj)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, counter{Count: 255, Small: -128, Ratio: 0.5}, got)
		})
	}
}

func TestValueToObject_Errors(t *testing.T) {
	_, err := ValueToObject(nil, nil)
	assert.Error(t, err)

	_, err = ValueToObject(3, nil)
	assert.Error(t, err)

	user, _ := newClasses()
	_, err = ValueToObject(struct {
		Name int `json:"name"`
	}{Name: 1}, user)
	assert.Error(t, err)
}

func TestToPlain(t *testing.T) {
	zip := 1000
	got := ToPlain(reflect.ValueOf(&recordAddress{City: "Faro", Zip: &zip}))
	assert.Equal(t, map[string]any{"city": "Faro", "zip": 1000}, got)
	assert.Nil(t, ToPlain(reflect.ValueOf((*recordAddress)(nil))))
	assert.Equal(t, []any{1, 2}, ToPlain(reflect.ValueOf([]int{1, 2})))
}
