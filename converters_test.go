package aeris

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConverterRegistryBool(t *testing.T) {
	r := NewConverterRegistry()
	v, err := r.Convert("TRUE", reflect.TypeOf(false))
	require.NoError(t, err)
	assert.Equal(t, true, v.Interface())

	_, err = r.Convert("nope", reflect.TypeOf(false))
	assert.Error(t, err)
}

func TestConverterRegistryInt(t *testing.T) {
	r := NewConverterRegistry()
	v, err := r.Convert("42", reflect.TypeOf(int(0)))
	require.NoError(t, err)
	assert.Equal(t, 42, v.Interface())
}

func TestConverterRegistryFloat(t *testing.T) {
	r := NewConverterRegistry()
	v, err := r.Convert("3.5", reflect.TypeOf(float64(0)))
	require.NoError(t, err)
	assert.Equal(t, 3.5, v.Interface())
}

func TestConverterRegistryUUID(t *testing.T) {
	r := NewConverterRegistry()
	id := uuid.New()
	v, err := r.Convert(id.String(), uuidType)
	require.NoError(t, err)
	assert.Equal(t, id, v.Interface())
}

func TestConverterRegistryDateForms(t *testing.T) {
	r := NewConverterRegistry()

	v, err := r.Convert("2024-01-02", timeType)
	require.NoError(t, err)
	assert.Equal(t, 2024, v.Interface().(time.Time).Year())

	v, err = r.Convert("2024-01-02T03:04:05", timeType)
	require.NoError(t, err)
	assert.Equal(t, 4, v.Interface().(time.Time).Minute())

	v, err = r.Convert("2024-01-02T03:04:05.500000", timeType)
	require.NoError(t, err)
	assert.Equal(t, 5, v.Interface().(time.Time).Second())
}

func TestConverterRegistryBytesURLSafeBase64(t *testing.T) {
	r := NewConverterRegistry()
	v, err := r.Convert("aGVsbG8", reflect.TypeOf([]byte(nil)))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), v.Interface())
}

func TestConverterRegistryString(t *testing.T) {
	r := NewConverterRegistry()
	v, err := r.Convert("hello", reflect.TypeOf(""))
	require.NoError(t, err)
	assert.Equal(t, "hello", v.Interface())
}

func TestConverterRegistryCollectionOfInt(t *testing.T) {
	r := NewConverterRegistry()
	v, err := r.Convert("1, 2, 3", reflect.TypeOf([]int(nil)))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, v.Interface())
}

func TestLiteralConverterExactThenCaseInsensitive(t *testing.T) {
	c := &LiteralConverter{Allowed: []string{"asc", "desc"}}

	v, err := c.Convert("asc")
	require.NoError(t, err)
	assert.Equal(t, "asc", v)

	v, err = c.Convert("ASC")
	require.NoError(t, err)
	assert.Equal(t, "asc", v)

	_, err = c.Convert("sideways")
	assert.Error(t, err)
}

type orderStatus string

func (s orderStatus) String() string { return string(s) }

func TestRegisterEnumByValueAndName(t *testing.T) {
	r := NewConverterRegistry()
	t1 := reflect.TypeOf(orderStatus(""))
	RegisterEnum(t1, map[string]string{"0": "Pending", "1": "Active"})

	v, err := r.Convert("0", t1)
	require.NoError(t, err)
	assert.Equal(t, orderStatus("0"), v.Interface())

	v, err = r.Convert("active", t1)
	require.NoError(t, err)
	assert.Equal(t, orderStatus("1"), v.Interface())
}
