package interp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(false))
	assert.False(t, Truthy(float64(0)))
	assert.False(t, Truthy(""))
	assert.False(t, Truthy(&List{}))
	assert.True(t, Truthy(float64(1)))
	assert.True(t, Truthy("non-empty"))
	assert.True(t, Truthy(&List{Items: []Value{1.0}}))
}

func TestToDisplay_IntVsFloat(t *testing.T) {
	assert.Equal(t, "5", ToDisplay(float64(5)))
	assert.Equal(t, "5.5", ToDisplay(5.5))
	assert.Equal(t, "None", ToDisplay(nil))
	assert.Equal(t, "True", ToDisplay(true))
}

func TestToDisplay_List(t *testing.T) {
	l := &List{Items: []Value{"a", float64(1)}}
	assert.Equal(t, `["a", 1]`, ToDisplay(l))
}

func TestToDisplay_Dict_PreservesInsertionOrderNotSorted(t *testing.T) {
	d := NewDict("zebra", 1.0, "apple", 2.0)
	assert.Equal(t, `{"zebra": 1, "apple": 2}`, ToDisplay(d))
}

func TestDict_SetGet_PreservesInsertionOrder(t *testing.T) {
	d := NewDict("b", 1.0, "a", 2.0)
	d.Set("c", 3.0)
	v, ok := d.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2.0, v)
	assert.Equal(t, []string{"b", "a", "c"}, d.keys)
}
