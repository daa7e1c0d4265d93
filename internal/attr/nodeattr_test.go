package attr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArrayBounds(t *testing.T) {
	d := mustDesc(t, "points", "int", true)
	require.True(t, d.SetMin("0"))
	require.True(t, d.SetMax("10"))
	a := NewNodeAttr(d)
	require.Equal(t, 0, a.Len())

	assert.False(t, a.AppendValue(d, IntValue(KindInt, 15)))
	assert.Equal(t, 0, a.Len())

	assert.True(t, a.AppendValue(d, IntValue(KindInt, 5)))
	assert.True(t, a.AppendValue(d, IntValue(KindInt, 6)))
	last, ok := a.ValueAt(a.Len() - 1)
	require.True(t, ok)
	assert.Equal(t, int64(6), last.Int())

	assert.True(t, a.InsertValueAt(d, 0, IntValue(KindInt, 1)))
	assert.False(t, a.InsertValueAt(d, 9, IntValue(KindInt, 1)))
	assert.False(t, a.SetValueAt(d, 1, IntValue(KindInt, -4)))
	assert.True(t, a.SetValueAt(d, 1, IntValue(KindInt, 4)))
	assert.Equal(t, "1;4;6", a.String())

	assert.True(t, a.EraseAt(0))
	assert.False(t, a.EraseAt(7))
	assert.Equal(t, "4;6", a.String())

	assert.False(t, a.SetValue(d, IntValue(KindInt, 1)), "scalar setter on array")
}

func TestScalarSetValueRejectsInvalid(t *testing.T) {
	d := mustDesc(t, "count", "ushort", false)
	require.True(t, d.SetMax("100"))
	a := NewNodeAttr(d)

	assert.True(t, a.SetText(d, "42"))
	assert.False(t, a.SetText(d, "101"))
	assert.False(t, a.SetText(d, "many"))
	assert.Equal(t, uint64(42), a.Value().Uint())
	assert.False(t, a.AppendValue(d, UintValue(KindUShort, 1)), "array op on scalar")
}

func TestLoadCoerces(t *testing.T) {
	d := mustDesc(t, "count", "int", false)
	require.True(t, d.SetMax("3"))
	a := NewNodeAttr(d)
	a.Load(d, []Value{IntValue(KindInt, 9), IntValue(KindInt, 1)})
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, int64(3), a.Value().Int())

	arr := mustDesc(t, "list", "int", true)
	require.True(t, arr.SetMax("3"))
	b := NewNodeAttr(arr)
	b.Load(arr, []Value{IntValue(KindInt, 9), IntValue(KindInt, 1)})
	assert.Equal(t, "3;1", b.String())
	b.Reset(arr)
	assert.Equal(t, 0, b.Len())
}

func TestNodeAttrCloneAndEqual(t *testing.T) {
	d := mustDesc(t, "list", "int", true)
	a := NewNodeAttr(d)
	require.True(t, a.AppendValue(d, IntValue(KindInt, 1)))
	c := a.Clone()
	assert.True(t, a.Equal(c))
	require.True(t, c.AppendValue(d, IntValue(KindInt, 2)))
	assert.False(t, a.Equal(c))
	assert.Equal(t, 1, a.Len())
}
