package mathmod

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubiojr/bolt/modules"
	"github.com/rubiojr/bolt/value"
)

func callMath(t *testing.T, name string, args ...value.Value) value.Value {
	t.Helper()
	fn, ok := modules.LookupFunc("math", name)
	require.True(t, ok, "math.%s not registered", name)
	out, err := fn.Data.(*value.NativeFunc).Fn(args)
	require.NoError(t, err)
	return out
}

func TestMath(t *testing.T) {
	assert.Equal(t, value.Float(3), callMath(t, "sqrt", value.Int(9)))
	assert.Equal(t, value.Int(2), callMath(t, "floor", value.Float(2.7)))
	assert.Equal(t, value.Int(3), callMath(t, "ceil", value.Float(2.1)))
	assert.Equal(t, value.Float(8), callMath(t, "pow", value.Int(2), value.Int(3)))
	assert.Equal(t, value.Float(5), callMath(t, "clamp", value.Int(7), value.Int(0), value.Int(5)))
	assert.Equal(t, value.Bool(false), callMath(t, "is_nan", value.Float(1)))

	r := callMath(t, "random_int", value.Int(3), value.Int(5))
	assert.GreaterOrEqual(t, r.AsInt(), int64(3))
	assert.Less(t, r.AsInt(), int64(5))
}
