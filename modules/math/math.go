package mathmod

import (
	"math"
	"math/rand"

	"github.com/rubiojr/bolt/modules"
	"github.com/rubiojr/bolt/value"
)

func float1(fn func(float64) float64) func([]value.Value) (value.Value, error) {
	return func(args []value.Value) (value.Value, error) {
		return value.Float(fn(args[0].AsFloat())), nil
	}
}

func float2(fn func(a, b float64) float64) func([]value.Value) (value.Value, error) {
	return func(args []value.Value) (value.Value, error) {
		return value.Float(fn(args[0].AsFloat(), args[1].AsFloat())), nil
	}
}

func constant(f float64) func([]value.Value) (value.Value, error) {
	return func([]value.Value) (value.Value, error) { return value.Float(f), nil }
}

// toInt rounds with fn and returns an int.
func toInt(fn func(float64) float64) func([]value.Value) (value.Value, error) {
	return func(args []value.Value) (value.Value, error) {
		return value.Int(int64(fn(args[0].AsFloat()))), nil
	}
}

func init() {
	F := modules.Float
	modules.Register(&modules.Module{
		Name: "math",
		Doc:  "Mathematical functions and constants.",
		Funcs: []modules.FuncDef{
			{Name: "abs", Args: []modules.ArgType{F}, Doc: "Return the absolute value of n.", Impl: float1(math.Abs)},
			{Name: "ceil", Args: []modules.ArgType{F}, Doc: "Round n up to the nearest integer.", Impl: toInt(math.Ceil)},
			{Name: "floor", Args: []modules.ArgType{F}, Doc: "Round n down to the nearest integer.", Impl: toInt(math.Floor)},
			{Name: "round", Args: []modules.ArgType{F}, Doc: "Round n to the nearest integer.", Impl: toInt(math.Round)},
			{Name: "max", Args: []modules.ArgType{F, F}, Doc: "Return the larger of a and b.", Impl: float2(math.Max)},
			{Name: "min", Args: []modules.ArgType{F, F}, Doc: "Return the smaller of a and b.", Impl: float2(math.Min)},
			{Name: "pow", Args: []modules.ArgType{F, F}, Doc: "Return base raised to the power of exp.", Impl: float2(math.Pow)},
			{Name: "sqrt", Args: []modules.ArgType{F}, Doc: "Return the square root of n.", Impl: float1(math.Sqrt)},
			{Name: "log", Args: []modules.ArgType{F}, Doc: "Return the natural logarithm of n.", Impl: float1(math.Log)},
			{Name: "log2", Args: []modules.ArgType{F}, Doc: "Return the base-2 logarithm of n.", Impl: float1(math.Log2)},
			{Name: "log10", Args: []modules.ArgType{F}, Doc: "Return the base-10 logarithm of n.", Impl: float1(math.Log10)},
			{Name: "sin", Args: []modules.ArgType{F}, Doc: "Return the sine of n (radians).", Impl: float1(math.Sin)},
			{Name: "cos", Args: []modules.ArgType{F}, Doc: "Return the cosine of n (radians).", Impl: float1(math.Cos)},
			{Name: "tan", Args: []modules.ArgType{F}, Doc: "Return the tangent of n (radians).", Impl: float1(math.Tan)},
			{Name: "pi", Doc: "Return the value of Pi.", Impl: constant(math.Pi)},
			{Name: "e", Doc: "Return the value of Euler's number (e).", Impl: constant(math.E)},
			{Name: "inf", Doc: "Return positive infinity.", Impl: constant(math.Inf(1))},
			{Name: "is_nan", Args: []modules.ArgType{F}, Doc: "Return true if n is NaN.", Impl: func(args []value.Value) (value.Value, error) {
				return value.Bool(math.IsNaN(args[0].AsFloat())), nil
			}},
			{Name: "clamp", Args: []modules.ArgType{F, F, F}, Doc: "Clamp n between min and max.", Impl: func(args []value.Value) (value.Value, error) {
				return value.Float(math.Max(args[1].AsFloat(), math.Min(args[2].AsFloat(), args[0].AsFloat()))), nil
			}},
			{Name: "random", Doc: "Return a random float in [0.0, 1.0).", Impl: func([]value.Value) (value.Value, error) {
				return value.Float(rand.Float64()), nil
			}},
			{Name: "random_int", Args: []modules.ArgType{modules.Int, modules.Int}, Doc: "Return a random integer in [min, max).", Impl: func(args []value.Value) (value.Value, error) {
				lo, hi := args[0].AsInt(), args[1].AsInt()
				if hi <= lo {
					return value.Int(lo), nil
				}
				return value.Int(lo + rand.Int63n(hi-lo)), nil
			}},
		},
	})
}
