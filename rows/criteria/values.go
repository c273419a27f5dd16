package criteria

import (
	"bytes"
	"cmp"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"golang.org/x/exp/constraints"
)

type number interface {
	constraints.Integer | constraints.Float
}

func toFloat[T number](v T) float64 {
	return float64(v)
}

// numeric reports v as a float64 when it holds any Go integer or float kind.
func numeric(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return toFloat(t), true
	case int8:
		return toFloat(t), true
	case int16:
		return toFloat(t), true
	case int32:
		return toFloat(t), true
	case int64:
		return toFloat(t), true
	case uint:
		return toFloat(t), true
	case uint8:
		return toFloat(t), true
	case uint16:
		return toFloat(t), true
	case uint32:
		return toFloat(t), true
	case uint64:
		return toFloat(t), true
	case float32:
		return toFloat(t), true
	case float64:
		return t, true
	}
	return 0, false
}

// Number reports v as a float64 when it holds a Go number.
func Number(v any) (float64, bool) {
	return numeric(v)
}

// intValue is an integer of any Go kind held as sign and magnitude, so int64
// and uint64 values compare exactly.
type intValue struct {
	neg bool
	mag uint64
}

func signed(x int64) intValue {
	if x < 0 {
		return intValue{neg: true, mag: uint64(-(x + 1)) + 1}
	}
	return intValue{mag: uint64(x)}
}

// floatInt accepts integral floats within the int64 or uint64 range.
func floatInt(f float64) (intValue, bool) {
	if f != math.Trunc(f) {
		return intValue{}, false
	}
	if f >= 0 {
		if f >= 1<<64 {
			return intValue{}, false
		}
		return intValue{mag: uint64(f)}, true
	}
	if f < -(1 << 63) {
		return intValue{}, false
	}
	return signed(int64(f)), true
}

// asInt reports v as an exact integer when it holds an integer kind or an
// integral float.
func asInt(v any) (intValue, bool) {
	switch t := v.(type) {
	case int:
		return signed(int64(t)), true
	case int8:
		return signed(int64(t)), true
	case int16:
		return signed(int64(t)), true
	case int32:
		return signed(int64(t)), true
	case int64:
		return signed(t), true
	case uint:
		return intValue{mag: uint64(t)}, true
	case uint8:
		return intValue{mag: uint64(t)}, true
	case uint16:
		return intValue{mag: uint64(t)}, true
	case uint32:
		return intValue{mag: uint64(t)}, true
	case uint64:
		return intValue{mag: t}, true
	case float32:
		return floatInt(float64(t))
	case float64:
		return floatInt(t)
	}
	return intValue{}, false
}

func (a intValue) compare(b intValue) int {
	if a.neg != b.neg {
		if a.neg {
			return -1
		}
		return 1
	}
	c := cmp.Compare(a.mag, b.mag)
	if a.neg {
		return -c
	}
	return c
}

func (a intValue) String() string {
	s := strconv.FormatUint(a.mag, 10)
	if a.neg {
		return "-" + s
	}
	return s
}

// compareNumbers orders two numbers exactly when both are integers. A number
// that is not an integer never equals one.
func compareNumbers(a, b any) int {
	ia, aok := asInt(a)
	ib, bok := asInt(b)
	if aok && bok {
		return ia.compare(ib)
	}
	fa, _ := numeric(a)
	fb, _ := numeric(b)
	c := cmp.Compare(fa, fb)
	if c != 0 || aok == bok {
		return c
	}
	// an integer rounded onto a float beyond the integer range
	if aok {
		return -cmp.Compare(fb, 0)
	}
	return cmp.Compare(fa, 0)
}

type class int

const (
	classNil class = iota
	classBool
	classNumber
	classString
	classBytes
	classTime
	classOther
)

func classify(v any) class {
	switch v.(type) {
	case nil:
		return classNil
	case bool:
		return classBool
	case string:
		return classString
	case []byte:
		return classBytes
	case time.Time:
		return classTime
	}
	if _, ok := numeric(v); ok {
		return classNumber
	}
	return classOther
}

// Equal reports whether a and b hold the same value. Numbers are compared by
// value regardless of their Go type, integers exactly, and two nils are equal.
func Equal(a, b any) bool {
	ca, cb := classify(a), classify(b)
	if ca != cb {
		return false
	}
	switch ca {
	case classNil:
		return true
	case classBool:
		return a.(bool) == b.(bool)
	case classNumber:
		ia, aok := asInt(a)
		ib, bok := asInt(b)
		if aok || bok {
			return aok && bok && ia == ib
		}
		fa, _ := numeric(a)
		fb, _ := numeric(b)
		return fa == fb
	case classString:
		return a.(string) == b.(string)
	case classBytes:
		return bytes.Equal(a.([]byte), b.([]byte))
	case classTime:
		return a.(time.Time).Equal(b.(time.Time))
	}
	return reflect.DeepEqual(a, b)
}

// Comparable reports whether a and b can be ordered against each other.
func Comparable(a, b any) bool {
	ca, cb := classify(a), classify(b)
	return ca == cb && ca != classNil && ca != classOther
}

// Compare orders any two values. Values of different classes are ordered
// nil, bool, number, string, bytes, time, other.
func Compare(a, b any) int {
	ca, cb := classify(a), classify(b)
	if ca != cb {
		return cmp.Compare(ca, cb)
	}
	switch ca {
	case classNil:
		return 0
	case classBool:
		x, y := a.(bool), b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case classNumber:
		return compareNumbers(a, b)
	case classString:
		return cmp.Compare(a.(string), b.(string))
	case classBytes:
		return bytes.Compare(a.([]byte), b.([]byte))
	case classTime:
		return a.(time.Time).Compare(b.(time.Time))
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// HashKey returns a key such that Equal(a, b) implies HashKey(a) == HashKey(b).
// Values without a stable representation all share one key.
func HashKey(v any) string {
	switch classify(v) {
	case classNil:
		return "z"
	case classBool:
		return "b:" + strconv.FormatBool(v.(bool))
	case classNumber:
		if i, ok := asInt(v); ok {
			return "n:" + i.String()
		}
		f, _ := numeric(v)
		return "n:" + strconv.FormatFloat(f, 'g', -1, 64)
	case classString:
		return "s:" + v.(string)
	case classBytes:
		return "y:" + string(v.([]byte))
	case classTime:
		return "t:" + v.(time.Time).UTC().Format(time.RFC3339Nano)
	}
	return "x"
}
