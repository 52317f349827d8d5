package builtins

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/magoolation/intmud.net-sub002/internal/value"
)

// Collection is implemented by any runtime value.ObjectRef that also backs
// an indexable/sizeable aggregate (lists, vectors); tam() and the foreach
// expansion (spec §4.3.2) both go through this instead of a concrete type,
// so TypeHandler-backed collections work the same as built-in ones.
type Collection interface {
	Len() int
}

func init() {
	register("tam", biTam)
	register("abs", biAbs)
	register("min", biMin)
	register("max", biMax)
	register("maiusc", biUpper)
	register("minusc", biLower)
	register("subtxt", biSubstr)
	register("achartxt", biIndexOf)
	register("decrementatxt", biDecrementTxt)
	register("escrever", biEscrever)
	register("ler", biLer)
}

// biEscrever is the text built-in the VM special-cases to route through
// its OnOutput sink (spec §6.4 "onOutput(sink)"/§5 "called synchronously
// from the VM thread"); outside that interception (e.g. a direct
// registry.Call with no VM attached) it is a no-op that still returns
// null so scripts compiled standalone never fault on it.
func biEscrever(args []value.Value) (value.Value, error) {
	return value.NullValue(), nil
}

// biLer is the read counterpart to biEscrever: the VM special-cases its
// id to pull a line from the host-installed input provider (spec §6.4
// "setInput(provider)"). Outside that interception it returns an empty
// string rather than faulting.
func biLer(args []value.Value) (value.Value, error) {
	return value.StringValue(""), nil
}

// biDecrementTxt implements the dynamic-name '@' countdown suffix (spec
// §3): it decrements the trailing run of decimal digits in s by one,
// preserving its zero-padded width; a name with no trailing digits passes
// through unchanged.
func biDecrementTxt(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.StringValue(""), nil
	}
	s := args[0].Stringify()
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	if i == len(s) {
		return value.StringValue(s), nil
	}
	prefix, digits := s[:i], s[i:]
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return value.StringValue(s), nil
	}
	n--
	if n < 0 {
		n = 0
	}
	return value.StringValue(prefix + fmt.Sprintf("%0*d", len(digits), n)), nil
}

// biTam implements the `tam` built-in used by the foreach expansion to
// measure a collection's length (spec §4.3.2 "call built-in tam with 1
// arg"). Strings measure their rune count; objects defer to Collection
// when they implement it, and Handler-kind values report their
// TypeHandler's Size.
func biTam(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.NullValue(), nil
	}
	v := args[0]
	switch v.Kind {
	case value.String:
		return value.IntValue(int64(len([]rune(v.S)))), nil
	case value.Object:
		if c, ok := v.Obj.(Collection); ok {
			return value.IntValue(int64(c.Len())), nil
		}
	case value.Handler:
		if v.Handle != nil {
			if h, ok := v.Handle.Handler.(TypeHandler); ok {
				return value.IntValue(int64(h.Size(v.Handle.Payload))), nil
			}
		}
	}
	return value.IntValue(0), nil
}

func biAbs(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.NullValue(), nil
	}
	v := args[0]
	if v.Kind == value.Double {
		return value.DoubleValue(math.Abs(v.D)), nil
	}
	i := v.AsInt()
	if i < 0 {
		i = -i
	}
	return value.IntValue(i), nil
}

func biMin(args []value.Value) (value.Value, error) { return reduceNumeric(args, false) }
func biMax(args []value.Value) (value.Value, error) { return reduceNumeric(args, true) }

func reduceNumeric(args []value.Value, wantMax bool) (value.Value, error) {
	if len(args) == 0 {
		return value.NullValue(), nil
	}
	best := args[0]
	anyDouble := best.Kind == value.Double
	for _, v := range args[1:] {
		if v.Kind == value.Double {
			anyDouble = true
		}
		if (wantMax && v.AsFloat() > best.AsFloat()) || (!wantMax && v.AsFloat() < best.AsFloat()) {
			best = v
		}
	}
	if anyDouble {
		return value.DoubleValue(best.AsFloat()), nil
	}
	return value.IntValue(best.AsInt()), nil
}

func biUpper(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.StringValue(""), nil
	}
	return value.StringValue(strings.ToUpper(args[0].Stringify())), nil
}

func biLower(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.StringValue(""), nil
	}
	return value.StringValue(strings.ToLower(args[0].Stringify())), nil
}

func biSubstr(args []value.Value) (value.Value, error) {
	if len(args) != 3 {
		return value.StringValue(""), nil
	}
	r := []rune(args[0].Stringify())
	start := int(args[1].AsInt())
	length := int(args[2].AsInt())
	if start < 0 || start > len(r) {
		return value.StringValue(""), nil
	}
	end := start + length
	if end > len(r) || length < 0 {
		end = len(r)
	}
	return value.StringValue(string(r[start:end])), nil
}

func biIndexOf(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.IntValue(-1), nil
	}
	idx := strings.Index(args[0].Stringify(), args[1].Stringify())
	if idx < 0 {
		return value.IntValue(-1), nil
	}
	return value.IntValue(int64(len([]rune(args[0].Stringify()[:idx])))), nil
}
