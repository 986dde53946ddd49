package arena

import (
	"fmt"
	"reflect"
)

// debugAssert panics with msg when the arenadebug build tag is set and cond
// is false. Without the tag the call compiles away.
func debugAssert(cond bool, format string, args ...any) {
	if debugAssertions && !cond {
		panic(fmt.Sprintf("arena: assertion failed: "+format, args...))
	}
}

// holdsManagedRefs reports whether values of t carry references the garbage
// collector must trace through runtime-managed objects. The arena stores
// values in no-pointer memory, so such values would be freed underneath it.
func holdsManagedRefs(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Map, reflect.Chan, reflect.Func, reflect.Interface:
		return true
	case reflect.Array:
		return t.Len() > 0 && holdsManagedRefs(t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if holdsManagedRefs(t.Field(i).Type) {
				return true
			}
		}
	}
	return false
}
