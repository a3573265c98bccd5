package service

import (
	"reflect"
	"strings"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

// describeStruct maps JSON field names of t to a type description.
func describeStruct(t reflect.Type) map[string]any {
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag := f.Tag.Get("json"); tag != "" {
			if tag == "-" {
				continue
			}
			name = strings.Split(tag, ",")[0]
		}
		out[name] = describe(f.Type)
	}
	return out
}

func describe(t reflect.Type) any {
	if t == timeType {
		return "date-time"
	}
	switch t.Kind() {
	case reflect.Ptr:
		return describe(t.Elem())
	case reflect.Struct:
		return describeStruct(t)
	case reflect.Slice, reflect.Array:
		return []any{describe(t.Elem())}
	case reflect.Map:
		return "object"
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	default:
		return "any"
	}
}
