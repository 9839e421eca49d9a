// Package redcap renders instrument records into the flat string map the
// REDCap import API expects. Formatting rules that are REDCap conventions
// rather than domain facts live here: DD/MM/YYYY dates, 0/1 booleans,
// checkbox explosion and the optional decimal comma.
package redcap

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DateFormat is the project's REDCap date field format.
const DateFormat = "02/01/2006"

// Options control locale-dependent rendering.
type Options struct {
	// DecimalComma renders floats with a comma separator, matching
	// registries configured for German number input.
	DecimalComma bool
}

// Format flattens a record struct into REDCap field/value pairs. Fields are
// selected by their `redcap` tag; nil pointers render as empty strings so
// missing values stay missing. A map[int]bool field tagged with the checkbox
// option explodes into one name___id entry per choice.
func Format(record any, opts Options) (map[string]string, error) {
	v := reflect.ValueOf(record)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, fmt.Errorf("redcap: format nil record")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("redcap: format %T: not a struct", record)
	}

	out := make(map[string]string)
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("redcap")
		if tag == "" || tag == "-" {
			continue
		}
		name, option, _ := strings.Cut(tag, ",")

		fv := v.Field(i)
		if option == "checkbox" {
			if err := explodeCheckbox(out, name, fv); err != nil {
				return nil, fmt.Errorf("redcap: field %s: %w", name, err)
			}
			continue
		}

		s, err := formatValue(fv, opts)
		if err != nil {
			return nil, fmt.Errorf("redcap: field %s: %w", name, err)
		}
		out[name] = s
	}
	return out, nil
}

func explodeCheckbox(out map[string]string, name string, fv reflect.Value) error {
	if fv.Kind() != reflect.Map {
		return fmt.Errorf("checkbox field is %s, want map[int]bool", fv.Kind())
	}
	iter := fv.MapRange()
	for iter.Next() {
		id := iter.Key().Int()
		checked := iter.Value().Bool()
		out[fmt.Sprintf("%s___%d", name, id)] = formatBool(checked)
	}
	return nil
}

func formatValue(fv reflect.Value, opts Options) (string, error) {
	if fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			return "", nil
		}
		fv = fv.Elem()
	}

	if ts, ok := fv.Interface().(time.Time); ok {
		if ts.IsZero() {
			return "", nil
		}
		return ts.Format(DateFormat), nil
	}

	switch fv.Kind() {
	case reflect.String:
		return fv.String(), nil
	case reflect.Bool:
		return formatBool(fv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(fv.Int(), 10), nil
	case reflect.Float32, reflect.Float64:
		return formatFloat(fv.Float(), opts), nil
	default:
		return "", fmt.Errorf("unsupported kind %s", fv.Kind())
	}
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func formatFloat(f float64, opts Options) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if opts.DecimalComma {
		s = strings.ReplaceAll(s, ".", ",")
	}
	return s
}

// FieldNames lists a record's REDCap field names in declaration order,
// checkbox fields expanded and sorted by choice id.
func FieldNames(record any) ([]string, error) {
	v := reflect.ValueOf(record)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, fmt.Errorf("redcap: field names of nil record")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("redcap: field names of %T: not a struct", record)
	}

	var names []string
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("redcap")
		if tag == "" || tag == "-" {
			continue
		}
		name, option, _ := strings.Cut(tag, ",")
		if option != "checkbox" {
			names = append(names, name)
			continue
		}
		var ids []int
		iter := v.Field(i).MapRange()
		for iter.Next() {
			ids = append(ids, int(iter.Key().Int()))
		}
		sort.Ints(ids)
		for _, id := range ids {
			names = append(names, fmt.Sprintf("%s___%d", name, id))
		}
	}
	return names, nil
}
