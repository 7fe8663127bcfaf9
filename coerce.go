package settings

import (
	"encoding"
	"encoding/base64"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	timeType      = reflect.TypeOf(time.Time{})
	durationType  = reflect.TypeOf(time.Duration(0))
	uuidType      = reflect.TypeOf(uuid.UUID{})
	byteSliceType = reflect.TypeOf([]byte(nil))

	textMarshalerType   = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// Converter supplies bidirectional string conversion for one concrete type.
// Registered converters take precedence over the built-in coercion rules.
type Converter struct {
	// Format renders a value of the registered type as its persisted string.
	Format func(v any, loc *Locale) (string, error)
	// Parse constructs a value of the registered type from its persisted string.
	Parse func(text string, loc *Locale) (any, error)
}

var converters = struct {
	sync.RWMutex
	byType map[reflect.Type]Converter
}{byType: make(map[reflect.Type]Converter)}

// RegisterConverter installs a custom converter for the concrete type of
// sample. It applies to every provider in the process.
func RegisterConverter(sample any, conv Converter) {
	converters.Lock()
	defer converters.Unlock()
	converters.byType[reflect.TypeOf(sample)] = conv
}

// RegisterEnum installs name-based conversion for an enum-like type. Member
// names are matched case-insensitively on parse; values without a name fall
// back to their default text form on format.
func RegisterEnum[E comparable](names map[string]E) {
	reverse := make(map[E]string, len(names))
	for name, value := range names {
		reverse[value] = name
	}

	RegisterConverter(*new(E), Converter{
		Format: func(v any, _ *Locale) (string, error) {
			if name, ok := reverse[v.(E)]; ok {
				return name, nil
			}
			return fmt.Sprintf("%v", v), nil
		},
		Parse: func(text string, _ *Locale) (any, error) {
			for name, value := range names {
				if strings.EqualFold(name, text) {
					return value, nil
				}
			}
			return nil, fmt.Errorf("unknown %T member %q", *new(E), text)
		},
	})
}

func lookupConverter(t reflect.Type) (Converter, bool) {
	converters.RLock()
	defer converters.RUnlock()
	conv, ok := converters.byType[t]
	return conv, ok
}

// formatValue converts a single value to its persisted string form. A nil
// pointer becomes the empty string. Sequence-classified values yield
// ErrSequenceValue; the caller must expand and convert element-wise.
func formatValue(v reflect.Value, loc *Locale) (string, error) {
	if loc == nil {
		loc = DefaultLocale
	}
	if !v.IsValid() {
		return "", nil
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return "", nil
		}
		return formatValue(v.Elem(), loc)
	}

	t := v.Type()
	if conv, ok := lookupConverter(t); ok {
		return conv.Format(v.Interface(), loc)
	}

	switch t {
	case timeType:
		return loc.FormatTime(v.Interface().(time.Time)), nil
	case durationType:
		return v.Interface().(time.Duration).String(), nil
	case uuidType:
		return v.Interface().(uuid.UUID).String(), nil
	case byteSliceType:
		return base64.StdEncoding.EncodeToString(v.Bytes()), nil
	}

	switch t.Kind() {
	case reflect.String:
		return v.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return loc.FormatInt(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return loc.FormatUint(v.Uint()), nil
	case reflect.Float32:
		return loc.FormatFloat(v.Float(), 32), nil
	case reflect.Float64:
		return loc.FormatFloat(v.Float(), 64), nil
	case reflect.Bool:
		return strconv.FormatBool(v.Bool()), nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return base64.StdEncoding.EncodeToString(v.Convert(byteSliceType).Bytes()), nil
		}
		return "", ErrSequenceValue
	}

	if t.Implements(textMarshalerType) {
		raw, err := v.Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return "", fmt.Errorf("marshal %s to text: %w", t, err)
		}
		return string(raw), nil
	}
	if s, ok := v.Interface().(fmt.Stringer); ok {
		return s.String(), nil
	}

	return fmt.Sprintf("%v", v.Interface()), nil
}

// parseValue constructs a value of type t from its persisted string form.
// It returns a *CoercionError when no strategy applies or the text cannot
// be converted.
func parseValue(text string, t reflect.Type, loc *Locale) (reflect.Value, error) {
	if loc == nil {
		loc = DefaultLocale
	}

	// Nullable wrapper: the literal "null" or empty text is the null value,
	// anything else unwraps and recurses on the underlying type.
	if t.Kind() == reflect.Pointer {
		if text == "" || strings.EqualFold(text, "null") {
			return reflect.Zero(t), nil
		}
		inner, err := parseValue(text, t.Elem(), loc)
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(inner)
		return ptr, nil
	}

	if conv, ok := lookupConverter(t); ok {
		out, err := conv.Parse(text, loc)
		if err != nil {
			return reflect.Value{}, coercionErr(text, t, err)
		}
		rv := reflect.ValueOf(out)
		if !rv.Type().AssignableTo(t) {
			if !rv.Type().ConvertibleTo(t) {
				return reflect.Value{}, coercionErr(text, t,
					fmt.Errorf("converter produced %s", rv.Type()))
			}
			rv = rv.Convert(t)
		}
		return rv, nil
	}

	switch t {
	case timeType:
		if text == "" {
			return reflect.Zero(t), nil
		}
		ts, err := loc.ParseTime(text)
		if err != nil {
			return reflect.Value{}, coercionErr(text, t, err)
		}
		return reflect.ValueOf(ts), nil
	case durationType:
		if text == "" {
			return reflect.Zero(t), nil
		}
		d, err := time.ParseDuration(text)
		if err != nil {
			return reflect.Value{}, coercionErr(text, t, err)
		}
		return reflect.ValueOf(d), nil
	case uuidType:
		if text == "" {
			return reflect.ValueOf(uuid.Nil), nil
		}
		id, err := uuid.Parse(text)
		if err != nil {
			return reflect.Value{}, coercionErr(text, t, err)
		}
		return reflect.ValueOf(id), nil
	}

	switch t.Kind() {
	case reflect.String:
		return reflect.ValueOf(text).Convert(t), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if text == "" {
			return reflect.Zero(t), nil
		}
		i, err := loc.ParseInt(text)
		if err != nil {
			return reflect.Value{}, coercionErr(text, t, err)
		}
		return reflect.ValueOf(i).Convert(t), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if text == "" {
			return reflect.Zero(t), nil
		}
		u, err := loc.ParseUint(text)
		if err != nil {
			return reflect.Value{}, coercionErr(text, t, err)
		}
		return reflect.ValueOf(u).Convert(t), nil
	case reflect.Float32, reflect.Float64:
		if text == "" {
			return reflect.Zero(t), nil
		}
		f, err := loc.ParseFloat(text)
		if err != nil {
			return reflect.Value{}, coercionErr(text, t, err)
		}
		return reflect.ValueOf(f).Convert(t), nil
	case reflect.Bool:
		return reflect.ValueOf(truthy(text)).Convert(t), nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			raw, err := base64.StdEncoding.DecodeString(text)
			if err != nil {
				return reflect.Value{}, coercionErr(text, t, err)
			}
			return reflect.ValueOf(raw).Convert(t), nil
		}
	}

	// Last resort: types that parse themselves from text.
	if reflect.PointerTo(t).Implements(textUnmarshalerType) {
		ptr := reflect.New(t)
		if err := ptr.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(text)); err != nil {
			return reflect.Value{}, coercionErr(text, t, err)
		}
		return ptr.Elem(), nil
	}

	return reflect.Value{}, coercionErr(text, t, ErrUnhandledType)
}

// truthy implements the boolean text contract: "true", "on", and "1"
// (case-insensitive) are true, everything else including empty is false.
func truthy(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "true", "on", "1":
		return true
	}
	return false
}

// assign parses text into the field's type and sets the field.
func assign(fv reflect.Value, text string, loc *Locale) error {
	val, err := parseValue(text, fv.Type(), loc)
	if err != nil {
		return err
	}
	fv.Set(val)
	return nil
}

// indexedKey builds the persisted key for the i-th element (1-based) of a
// sequence field.
func indexedKey(name string, i int) string {
	return name + strconv.Itoa(i)
}
