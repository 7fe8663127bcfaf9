package settings

import (
	"reflect"
	"strings"
	"sync"
)

// Reserved member names, never persisted (compared case-insensitively).
const (
	reservedLastError = "lasterror"
	reservedProvider  = "provider"
)

// fieldKind classifies how a field is persisted.
type fieldKind uint8

const (
	// kindScalar fields persist as a single entry under the field name.
	kindScalar fieldKind = iota
	// kindSequence fields persist as indexed entries (Name1, Name2, ...).
	kindSequence
)

// field describes one persistable struct member.
type field struct {
	name  string
	index int
	typ   reflect.Type
	kind  fieldKind
	elem  reflect.Type // element type, set for sequences only
}

// fieldCache maps a struct type to its descriptor table. Built once per
// type, since the shape of a configuration struct never changes at runtime.
var fieldCache sync.Map // reflect.Type -> []field

// fieldsOf returns the ordered descriptor table for a struct type: every
// exported, settable field in declaration order, excluding the reserved
// diagnostic and provider back-reference members and embedded structs.
func fieldsOf(t reflect.Type) []field {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]field)
	}

	fields := make([]field, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() || sf.Anonymous {
			continue
		}
		if isReservedName(sf.Name) {
			continue
		}

		f := field{name: sf.Name, index: i, typ: sf.Type, kind: classify(sf.Type)}
		if f.kind == kindSequence {
			f.elem = sf.Type.Elem()
		}
		fields = append(fields, f)
	}

	fieldCache.Store(t, fields)
	return fields
}

func isReservedName(name string) bool {
	lower := strings.ToLower(name)
	return lower == reservedLastError || lower == reservedProvider
}

// classify reports whether a type persists as one value or as an indexed
// sequence. Strings and raw byte payloads are scalars despite being
// iterable, and any type with a registered converter is a scalar regardless
// of its kind.
func classify(t reflect.Type) fieldKind {
	if t.Kind() != reflect.Slice {
		return kindScalar
	}
	if _, ok := lookupConverter(t); ok {
		return kindScalar
	}
	if t.Elem().Kind() == reflect.Uint8 {
		// Raw byte payload, persisted as a single base64 entry.
		return kindScalar
	}
	return kindSequence
}

// structValue validates that target is a non-nil pointer to a struct and
// returns the addressable struct value.
func structValue(target any) (reflect.Value, error) {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return reflect.Value{}, fmtErrNotStruct(target)
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, fmtErrNotStruct(target)
	}
	return rv, nil
}

// recordError stores a diagnostic message in the struct's reserved
// LastError member, when one is present. Promoted fields from an embedded
// Base are found as well.
func recordError(v reflect.Value, msg string) {
	f := v.FieldByNameFunc(func(name string) bool {
		return strings.EqualFold(name, "LastError")
	})
	if f.IsValid() && f.Kind() == reflect.String && f.CanSet() {
		f.SetString(msg)
	}
}

// setProviderRef stores the populating provider in the struct's reserved
// Provider member, when one is present.
func setProviderRef(v reflect.Value, p *Provider) {
	f := v.FieldByNameFunc(func(name string) bool {
		return strings.EqualFold(name, "Provider")
	})
	if f.IsValid() && f.Type() == reflect.TypeOf((*Provider)(nil)) && f.CanSet() {
		f.Set(reflect.ValueOf(p))
	}
}
