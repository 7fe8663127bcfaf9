package settings

import (
	"fmt"
)

// Options configures a Provider.
type Options struct {
	// File is the path of the backing settings document. Empty selects the
	// ambient application settings store.
	File string

	// Section is the logical section name within the store. Empty selects
	// DefaultSection.
	Section string

	// Strict turns coercion failures into hard errors. The default is to
	// keep the field's current value and record the failure in the
	// reserved LastError member.
	Strict bool

	// Locale controls numeric and date/time text forms. Nil selects
	// DefaultLocale, whose forms round-trip exactly.
	Locale *Locale
}

// Quick reads target from the given document in one call, creating and
// seeding the document from target's current values when it does not exist
// yet. This is the recommended entry point for most applications.
func Quick(target any, file, section string) (*Provider, error) {
	p, err := New(Options{File: file, Section: section})
	if err != nil {
		return nil, err
	}
	if err := p.Read(target); err != nil {
		return nil, err
	}
	return p, nil
}

// MustQuick is like Quick but panics on error.
func MustQuick(target any, file, section string) *Provider {
	p, err := Quick(target, file, section)
	if err != nil {
		panic(fmt.Sprintf("settings initialization failed: %v", err))
	}
	return p
}
