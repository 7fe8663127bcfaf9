// Package settings provides typed configuration persistence for Go
// applications backed by XML settings documents, with support for an
// application-wide settings store, arbitrary document paths, and
// self-healing reads.
//
// Features:
//   - Typed read/write of plain structs against a flat key/value section
//   - Self-healing reads: missing keys are written back with their defaults
//   - Two store strategies: ambient application store or explicit file path
//   - Bidirectional string coercion for scalars, enums, pointers, byte
//     payloads, and slices, with a registry for custom converters
//   - Locale-aware numeric and date/time text forms (golang.org/x/text)
//   - Namespace-agnostic document handling: prefixed and plain documents
//     behave identically
//   - Optional encrypt/decrypt hooks around every write
//   - mapstructure-based Scan for tag-driven decoding of raw sections
//   - File watching for hot reload of file-backed stores
//
// Quick Start:
//
//	type AppConfig struct {
//	    settings.Base
//
//	    Name    string
//	    Retries int
//	    Tags    []string
//	}
//
//	p, err := settings.New(settings.Options{File: "app.config"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	cfg := AppConfig{Name: "app", Retries: 3}
//	if err := p.Read(&cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// The first Read against a missing or incomplete document seeds it with the
// struct's current values, so a default-constructed object doubles as the
// schema and the fallback configuration.
//
// Thread Safety:
// Any number of goroutines may call Read concurrently. All writes,
// including the self-healing write a Read can trigger, serialize through a
// single process-wide mutex. No cross-process locking is attempted;
// concurrent writers in different processes can race on the same document.
package settings
