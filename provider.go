package settings

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// Encryptor is implemented by configuration objects whose sensitive fields
// must be encrypted before they reach the store. It is invoked at the start
// of every Write.
type Encryptor interface {
	EncryptSettings() error
}

// Decryptor is the counterpart hook. It runs after every populated Read and
// on every exit path of Write, so the in-memory object is never left in an
// encrypted state.
type Decryptor interface {
	DecryptSettings() error
}

// Base carries the provider's diagnostic side-channel. Embed it in a
// configuration struct to receive the populating Provider and the message
// of any swallowed coercion failure. Both members are reserved names and
// are never persisted.
type Base struct {
	LastError string
	Provider  *Provider
}

// writeMu serializes every write in the process, including the self-healing
// write a Read can trigger, regardless of which document it targets.
// Configuration writes are rare and not latency-sensitive, so one shared
// lock keeps the model simple.
var writeMu sync.Mutex

// Provider maps a typed configuration struct onto a flat key/value section
// of a settings store.
type Provider struct {
	opts  Options
	store store
	mutex sync.Mutex // guards store state across refresh/lookup cycles
}

// New creates a Provider for the given options. An empty Options.File
// selects the ambient application settings store; an empty Options.Section
// selects DefaultSection.
func New(opts Options) (*Provider, error) {
	if opts.Section == "" {
		opts.Section = DefaultSection
	}
	if opts.Locale == nil {
		opts.Locale = DefaultLocale
	}

	p := &Provider{opts: opts}
	if opts.File != "" {
		p.store = newFileStore(opts.File, opts.Section)
		return p, nil
	}

	path, err := settingsPath()
	if err != nil {
		return nil, err
	}
	p.store = newSettingsStore(path, opts.Section)
	return p, nil
}

// File returns the path of the backing document.
func (p *Provider) File() string {
	return p.store.location()
}

// SectionName returns the active section name.
func (p *Provider) SectionName() string {
	return p.opts.Section
}

// Read populates target from the store. Fields absent from the store keep
// their current (default) values and trigger one self-healing write-back,
// so a subsequent read finds every field. A missing or unparseable store is
// seeded with target's current values. Coercion failures keep the field's
// default and are recorded in the reserved LastError member, unless
// Options.Strict turns them into hard errors.
func (p *Provider) Read(target any) error {
	v, err := structValue(target)
	if err != nil {
		return err
	}
	fields := fieldsOf(v.Type())

	seed, missing, err := p.populate(v, fields)
	if err != nil {
		return err
	}

	setProviderRef(v, p)

	if seed {
		// The store does not exist yet: seed it with the object's defaults.
		// The write path runs the encrypt/decrypt hooks itself.
		return p.write(target, v, fields)
	}

	if dec, ok := target.(Decryptor); ok {
		if err := dec.DecryptSettings(); err != nil {
			return fmt.Errorf("decrypt settings: %w", err)
		}
	}

	if missing {
		return p.Write(target)
	}
	return nil
}

// populate performs the locked read pass. It reports seed=true when the
// backing store had to be replaced with a fresh document, and missing=true
// when at least one scalar field had no entry.
func (p *Provider) populate(v reflect.Value, fields []field) (seed, missing bool, err error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if err := p.store.refresh(); err != nil {
		if errors.Is(err, ErrStoreNotFound) {
			return true, false, nil
		}
		return false, false, err
	}

	for _, f := range fields {
		fv := v.Field(f.index)
		switch f.kind {
		case kindScalar:
			text, ok := p.store.lookup(f.name)
			if !ok {
				missing = true
				continue
			}
			if err := assign(fv, text, p.opts.Locale); err != nil {
				if p.opts.Strict {
					return false, false, fmt.Errorf("field %s: %w", f.name, err)
				}
				recordError(v, fmt.Sprintf("field %s: %v", f.name, err))
			}

		case kindSequence:
			seq := reflect.MakeSlice(f.typ, 0, 4)
			for i := 1; ; i++ {
				text, ok := p.store.lookup(indexedKey(f.name, i))
				if !ok {
					break
				}
				elem, err := parseValue(text, f.elem, p.opts.Locale)
				if err != nil {
					if p.opts.Strict {
						return false, false, fmt.Errorf("field %s[%d]: %w", f.name, i, err)
					}
					recordError(v, fmt.Sprintf("field %s[%d]: %v", f.name, i, err))
					continue
				}
				seq = reflect.Append(seq, elem)
			}
			fv.Set(seq)
		}
	}

	return false, missing, nil
}

// Write persists target's current values into the store, creating the
// section and any missing document structure. All writes in the process
// serialize through one mutex.
func (p *Provider) Write(target any) error {
	v, err := structValue(target)
	if err != nil {
		return err
	}
	return p.write(target, v, fieldsOf(v.Type()))
}

func (p *Provider) write(target any, v reflect.Value, fields []field) (err error) {
	if enc, ok := target.(Encryptor); ok {
		if err := enc.EncryptSettings(); err != nil {
			return fmt.Errorf("encrypt settings: %w", err)
		}
	}
	// The caller-visible object must always come back decrypted, on success
	// and failure alike.
	defer func() {
		if dec, ok := target.(Decryptor); ok {
			if derr := dec.DecryptSettings(); derr != nil && err == nil {
				err = fmt.Errorf("decrypt settings: %w", derr)
			}
		}
	}()

	writeMu.Lock()
	defer writeMu.Unlock()
	p.mutex.Lock()
	defer p.mutex.Unlock()

	// A missing or corrupt document is replaced with a fresh minimal one.
	if err := ensureLoaded(p.store); err != nil {
		return err
	}

	for _, f := range fields {
		fv := v.Field(f.index)
		text, ferr := formatValue(fv, p.opts.Locale)
		switch {
		case errors.Is(ferr, ErrSequenceValue):
			n := fv.Len()
			for i := 0; i < n; i++ {
				elemText, eerr := formatValue(fv.Index(i), p.opts.Locale)
				if eerr != nil {
					if p.opts.Strict {
						return fmt.Errorf("field %s[%d]: %w", f.name, i+1, eerr)
					}
					recordError(v, fmt.Sprintf("field %s[%d]: %v", f.name, i+1, eerr))
					continue
				}
				p.store.upsert(indexedKey(f.name, i+1), elemText)
			}
			// Prune entries orphaned by a previously longer sequence.
			for i := n + 1; p.store.remove(indexedKey(f.name, i)); i++ {
			}

		case ferr != nil:
			if p.opts.Strict {
				return fmt.Errorf("field %s: %w", f.name, ferr)
			}
			recordError(v, fmt.Sprintf("field %s: %v", f.name, ferr))

		default:
			p.store.upsert(f.name, text)
		}
	}

	return p.store.flush()
}

// Section returns a snapshot of the active section's raw entries.
func (p *Provider) Section() (map[string]string, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if err := ensureLoaded(p.store); err != nil {
		return nil, err
	}
	return p.store.snapshot(), nil
}
