package settings

import (
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Scan decodes the active section's raw snapshot into target using
// mapstructure. Unlike Read, keys are matched through the "settings" struct
// tag (falling back to field names, case-insensitively) and values are
// weakly typed, so a tagged struct of a different shape can consume the
// same section. Scan never mutates the store.
func (p *Provider) Scan(target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmtErrNotStruct(target)
	}

	snap, err := p.Section()
	if err != nil {
		return err
	}

	// mapstructure wants map[string]any.
	data := make(map[string]any, len(snap))
	for key, value := range snap {
		data[key] = value
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "settings",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(data); err != nil {
		return fmt.Errorf("failed to scan section %q into %T: %w", p.opts.Section, target, err)
	}

	return nil
}
