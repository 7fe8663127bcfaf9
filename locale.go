package settings

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Locale controls the numeric and date/time text forms used by the
// coercion engine. The zero locale (and DefaultLocale) uses Go's plain
// strconv forms and RFC3339 dates, guaranteeing exact round-trips.
type Locale struct {
	// Tag is the BCP 47 language tag the locale formats for.
	Tag language.Tag
	// DateLayout is the time layout for date/time values.
	DateLayout string

	printer *message.Printer
	decimal rune
	group   rune
}

// DefaultLocale is the locale used when Options.Locale is nil.
var DefaultLocale = &Locale{DateLayout: time.RFC3339}

// NewLocale builds a Locale for the given language tag. The tag's digit
// group and decimal separators are derived once by probing the formatter.
func NewLocale(tag language.Tag) *Locale {
	loc := &Locale{
		Tag:        tag,
		DateLayout: time.RFC3339,
		printer:    message.NewPrinter(tag),
		decimal:    '.',
	}

	// A seven digit probe with a fraction forces both separators to appear.
	probe := loc.printer.Sprintf("%v", number.Decimal(1234567.89))
	var seps []rune
	for _, r := range probe {
		if !unicode.IsDigit(r) {
			seps = append(seps, r)
		}
	}
	if n := len(seps); n > 0 {
		loc.decimal = seps[n-1]
		if n > 1 {
			loc.group = seps[0]
		}
	}

	return loc
}

// FormatInt renders a signed integer in the locale's digit grouping.
func (l *Locale) FormatInt(i int64) string {
	if l.printer == nil {
		return strconv.FormatInt(i, 10)
	}
	return l.printer.Sprintf("%v", number.Decimal(i))
}

// FormatUint renders an unsigned integer in the locale's digit grouping.
func (l *Locale) FormatUint(u uint64) string {
	if l.printer == nil {
		return strconv.FormatUint(u, 10)
	}
	return l.printer.Sprintf("%v", number.Decimal(u))
}

// FormatFloat renders a floating-point value with enough fraction digits to
// round-trip through ParseFloat.
func (l *Locale) FormatFloat(f float64, bits int) string {
	if l.printer == nil {
		return strconv.FormatFloat(f, 'g', -1, bits)
	}
	return l.printer.Sprintf("%v", number.Decimal(f,
		number.MaxFractionDigits(15), number.MinFractionDigits(0)))
}

// ParseInt parses a signed integer, tolerating the locale's grouping.
func (l *Locale) ParseInt(s string) (int64, error) {
	return strconv.ParseInt(l.normalize(s), 10, 64)
}

// ParseUint parses an unsigned integer, tolerating the locale's grouping.
func (l *Locale) ParseUint(s string) (uint64, error) {
	return strconv.ParseUint(l.normalize(s), 10, 64)
}

// ParseFloat parses a floating-point value written in the locale's form.
func (l *Locale) ParseFloat(s string) (float64, error) {
	return strconv.ParseFloat(l.normalize(s), 64)
}

// FormatTime renders a date/time value using the locale's layout.
func (l *Locale) FormatTime(t time.Time) string {
	return t.Format(l.layout())
}

// ParseTime parses a date/time value using the locale's layout.
func (l *Locale) ParseTime(s string) (time.Time, error) {
	return time.Parse(l.layout(), s)
}

func (l *Locale) layout() string {
	if l.DateLayout == "" {
		return time.RFC3339
	}
	return l.DateLayout
}

// normalize strips group separators and spacing variants and rewrites the
// locale's decimal separator to '.' so strconv can parse the result.
func (l *Locale) normalize(s string) string {
	s = strings.TrimSpace(s)
	if l.printer == nil {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == l.decimal:
			b.WriteRune('.')
		case r == l.group, r == ' ', r == ' ', r == ' ':
			// Grouping and the non-breaking spaces some locales group with.
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
