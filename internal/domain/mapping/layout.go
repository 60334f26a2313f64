package mapping

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// CanonicalLayout is the output format for every reformatted date:
// yyyy-MM-dd'T'HH:mm:ss'Z' in UTC.
const CanonicalLayout = "2006-01-02T15:04:05Z"

// ErrUnsupportedPattern is returned for date patterns that cannot be expressed
// as a Go layout.
var ErrUnsupportedPattern = errors.New("unsupported date pattern")

// DateFormat is a compiled SimpleDateFormat-style pattern.
type DateFormat struct {
	pattern string
	layout  string
	loc     *time.Location
}

// CompileDateFormat translates a pattern such as "yyyy-MM-dd HH:mm:ss" into a
// Go parse layout. Numeric fields compile to their non-padded Go forms so
// that "2021-6-5 9:03:00" parses like "2021-06-05 09:03:00". Values without a
// zone in the pattern are read as UTC.
func CompileDateFormat(pattern string) (*DateFormat, error) {
	layout, err := compileLayout(pattern)
	if err != nil {
		return nil, err
	}
	return &DateFormat{pattern: pattern, layout: layout, loc: time.UTC}, nil
}

// Pattern returns the source pattern.
func (f *DateFormat) Pattern() string { return f.pattern }

// Layout returns the compiled Go layout.
func (f *DateFormat) Layout() string { return f.layout }

// Parse reads s according to the pattern. Like SimpleDateFormat, it reads a
// leading match and ignores whatever text follows it.
func (f *DateFormat) Parse(s string) (time.Time, error) {
	in := strings.TrimSpace(s)
	t, err := time.ParseInLocation(f.layout, in, f.loc)
	var pe *time.ParseError
	if errors.As(err, &pe) && strings.HasPrefix(pe.Message, ": extra text") &&
		pe.ValueElem != "" && len(pe.ValueElem) < len(in) {
		t, err = time.ParseInLocation(f.layout, in[:len(in)-len(pe.ValueElem)], f.loc)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q with %q: %w", s, f.pattern, err)
	}
	return t, nil
}

// Reformat parses s and renders it in CanonicalLayout.
func (f *DateFormat) Reformat(s string) (string, error) {
	t, err := f.Parse(s)
	if err != nil {
		return "", err
	}
	return t.UTC().Format(CanonicalLayout), nil
}

// goTokens are substrings that time.Parse would treat as layout elements if
// they appeared in literal text.
var goTokens = []string{"Jan", "Mon", "MST", "PM", "pm", "_2"}

func compileLayout(pattern string) (string, error) {
	if pattern == "" {
		return "", fmt.Errorf("%w: empty pattern", ErrUnsupportedPattern)
	}

	var b strings.Builder
	rs := []rune(pattern)
	for i := 0; i < len(rs); {
		c := rs[i]

		if c == '\'' {
			lit, next, err := quoted(rs, i)
			if err != nil {
				return "", fmt.Errorf("%w: %q: %w", ErrUnsupportedPattern, pattern, err)
			}
			if err := writeLiteral(&b, lit); err != nil {
				return "", fmt.Errorf("%w: %q: %w", ErrUnsupportedPattern, pattern, err)
			}
			i = next
			continue
		}

		if !isPatternLetter(c) {
			if err := writeLiteral(&b, string(c)); err != nil {
				return "", fmt.Errorf("%w: %q: %w", ErrUnsupportedPattern, pattern, err)
			}
			i++
			continue
		}

		n := 1
		for i+n < len(rs) && rs[i+n] == c {
			n++
		}
		tok, err := token(c, n, b.String())
		if err != nil {
			return "", fmt.Errorf("%w: %q: %w", ErrUnsupportedPattern, pattern, err)
		}
		b.WriteString(tok)
		i += n
	}
	return b.String(), nil
}

// quoted reads a '...' section starting at rs[start]. A doubled quote is an
// escaped single quote, both inside and outside a quoted section.
func quoted(rs []rune, start int) (string, int, error) {
	if start+1 < len(rs) && rs[start+1] == '\'' {
		return "'", start + 2, nil
	}
	var lit strings.Builder
	for i := start + 1; i < len(rs); i++ {
		if rs[i] != '\'' {
			lit.WriteRune(rs[i])
			continue
		}
		if i+1 < len(rs) && rs[i+1] == '\'' {
			lit.WriteRune('\'')
			i++
			continue
		}
		return lit.String(), i + 1, nil
	}
	return "", 0, errors.New("unterminated quote")
}

func writeLiteral(b *strings.Builder, lit string) error {
	for _, r := range lit {
		if r >= '0' && r <= '9' {
			return fmt.Errorf("literal %q contains a digit", lit)
		}
	}
	for _, t := range goTokens {
		if strings.Contains(lit, t) {
			return fmt.Errorf("literal %q contains layout element %q", lit, t)
		}
	}
	b.WriteString(lit)
	return nil
}

func isPatternLetter(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func token(c rune, n int, sofar string) (string, error) {
	switch c {
	case 'y':
		if n == 2 {
			return "06", nil
		}
		return "2006", nil
	case 'M', 'L':
		switch {
		case n <= 2:
			return "1", nil
		case n == 3:
			return "Jan", nil
		default:
			return "January", nil
		}
	case 'd':
		return "2", nil
	case 'D':
		if n == 3 {
			return "002", nil
		}
	case 'H':
		return "15", nil
	case 'h':
		return "3", nil
	case 'm':
		return "4", nil
	case 's':
		return "5", nil
	case 'S':
		if strings.HasSuffix(sofar, ".") || strings.HasSuffix(sofar, ",") {
			return strings.Repeat("0", n), nil
		}
		return "", fmt.Errorf("fraction %q must follow '.' or ','", strings.Repeat("S", n))
	case 'a':
		return "PM", nil
	case 'E':
		if n >= 4 {
			return "Monday", nil
		}
		return "Mon", nil
	case 'z':
		return "MST", nil
	case 'Z':
		return "-0700", nil
	case 'X':
		switch n {
		case 1:
			return "Z07", nil
		case 2:
			return "Z0700", nil
		default:
			return "Z07:00", nil
		}
	}
	return "", fmt.Errorf("pattern letter %q (x%d)", string(c), n)
}
