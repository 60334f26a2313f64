package mapping

import "fmt"

// DateError reports a date value that could not be reparsed. It never aborts
// the row: the affected column is set to nil.
type DateError struct {
	Field   string
	Input   string
	Pattern string
	Err     error
}

func (e *DateError) Error() string {
	return fmt.Sprintf("date conversion of %s=%q with %q: %v", e.Field, e.Input, e.Pattern, e.Err)
}

func (e *DateError) Unwrap() error { return e.Err }

// Reporter receives non-fatal date conversion failures.
type Reporter func(*DateError)

// ReformatDate converts a string with f into the canonical layout. Failures
// are passed to report (when non-nil) and yield nil.
func ReformatDate(field, raw string, f *DateFormat, report Reporter) any {
	out, err := f.Reformat(raw)
	if err != nil {
		if report != nil {
			report(&DateError{Field: field, Input: raw, Pattern: f.Pattern(), Err: err})
		}
		return nil
	}
	return out
}

// Transformer applies rules to flat rows.
type Transformer struct {
	rules      []Rule
	report     Reporter
	renameOnly bool
}

// NewTransformer creates a transformer. report may be nil.
func NewTransformer(rules []Rule, report Reporter) *Transformer {
	return &Transformer{rules: rules, report: report}
}

// NewRenameTransformer creates a transformer that copies values to their
// target columns without touching dates. Use it when dates were already
// reformatted while the row was built.
func NewRenameTransformer(rules []Rule) *Transformer {
	return &Transformer{rules: rules, renameOnly: true}
}

// Rules returns the configured rules.
func (t *Transformer) Rules() []Rule { return t.rules }

// Apply runs every rule against row in order and returns it. Rules add
// target columns; source entries stay in place unless the target names the
// same column. A source absent from the row writes nil to its target.
// Column-only rules are skipped.
func (t *Transformer) Apply(row map[string]any) map[string]any {
	for _, r := range t.rules {
		if r.source == "" {
			continue
		}
		v := row[r.source]
		if r.dateFormat != nil && !t.renameOnly {
			if s, isString := v.(string); isString {
				v = ReformatDate(r.source, s, r.dateFormat, t.report)
			}
		}
		row[r.Target()] = v
	}
	return row
}
