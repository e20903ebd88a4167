package testutils

import (
	"encoding/json"
	"fmt"

	diff "github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

// EventAssertOptions controls JSON event comparison.
type EventAssertOptions struct {
	// IgnoreFields lists top-level keys stripped from both sides before the
	// diff runs. Connection IDs and timestamps are volatile across runs.
	IgnoreFields []string
	// ShowFullJSON appends the full actual payload to the failure message.
	ShowFullJSON bool
}

// EventOption is a functional option for configuring EventAsserter
type EventOption func(*EventAssertOptions)

// EventAsserter compares marshaled event payloads structurally, reporting a
// readable delta instead of failing on raw string inequality.
type EventAsserter struct {
	t       TestingT
	options EventAssertOptions
}

// NewEventAsserter creates an asserter that ignores the volatile fields by
// default.
func NewEventAsserter(t TestingT) *EventAsserter {
	return &EventAsserter{
		t: t,
		options: EventAssertOptions{
			IgnoreFields: []string{"connection_id", "ts_us"},
		},
	}
}

// WithOptions applies functional options to the asserter.
func (ea *EventAsserter) WithOptions(opts ...EventOption) *EventAsserter {
	for _, opt := range opts {
		opt(&ea.options)
	}
	return ea
}

// Assert marshals both values to JSON and compares them structurally.
func (ea *EventAsserter) Assert(actual, expected interface{}) {
	ea.t.Helper()

	actualObj, err := ea.toObject(actual)
	if err != nil {
		ea.t.Errorf("failed to encode actual value: %v", err)
		return
	}
	expectedObj, err := ea.toObject(expected)
	if err != nil {
		ea.t.Errorf("failed to encode expected value: %v", err)
		return
	}

	for _, field := range ea.options.IgnoreFields {
		delete(actualObj, field)
		delete(expectedObj, field)
	}

	d := diff.New().CompareObjects(expectedObj, actualObj)
	if !d.Modified() {
		return
	}

	f := formatter.NewAsciiFormatter(expectedObj, formatter.AsciiFormatterConfig{
		ShowArrayIndex: true,
		Coloring:       false,
	})
	delta, err := f.Format(d)
	if err != nil {
		ea.t.Errorf("failed to format event delta: %v", err)
		return
	}
	if ea.options.ShowFullJSON {
		full, _ := json.MarshalIndent(actualObj, "", "  ")
		ea.t.Errorf("Event mismatch - delta (expected -> actual):\n%s\nactual:\n%s", delta, full)
		return
	}
	ea.t.Errorf("Event mismatch - delta (expected -> actual):\n%s", delta)
}

func (ea *EventAsserter) toObject(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return obj, nil
}

// WithIgnoredFields replaces the set of top-level keys excluded from the diff.
func WithIgnoredFields(fields ...string) EventOption {
	return func(opts *EventAssertOptions) {
		opts.IgnoreFields = fields
	}
}

// WithShowFullJSON includes the full actual payload in failure messages.
func WithShowFullJSON(show bool) EventOption {
	return func(opts *EventAssertOptions) {
		opts.ShowFullJSON = show
	}
}
