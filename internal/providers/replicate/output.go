package replicate

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Output is a prediction result that may arrive as a single JSON string or a
// list of strings, depending on the model. The one unwrapping rule across the
// pipeline is First: when a model hands back several values, only the first
// is used.
type Output struct {
	values []string
}

// OutputOf builds an Output from literal values. Test helper and adapter
// seam.
func OutputOf(values ...string) Output {
	return Output{values: values}
}

// UnmarshalJSON accepts a string, a list of strings, or null.
func (o *Output) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		o.values = nil
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		o.values = []string{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		o.values = list
		return nil
	}
	return fmt.Errorf("replicate: unsupported output shape: %s", data)
}

// First returns the first value and whether one exists.
func (o Output) First() (string, bool) {
	if len(o.values) == 0 {
		return "", false
	}
	return o.values[0], true
}

// Values returns all values in service order.
func (o Output) Values() []string {
	return o.values
}

// Len reports how many values the prediction produced.
func (o Output) Len() int {
	return len(o.values)
}
