package traceevent

import (
	"encoding/json"
	"fmt"
	"io"
)

// WriteDocument serializes the event sequence as a JSON array. The viewer
// accepts a bare array as well as the object form with a traceEvents key;
// the array form is what the collector pipeline consumes.
func WriteDocument(w io.Writer, events []*Event) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(events); err != nil {
		return fmt.Errorf("encoding trace document: %w", err)
	}
	return nil
}
