package store

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// WithID returns doc with its "id" field set to id. Backends call it on every
// write so a document read back is self-describing.
func WithID(doc json.RawMessage, id int64) (json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(doc, &fields); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if fields == nil {
		return nil, fmt.Errorf("decode document: not an object")
	}
	fields["id"] = json.RawMessage(strconv.FormatInt(id, 10))
	return json.Marshal(fields)
}

// DocID reads the "id" field of a document, returning 0 when it is absent.
func DocID(doc json.RawMessage) (int64, error) {
	var head struct {
		ID *json.Number `json:"id"`
	}
	if err := json.Unmarshal(doc, &head); err != nil {
		return 0, fmt.Errorf("decode document id: %w", err)
	}
	if head.ID == nil {
		return 0, nil
	}
	id, err := head.ID.Int64()
	if err != nil {
		return 0, fmt.Errorf("document id %s: %w", head.ID.String(), err)
	}
	return id, nil
}
