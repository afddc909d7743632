// Package archive defines the Content Envelope, the wire and storage format
// every archived document conforms to, together with the canonical JSON
// serialization and content-addressed ID scheme that make identical content
// deduplicate to identical identifiers.
package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Envelope wraps every stored document. Type is a free-form discriminator:
// the envelope layer never validates it against an enumeration, so new
// content types work without changes here. Data is opaque to this layer; its
// shape is owned by the projector registered for Type.
type Envelope struct {
	Type string         `json:"type"`
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

// ParseEnvelope decodes stored document bytes into an Envelope. Numbers are
// kept as json.Number so re-canonicalizing Data reproduces the stored byte
// form exactly.
func ParseEnvelope(raw []byte) (*Envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var env Envelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("envelope missing type")
	}
	if env.ID == "" {
		return nil, fmt.Errorf("envelope missing id")
	}
	if env.Data == nil {
		return nil, fmt.Errorf("envelope missing data")
	}
	return &env, nil
}

// Verify recomputes the content-addressed ID from Data and reports whether
// it matches the envelope's stored ID.
func (e *Envelope) Verify() (bool, error) {
	id, err := ContentID(e.Data)
	if err != nil {
		return false, err
	}
	return id == e.ID, nil
}
