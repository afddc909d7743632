package archive

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// idPrefix names the digest algorithm in content-addressed IDs.
const idPrefix = "sha256:"

// CanonicalJSON serializes v with all object keys recursively sorted, so two
// structurally equal values always produce identical bytes regardless of the
// key order they were written with.
func CanonicalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ContentID returns the content-addressed identifier for data: the hex
// SHA-256 digest of its canonical serialization, prefixed with the algorithm
// name. Identical data always yields the same ID; this is the deduplication
// key for the whole archive.
func ContentID(data any) (string, error) {
	canonical, err := CanonicalJSON(data)
	if err != nil {
		return "", fmt.Errorf("canonicalizing data: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return idPrefix + hex.EncodeToString(sum[:]), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyBytes, err := json.Marshal(k)
			if err != nil {
				return fmt.Errorf("encoding key %q: %w", k, err)
			}
			buf.Write(keyBytes)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case json.Number:
		// Preserve the literal as written so re-hashing stored documents is
		// byte-stable.
		buf.WriteString(val.String())
		return nil
	default:
		encoded, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("encoding value: %w", err)
		}
		buf.Write(encoded)
		return nil
	}
}
