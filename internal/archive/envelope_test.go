package archive

import (
	"fmt"
	"testing"
)

func TestParseEnvelope(t *testing.T) {
	raw := []byte(`{"type":"quotes","id":"sha256:abc","data":{"author":"Seneca"}}`)
	env, err := ParseEnvelope(raw)
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}
	if env.Type != "quotes" {
		t.Errorf("Type = %q, want quotes", env.Type)
	}
	if env.ID != "sha256:abc" {
		t.Errorf("ID = %q, want sha256:abc", env.ID)
	}
	if env.Data["author"] != "Seneca" {
		t.Errorf("Data[author] = %v, want Seneca", env.Data["author"])
	}
}

func TestParseEnvelopeRejectsIncomplete(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"missing type", `{"id":"sha256:abc","data":{}}`},
		{"missing id", `{"type":"quotes","data":{}}`},
		{"missing data", `{"type":"quotes","id":"sha256:abc"}`},
		{"not json", `{{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseEnvelope([]byte(tc.raw)); err == nil {
				t.Errorf("ParseEnvelope(%s) succeeded, want error", tc.raw)
			}
		})
	}
}

func TestEnvelopeVerify(t *testing.T) {
	data := decodeData(t, `{"author":"Seneca","slug":"seneca-1"}`)
	id, err := ContentID(data)
	if err != nil {
		t.Fatalf("ContentID: %v", err)
	}

	raw := fmt.Sprintf(`{"type":"quotes","id":"%s","data":{"slug":"seneca-1","author":"Seneca"}}`, id)
	env, err := ParseEnvelope([]byte(raw))
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}
	ok, err := env.Verify()
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Error("Verify = false for matching content")
	}

	env.Data["author"] = "Epictetus"
	ok, err = env.Verify()
	if err != nil {
		t.Fatalf("Verify after mutation: %v", err)
	}
	if ok {
		t.Error("Verify = true after content mutation")
	}
}

func TestEnvelopeVerifyUnserializableData(t *testing.T) {
	env := &Envelope{
		Type: "quotes",
		ID:   "sha256:abc",
		Data: map[string]any{"bad": make(chan int)},
	}
	if _, err := env.Verify(); err == nil {
		t.Error("Verify succeeded on unserializable data, want error")
	}
}
