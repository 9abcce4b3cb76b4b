// Package overrides loads the local file of replacement column comments.
package overrides

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// DefaultFile is the override file read when none is configured
const DefaultFile = "new_values.json"

// ErrMalformed matches every *MalformedError
var ErrMalformed = errors.New("malformed override file")

// MalformedError reports an override file that is not a flat JSON object of
// column name to comment string
type MalformedError struct {
	Path   string
	Reason string
	Err    error
}

func (e *MalformedError) Error() string {
	msg := fmt.Sprintf("malformed override file %s: %s", e.Path, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedError) Unwrap() error { return e.Err }

func (e *MalformedError) Is(target error) bool { return target == ErrMalformed }

// Load reads the override file at path
func Load(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read override file: %w", err)
	}
	return parse(path, data)
}

// Parse reads an override document from r. name is only used in errors.
func Parse(name string, r io.Reader) (map[string]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read override file: %w", err)
	}
	return parse(name, data)
}

func parse(name string, data []byte) (map[string]string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &MalformedError{Path: name, Reason: "file is empty"}
	}

	dec := json.NewDecoder(bytes.NewReader(data))

	// Repeated column names are an error, so the object is read token by token
	tok, err := dec.Token()
	if err != nil {
		return nil, &MalformedError{Path: name, Reason: "expected a JSON object", Err: err}
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, &MalformedError{Path: name, Reason: "expected a JSON object"}
	}

	values := make(map[string]string)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, &MalformedError{Path: name, Reason: "expected a JSON object", Err: err}
		}
		key, ok := tok.(string)
		if !ok {
			return nil, &MalformedError{Path: name, Reason: "expected a JSON object"}
		}
		if key == "" {
			return nil, &MalformedError{Path: name, Reason: "empty column name"}
		}
		if _, dup := values[key]; dup {
			return nil, &MalformedError{Path: name, Reason: fmt.Sprintf("duplicate column %q", key)}
		}

		var comment *string
		if err := dec.Decode(&comment); err != nil || comment == nil {
			return nil, &MalformedError{Path: name, Reason: fmt.Sprintf("value for column %q is not a string", key)}
		}
		values[key] = *comment
	}

	if _, err := dec.Token(); err != nil {
		return nil, &MalformedError{Path: name, Reason: "expected a JSON object", Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &MalformedError{Path: name, Reason: "unexpected data after the top-level object"}
	}

	return values, nil
}
