package registration

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/ruteri/rpt-registration-mock/api"
)

var (
	// ErrInvalidPayload is returned for bodies that are not parseable JSON:
	// empty, truncated or syntactically broken.
	ErrInvalidPayload = errors.New("invalid registration payload")

	// ErrMalformedStructure is returned for well-formed JSON that does not have
	// the registration shape: a non-object top level, wrong field types, null
	// node entries. Bodies that are not valid UTF-8 fall in this class too.
	ErrMalformedStructure = errors.New("malformed registration structure")
)

// ParseRequest decodes body into a registration request. The whole body is
// checked before anything is returned, so a failed parse never yields a
// partial request.
func ParseRequest(body []byte) (*api.RegistrationRequest, error) {
	if !utf8.Valid(body) {
		return nil, fmt.Errorf("%w: body is not valid UTF-8", ErrMalformedStructure)
	}

	var req *api.RegistrationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformedStructure, err)
	}
	if req == nil {
		return nil, fmt.Errorf("%w: body is null", ErrMalformedStructure)
	}
	return req, nil
}
