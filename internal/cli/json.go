package cli

import (
	"encoding/json"
	stderrors "errors"
	"io"

	"github.com/fleetdash/fleetdash/internal/errors"
)

// JSONEnvelope wraps command output in a consistent structure for machine
// parsing. All --json output uses this envelope.
type JSONEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *JSONError  `json:"error,omitempty"`
}

// JSONError carries the structured error fields for machine parsing.
type JSONError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// WriteJSONSuccess writes a successful envelope with data to the writer.
func WriteJSONSuccess(w io.Writer, data interface{}) error {
	return writeJSONEnvelope(w, JSONEnvelope{Success: true, Data: data})
}

// WriteJSONError writes a failure envelope. Structured errors keep their
// code and suggestion; anything else becomes code UNKNOWN.
func WriteJSONError(w io.Writer, err error) error {
	je := &JSONError{Code: "UNKNOWN", Message: err.Error()}
	var serr *errors.Error
	if stderrors.As(err, &serr) {
		je.Code = serr.Code
		je.Message = serr.Message
		je.Suggestion = serr.Suggestion
	}
	return writeJSONEnvelope(w, JSONEnvelope{Success: false, Error: je})
}

func writeJSONEnvelope(w io.Writer, env JSONEnvelope) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}
