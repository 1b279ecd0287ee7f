package models

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrorTypeTokenExpired marks an [ErrorBody] describing an expired backend token.
const ErrorTypeTokenExpired = "TOKEN_EXPIRED"

// DefaultTokenInstructions is the remediation shown when the backend token expires.
var DefaultTokenInstructions = Instructions{
	"Open the token management application (usually at http://localhost:8080)",
	"Go to the Token Management page",
	"Generate a new token or refresh your existing token",
	"The new token will be automatically shared with the evaluation backend",
	"Try running your evaluation again",
}

const instructionsHeading = "To refresh your token:"

var stepPrefix = regexp.MustCompile(`^\d+[.)]\s*`)

// Instructions is an ordered list of remediation steps.
//
// On the wire it is a single string with a heading and numbered lines;
// decoding also accepts a JSON array of steps.
type Instructions []string

// String renders the numbered wire form.
func (in Instructions) String() string {
	if len(in) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(instructionsHeading)
	for i, step := range in {
		fmt.Fprintf(&b, "\n%d. %s", i+1, step)
	}
	return b.String()
}

func (in Instructions) MarshalJSON() ([]byte, error) {
	return json.Marshal(in.String())
}

func (in *Instructions) UnmarshalJSON(data []byte) error {
	var steps []string
	if err := json.Unmarshal(data, &steps); err == nil {
		*in = steps
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("instructions must be a string or list: %w", err)
	}
	*in = ParseInstructions(s)
	return nil
}

// ParseInstructions splits the numbered wire form back into steps.
func ParseInstructions(s string) Instructions {
	var steps Instructions
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == instructionsHeading {
			continue
		}
		steps = append(steps, stepPrefix.ReplaceAllString(line, ""))
	}
	return steps
}

// ExecuteResponse is the success body of the execute endpoint.
//
// Success is kept raw because producers send booleans, strings and numbers.
type ExecuteResponse struct {
	Success json.RawMessage `json:"success"`
	Message string          `json:"message,omitempty"`
	RunID   string          `json:"runId,omitempty"`
	Status  string          `json:"status,omitempty"`
}

// Succeeded reports whether the success field is truthy.
func (r ExecuteResponse) Succeeded() bool {
	return Truthy(r.Success)
}

// ErrorBody is the error body of the execute endpoint and the progress API.
type ErrorBody struct {
	Success       *bool        `json:"success,omitempty"`
	Error         string       `json:"error,omitempty"`
	Message       string       `json:"message,omitempty"`
	Type          string       `json:"type,omitempty"`
	Instructions  Instructions `json:"instructions,omitempty"`
	OriginalError string       `json:"originalError,omitempty"`
	RunID         string       `json:"runId,omitempty"`
}

// IsTokenExpired reports whether the body carries the TOKEN_EXPIRED type tag.
func (b ErrorBody) IsTokenExpired() bool {
	return b.Type == ErrorTypeTokenExpired
}

// Statistics aggregates tracked runs by status.
type Statistics struct {
	Total     int `json:"total"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Truthy evaluates a raw JSON value with loose truthiness: false, null, 0, ""
// and missing values are false, everything else is true.
func Truthy(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	switch s {
	case "", "null", "false", `""`:
		return false
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f != 0
	}
	return true
}
