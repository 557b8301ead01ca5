package metabans

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// StatusOK is the per-request status of a successful Metabans response.
const StatusOK = "OK"

// Envelope is the top-level body returned by the Metabans API.
// Responses stays nil when the key is missing or null.
type Envelope struct {
	Responses []Response `json:"responses"`
}

// Response is the answer to one query of a batch.
type Response struct {
	Error     *ResponseError  `json:"error,omitempty"`
	Request   map[string]any  `json:"request,omitempty"`
	Status    string          `json:"status,omitempty"`
	FetchTime FlexString      `json:"fetch_time,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ResponseError is the error object of a failed response.
type ResponseError struct {
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// UnmarshalJSON accepts {"code":5,"message":"..."}, a numeric string code
// or a bare error string. A code that is not an integer is left at zero so
// only this response counts as failed.
func (e *ResponseError) UnmarshalJSON(b []byte) error {
	var msg string
	if err := json.Unmarshal(b, &msg); err == nil {
		e.Message = msg
		return nil
	}

	var raw struct {
		Code    json.RawMessage `json:"code"`
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	var message FlexString
	if len(raw.Message) > 0 && message.UnmarshalJSON(raw.Message) == nil {
		e.Message = string(message)
	}

	var code FlexString
	if len(raw.Code) > 0 && code.UnmarshalJSON(raw.Code) == nil {
		e.Code = parseCode(string(code))
	}

	return nil
}

// parseCode reads integral codes such as "5" or "5.0" and returns zero otherwise.
func parseCode(s string) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0
	}

	return int(f)
}

// OK reports whether the response succeeded.
func (r Response) OK() bool {
	return r.Status == StatusOK
}

// Action returns the action echoed back in the request mirror.
func (r Response) Action() string {
	if r.Request == nil {
		return ""
	}
	if a, ok := r.Request["action"].(string); ok {
		return a
	}

	return ""
}

// ErrorCode returns the error code of a failed response, zero otherwise.
func (r Response) ErrorCode() int {
	if r.Error == nil {
		return 0
	}

	return r.Error.Code
}

// Err converts a failed response into an error. It returns nil for OK responses.
func (r Response) Err() error {
	switch {
	case r.OK():
		return nil
	case r.Error != nil:
		return &APIError{Code: r.Error.Code, Message: r.Error.Message}
	default:
		return fmt.Errorf("%w: response has neither status nor error", ErrUnexpectedResponse)
	}
}

// Result is the outcome of one call: either the payload of a single
// successful response or the raw responses of a batch.
type Result struct {
	single *Response
	batch  []Response
}

// IsBatch reports whether the call returned more than one response.
func (r *Result) IsBatch() bool {
	return r.single == nil
}

// Single returns the only response of a single-query call.
func (r *Result) Single() (Response, bool) {
	if r.single == nil {
		return Response{}, false
	}

	return *r.single, true
}

// Responses returns every response of the call in request order.
func (r *Result) Responses() []Response {
	if r.single != nil {
		return []Response{*r.single}
	}

	return r.batch
}

// HasData reports whether the single response carries a non-null payload.
func (r *Result) HasData() bool {
	if r.single == nil {
		return false
	}

	return len(r.single.Data) > 0 && !bytes.Equal(r.single.Data, []byte("null"))
}

// Decode unmarshals the data of a single response into v.
// v is left untouched when there is no data.
func (r *Result) Decode(v any) error {
	if r.single == nil {
		return ErrNotSingle
	}
	if len(r.single.Data) == 0 || bytes.Equal(r.single.Data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(r.single.Data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}

	return nil
}

// PlayerStatus is the assessment data returned for status, sighting and
// assessment calls.
type PlayerStatus struct {
	InheritedBlacklist FlexString `json:"inherited_blacklist"`
	AssessmentExpires  FlexString `json:"assessment_expires"`
	Reason             FlexString `json:"reason"`
	IsBanned           bool       `json:"is_banned"`
	IsBlacklisted      bool       `json:"is_blacklisted"`
	IsWhitelisted      bool       `json:"is_whitelisted"`
	IsWatched          bool       `json:"is_watched"`
}

// Expires returns the assessment expiry, if Metabans reported one.
func (s PlayerStatus) Expires() (time.Time, bool) {
	if s.AssessmentExpires == "" {
		return time.Time{}, false
	}

	secs, err := strconv.ParseFloat(string(s.AssessmentExpires), 64)
	if err != nil || secs <= 0 {
		return time.Time{}, false
	}

	return time.Unix(int64(secs), 0), true
}

// AccountAvailability is the data returned by mbo_availability_account_name.
type AccountAvailability struct {
	AccountName FlexString `json:"account_name"`
	IsAvailable bool       `json:"is_available"`
}

// FlexString decodes JSON strings, numbers, booleans and null into a
// string. false and null become the empty string.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null" || s == "false":
		*f = ""
	case s == "true":
		*f = "true"
	case strings.HasPrefix(s, `"`):
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = FlexString(v)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		*f = FlexString(n.String())
	}

	return nil
}
