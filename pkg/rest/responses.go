package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	apierr "github.com/dlhub-argonne/dlhub-sdk-go/pkg/api/types/errors"
)

// ErrRequest marks replies the service refused: the request itself has
// to change before retrying makes sense.
var ErrRequest = errors.New("request rejected")

// ErrServer marks failures on the service side.
var ErrServer = errors.New("server error")

type StatusCodeRange int

const (
	StatusUnknown StatusCodeRange = iota
	Status1xx
	Status2xx
	Status3xx
	Status4xx
	Status5xx
)

func (sc StatusCodeRange) String() string {
	switch sc {
	case Status1xx:
		return "informational response"
	case Status2xx:
		return "success"
	case Status3xx:
		return "redirect"
	case Status4xx:
		return "client error"
	case Status5xx:
		return "server error"
	default:
		return fmt.Sprintf("unknown (%d)", sc)
	}
}

func StatusCodeRangeOf(resp *http.Response) StatusCodeRange {
	sc := resp.StatusCode
	if sc < 200 {
		return Status1xx
	}
	if sc < 300 {
		return Status2xx
	}
	if sc < 400 {
		return Status3xx
	}
	if sc < 500 {
		return Status4xx
	}
	if sc < 600 {
		return Status5xx
	}
	return StatusUnknown
}

// MessageFor titles errors per HTTP status code range.
type MessageFor map[StatusCodeRange]string

// unmarshalJsonResponse decodes a JSON reply into v.
//
// Replies outside 2xx become errors instead: the body is decoded as the
// service's error shape when possible, titled by messageFor, and tagged
// ErrRequest or ErrServer so callers can tell whose fault it was.
func unmarshalJsonResponse[T any](resp *http.Response, v *T, messageFor MessageFor) error {
	scr := StatusCodeRangeOf(resp)
	if scr <= Status2xx {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return apierr.Reasonf(
				"unexpected response (status code = %d)", resp.StatusCode,
			).CausedBy(err)
		}
		return nil
	}

	summary, ok := messageFor[scr]
	if !ok {
		summary = scr.String()
	}

	sentinel := ErrServer
	if scr == Status4xx {
		sentinel = ErrRequest
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s: cannot read server message: %s", sentinel, summary, err)
	}
	return fmt.Errorf("%w: %s: %s", sentinel, summary, parseErrorMessage(body))
}

// parseErrorMessage renders whatever the server sent as a one-line
// explanation: its structured error shape when it parses, the raw body
// otherwise.
func parseErrorMessage(body []byte) string {
	eresp := apierr.ErrorResponse{}
	if err := json.Unmarshal(body, &eresp); err == nil {
		return eresp.Message.String()
	}

	emsg := apierr.ErrorMessage{}
	if err := json.Unmarshal(body, &emsg); err == nil {
		return emsg.String()
	}

	return string(body)
}
