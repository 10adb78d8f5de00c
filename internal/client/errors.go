package client

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/yungbote/mlcompare/internal/platform/apierr"
)

// parseHTTPError turns a non-2xx response into an *apierr.Error. 404 is
// always NotFound; otherwise the body's "error" (string or {"message"}) or
// "message" field is used, falling back to "Failed to <op>".
func parseHTTPError(op string, status int, raw []byte) *apierr.Error {
	if status == http.StatusNotFound {
		e := apierr.NotFound()
		if msg := bodyMessage(raw); msg != "" {
			e.Err = &bodyError{msg: msg}
		}
		return e
	}
	msg := bodyMessage(raw)
	if msg == "" {
		msg = "Failed to " + op
	}
	return apierr.Generic(status, msg)
}

type bodyError struct{ msg string }

func (e *bodyError) Error() string { return e.msg }

func bodyMessage(raw []byte) string {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(raw, &env); err != nil {
		return ""
	}
	if v, ok := env["error"]; ok {
		var s string
		if json.Unmarshal(v, &s) == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
		var obj struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(v, &obj) == nil && strings.TrimSpace(obj.Message) != "" {
			return strings.TrimSpace(obj.Message)
		}
	}
	if v, ok := env["message"]; ok {
		var s string
		if json.Unmarshal(v, &s) == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
