package loyalty

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// decodeResponse applies the envelope rules to every response:
//
//   - non-2xx: the JSON "error" (or "message") text, else "Request failed (<status>)"
//   - JSON object with a boolean "ok": false raises, true yields "data"
//   - anything else is the raw payload
//
// The returned payload is nil when a successful envelope carried no data.
func decodeResponse(resp *http.Response, fallback string) (json.RawMessage, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	isJSON := isJSONContentType(resp.Header.Get("Content-Type"))
	status := resp.StatusCode

	if status < 200 || status > 299 {
		if isJSON {
			if msg := errorMessage(body); msg != "" {
				return nil, &APIError{Status: status, Message: msg}
			}
		}
		return nil, &APIError{Status: status, Message: fmt.Sprintf("Request failed (%d)", status)}
	}

	if !isJSON {
		return body, nil
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("decode response: invalid JSON body")
	}

	env, ok := detectEnvelope(body)
	if !ok {
		return body, nil
	}
	if !env.ok {
		msg := env.errorText
		if msg == "" {
			msg = fmt.Sprintf("%s (%d)", fallback, status)
		}
		return nil, &APIError{Status: status, Message: msg}
	}
	if isNull(env.data) {
		return nil, nil
	}
	return env.data, nil
}

type envelope struct {
	ok        bool
	data      json.RawMessage
	errorText string
}

// detectEnvelope reports whether body is an object with a boolean "ok" field.
func detectEnvelope(body []byte) (envelope, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return envelope{}, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return envelope{}, false
	}
	var ok bool
	if raw, present := fields["ok"]; !present || json.Unmarshal(raw, &ok) != nil {
		return envelope{}, false
	}
	return envelope{
		ok:        ok,
		data:      fields["data"],
		errorText: textField(fields["error"]),
	}, true
}

// errorMessage extracts "error" or "message" from a JSON error body.
func errorMessage(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ""
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return ""
	}
	if msg := textField(fields["error"]); msg != "" {
		return msg
	}
	return textField(fields["message"])
}

func textField(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func isJSONContentType(value string) bool {
	if value == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.Split(value, ";")[0]))
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
