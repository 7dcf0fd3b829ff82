package erp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/dhe2en832/erp-next-system-sub000/internal/shared"
)

type errorBody struct {
	ServerMessages string          `json:"_server_messages"`
	Exc            json.RawMessage `json:"exc"`
	ExcType        string          `json:"exc_type"`
	Message        json.RawMessage `json:"message"`
	Exception      string          `json:"exception"`
}

// parseError turns an error response into a domain error. The message is taken from _server_messages,
// then the last line of exc, then message, then exception.
func parseError(status int, raw []byte) error {
	var body errorBody
	_ = json.Unmarshal(raw, &body)

	if status == http.StatusNotFound || body.ExcType == "DoesNotExistError" {
		msg := extractMessage(body)
		if msg == "" {
			msg = "dokumen tidak ditemukan"
		}
		return fmt.Errorf("%w: %s", shared.ErrNotFound, shared.StripMarkup(msg))
	}
	if status == http.StatusBadGateway || status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout {
		return &shared.TransientError{Op: "erp", Err: fmt.Errorf("status %d", status)}
	}
	msg := extractMessage(body)
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
		if msg == "" || strings.HasPrefix(msg, "<") {
			msg = fmt.Sprintf("ERP menolak permintaan (status %d)", status)
		}
	}
	return shared.NewBackendRejection(status, msg)
}

func extractMessage(body errorBody) string {
	if msg := serverMessages(body.ServerMessages); msg != "" {
		return msg
	}
	if msg := lastExcLine(body.Exc); msg != "" {
		return msg
	}
	if msg := rawString(body.Message); msg != "" {
		return msg
	}
	if body.Exception != "" {
		if i := strings.Index(body.Exception, ": "); i >= 0 {
			return strings.TrimSpace(body.Exception[i+2:])
		}
		return body.Exception
	}
	return ""
}

// serverMessages decodes the doubly encoded list Frappe sends: a JSON string holding an array of JSON
// strings, each an object with a message field or a bare message.
func serverMessages(raw string) string {
	if raw == "" {
		return ""
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return ""
	}
	var out []string
	for _, item := range items {
		var obj struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal([]byte(item), &obj); err == nil && obj.Message != "" {
			out = append(out, strings.TrimSpace(shared.StripMarkup(obj.Message)))
			continue
		}
		if s := strings.TrimSpace(shared.StripMarkup(item)); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "; ")
}

func lastExcLine(raw json.RawMessage) string {
	text := rawString(raw)
	if text == "" {
		return ""
	}
	// exc is sometimes a JSON encoded list of tracebacks
	var list []string
	if err := json.Unmarshal([]byte(text), &list); err == nil && len(list) > 0 {
		text = list[len(list)-1]
	}
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if j := strings.Index(line, ": "); j >= 0 && strings.Contains(line[:j], "Error") {
			return strings.TrimSpace(line[j+2:])
		}
		return line
	}
	return ""
}

// rawString returns the value if raw holds a JSON string.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
