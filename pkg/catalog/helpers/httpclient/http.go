package httpclient

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPClient is shared by every outbound integration. Tests replace it with
// the client of an httptest server.
var HTTPClient = &http.Client{Timeout: 2 * time.Minute}

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	Service string
	Status  int
	Body    string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: request failed with status %d", e.Service, e.Status)
	}
	return fmt.Sprintf("%s: request failed with status %d: %s", e.Service, e.Status, e.Body)
}

// CheckStatus returns a *StatusError carrying a bounded body snippet when
// resp is not successful. The body is left unread for 2xx responses.
func CheckStatus(service string, resp *http.Response) error {
	if resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{
		Service: service,
		Status:  resp.StatusCode,
		Body:    strings.TrimSpace(string(body)),
	}
}
