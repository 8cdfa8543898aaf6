// Package problem renders API failures as RFC 7807 problem details.
package problem

import (
	"net/http"
	"strconv"
)

const typeBase = "https://developer.mozilla.org/en-US/docs/Web/HTTP/Reference/Status/"

type InvalidParam struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// APIError implements error and serializes as application/problem+json.
type APIError struct {
	Type          string         `json:"type"`
	Title         string         `json:"title"`
	Status        int            `json:"status"`
	Detail        string         `json:"detail"`
	Instance      string         `json:"instance,omitempty"`
	InvalidParams []InvalidParam `json:"invalidParams,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`
}

func (e APIError) Error() string { return e.Detail }

func newProblem(status int, detail string, params []InvalidParam) APIError {
	return APIError{
		Type:          typeBase + strconv.Itoa(status),
		Title:         http.StatusText(status),
		Status:        status,
		Detail:        detail,
		InvalidParams: params,
	}
}

func NewBadRequest(detail string, params ...InvalidParam) APIError {
	return newProblem(http.StatusBadRequest, detail, params)
}

func NewUnauthorized(detail string) APIError {
	return newProblem(http.StatusUnauthorized, detail, nil)
}

func NewForbidden(detail string) APIError {
	return newProblem(http.StatusForbidden, detail, nil)
}

func NewNotFound(detail string, params ...InvalidParam) APIError {
	return newProblem(http.StatusNotFound, detail, params)
}

// NewUnprocessable reports a well-formed request whose payload could not be
// used, such as an archive without any previewable font.
func NewUnprocessable(detail string) APIError {
	return newProblem(http.StatusUnprocessableEntity, detail, nil)
}

func NewInternalServerError(detail string) APIError {
	return newProblem(http.StatusInternalServerError, detail, nil)
}

// NewBadGateway reports a failure of the object store behind the API.
func NewBadGateway(detail string) APIError {
	return newProblem(http.StatusBadGateway, detail, nil)
}

// WithWarnings attaches non-fatal notes collected before the failure.
func (e APIError) WithWarnings(warnings []string) APIError {
	if len(warnings) > 0 {
		e.Warnings = append([]string(nil), warnings...)
	}
	return e
}
