package server

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"example.com/microhttpd/internal/logger"
)

// ErrorDetail represents the inner structure of a JSON error response.
type ErrorDetail struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
}

// ErrorResponseJSON represents the full JSON error response body.
type ErrorResponseJSON struct {
	Error ErrorDetail `json:"error"`
}

// defaultHTMLMessages maps HTTP status codes to their default HTML messages.
var defaultHTMLMessages = map[int]struct {
	Title   string
	Message string
}{
	http.StatusFound: {
		Title:   "302 Found",
		Message: "The document has moved.",
	},
	http.StatusUnauthorized: {
		Title:   "401 Unauthorized",
		Message: "Authorization is required to access this resource.",
	},
	http.StatusForbidden: {
		Title:   "403 Forbidden",
		Message: "You don't have permission to access this resource.",
	},
	http.StatusNotFound: {
		Title:   "404 Not Found",
		Message: "The requested URL was not found on this server.",
	},
	http.StatusPreconditionFailed: {
		Title:   "412 Precondition Failed",
		Message: "A precondition given in the request evaluated to false.",
	},
	http.StatusInternalServerError: {
		Title:   "500 Internal Server Error",
		Message: "The server encountered an internal error and was unable to complete your request.",
	},
}

// PrefersJSON checks whether the Accept header value expresses a preference
// for application/json over HTML. Media types are weighed by q-value, then
// specificity, then order of appearance.
func PrefersJSON(acceptHeaderValue string) bool {
	if acceptHeaderValue == "" {
		return false
	}

	type offer struct {
		mediaType string
		q         float64
		specific  bool
		order     int
	}
	var offers []offer

	for i, part := range strings.Split(acceptHeaderValue, ",") {
		part = strings.TrimSpace(part)
		mediaType := part
		qValue := 1.0

		if idx := strings.Index(part, ";"); idx != -1 {
			mediaType = strings.TrimSpace(part[:idx])
			for _, param := range strings.Split(part[idx+1:], ";") {
				param = strings.TrimSpace(param)
				if !strings.HasPrefix(param, "q=") {
					continue
				}
				if q, err := strconv.ParseFloat(param[2:], 64); err == nil && q >= 0 && q <= 1 {
					qValue = q
				} else {
					qValue = 0
				}
				break
			}
		}

		// A media type with q=0 is explicitly rejected by the client.
		if qValue > 0 {
			offers = append(offers, offer{
				mediaType: strings.ToLower(mediaType),
				q:         qValue,
				specific:  !strings.HasSuffix(mediaType, "/*") && mediaType != "*/*",
				order:     i,
			})
		}
	}

	if len(offers) == 0 {
		return false
	}

	sort.Slice(offers, func(i, j int) bool {
		if offers[i].q != offers[j].q {
			return offers[i].q > offers[j].q
		}
		if offers[i].specific != offers[j].specific {
			return offers[i].specific
		}
		return offers[i].order < offers[j].order
	})

	return offers[0].mediaType == "application/json"
}

// WriteErrorResponse generates and sends a default error response. The body
// is HTML unless the request's Accept header prefers application/json.
// extraHeaders are emitted verbatim after the generated ones, letting
// callers attach fields like WWW-Authenticate or Location.
func WriteErrorResponse(rw ResponseWriter, statusCode int, req *Request, detail string, extraHeaders []HeaderField, log *logger.Logger) error {
	statusText := http.StatusText(statusCode)
	if statusText == "" {
		statusText = "Error"
	}

	accept := ""
	if req != nil {
		accept = req.Header.Get("Accept")
	}

	var body []byte
	var contentType string

	if PrefersJSON(accept) {
		contentType = "application/json; charset=utf-8"
		jsonBody, err := json.Marshal(ErrorResponseJSON{
			Error: ErrorDetail{StatusCode: statusCode, Message: statusText, Detail: detail},
		})
		if err == nil {
			body = jsonBody
		}
	}

	if body == nil {
		contentType = "text/html; charset=utf-8"
		title := fmt.Sprintf("%d %s", statusCode, statusText)
		message := "The server encountered an error processing your request."
		if d, ok := defaultHTMLMessages[statusCode]; ok {
			title = d.Title
			message = d.Message
		}
		if detail != "" {
			message = message + " " + html.EscapeString(detail)
		}
		body = []byte(fmt.Sprintf(
			"<html><head><title>%s</title></head><body><h1>%s</h1><p>%s</p></body></html>",
			html.EscapeString(title), html.EscapeString(statusText), message))
	}

	headers := []HeaderField{
		{Name: "Content-Type", Value: contentType},
		{Name: "Content-Length", Value: strconv.Itoa(len(body))},
		{Name: "Cache-Control", Value: "no-cache, no-store, must-revalidate"},
	}
	headers = append(headers, extraHeaders...)

	if err := rw.SendHeaders(statusCode, headers, len(body) == 0); err != nil {
		return fmt.Errorf("failed to send error response headers (status %d): %w", statusCode, err)
	}
	if len(body) > 0 {
		if _, err := rw.WriteData(body, true); err != nil {
			return fmt.Errorf("failed to send error response body (status %d): %w", statusCode, err)
		}
	}
	return nil
}

// SendDefaultErrorResponse sends an error response and logs any failure to
// do so. Used where the caller has no recovery path of its own.
func SendDefaultErrorResponse(rw ResponseWriter, statusCode int, req *Request, detail string, log *logger.Logger) {
	if err := WriteErrorResponse(rw, statusCode, req, detail, nil, log); err != nil && log != nil {
		url := ""
		if req != nil {
			url = req.URL
		}
		log.Error("Failed to write error response", logger.LogFields{
			"status": statusCode,
			"url":    url,
			"error":  err.Error(),
		})
	}
}
