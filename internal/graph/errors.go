package graph

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"
)

const maxErrorBodySize = 1 << 20 // 1 MiB

// FetchError reports a failed Graph read. Transport failures, non-success
// statuses and undecodable bodies all surface as FetchError.
type FetchError struct {
	Resource   Resource
	StatusCode int
	Status     string
	Message    string
	Details    string
	Err        error
}

func (e *FetchError) Error() string {
	if e == nil {
		return ""
	}
	prefix := "graph request failed"
	if e.Resource != "" {
		prefix = fmt.Sprintf("fetching %s failed", e.Resource.Label())
	}

	var b strings.Builder
	b.WriteString(prefix)
	if e.Status != "" {
		b.WriteString(": ")
		b.WriteString(e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Details != "" {
		b.WriteString(" (")
		b.WriteString(e.Details)
		b.WriteString(")")
	}
	return b.String()
}

func (e *FetchError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newStatusError(resource Resource, reqURL string, resp *http.Response, body []byte) *FetchError {
	return &FetchError{
		Resource:   resource,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Message:    extractGraphAPIErrorMessage(body),
		Details:    formatGraphAPIErrorDetails(reqURL, resp),
	}
}

func extractGraphAPIErrorMessage(body []byte) string {
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		msg := strings.TrimSpace(payload.Error.Message)
		code := strings.TrimSpace(payload.Error.Code)
		if msg != "" && code != "" {
			return code + ": " + msg
		}
		if msg != "" {
			return msg
		}
		if code != "" {
			return code
		}
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return ""
	}
	msg = strings.Join(strings.Fields(msg), " ")
	return truncateMessage(msg, 300)
}

// truncateMessage cuts msg to at most maxLen bytes without splitting a rune.
func truncateMessage(msg string, maxLen int) string {
	if len(msg) <= maxLen {
		return msg
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut] + "…"
}

func formatGraphAPIErrorDetails(reqURL string, resp *http.Response) string {
	var parts []string
	if v := safeURL(reqURL); v != "" {
		parts = append(parts, "url="+v)
	}
	if v := strings.TrimSpace(resp.Header.Get("request-id")); v != "" {
		parts = append(parts, "request_id="+v)
	}
	if v := strings.TrimSpace(resp.Header.Get("client-request-id")); v != "" {
		parts = append(parts, "client_request_id="+v)
	}
	return strings.Join(parts, ", ")
}

// safeURL drops userinfo and fragments before a URL is put into an error message.
func safeURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.RawQuery != "" {
		return u.Scheme + "://" + u.Host + u.Path + "?" + u.RawQuery
	}
	return u.Scheme + "://" + u.Host + u.Path
}
