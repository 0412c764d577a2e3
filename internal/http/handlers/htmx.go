package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"
)

const (
	headerHXRequest  = "HX-Request"
	headerHXRedirect = "HX-Redirect"
)

func requestHeaderIs(c *echo.Context, name, want string) bool {
	if c == nil || c.Request() == nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(c.Request().Header.Get(name)), strings.TrimSpace(want))
}

func isHX(c *echo.Context) bool {
	return requestHeaderIs(c, headerHXRequest, "true")
}

func setHXRedirect(c *echo.Context, location string) {
	if c == nil {
		return
	}
	c.Response().Header().Set(headerHXRedirect, location)
}

// addVary merges values into the Vary header without duplicates. A "*" anywhere
// replaces the whole header.
func addVary(c *echo.Context, values ...string) {
	if c == nil || len(values) == 0 {
		return
	}
	header := c.Response().Header()

	var tokens []string
	for _, line := range header.Values(echo.HeaderVary) {
		tokens = append(tokens, strings.Split(line, ",")...)
	}
	tokens = append(tokens, values...)

	seen := make(map[string]bool, len(tokens))
	merged := make([]string, 0, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		switch {
		case token == "":
			continue
		case token == "*":
			header.Set(echo.HeaderVary, "*")
			return
		}
		canonical := http.CanonicalHeaderKey(token)
		if seen[canonical] {
			continue
		}
		seen[canonical] = true
		merged = append(merged, canonical)
	}
	if len(merged) > 0 {
		header.Set(echo.HeaderVary, strings.Join(merged, ", "))
	}
}

// redirectSeeOther sends the browser to location. htmx requests get an
// HX-Redirect so the whole page navigates instead of swapping the response in.
func redirectSeeOther(c *echo.Context, location string) error {
	addVary(c, headerHXRequest)
	if isHX(c) {
		setHXRedirect(c, location)
		return c.NoContent(http.StatusOK)
	}
	return c.Redirect(http.StatusSeeOther, location)
}
