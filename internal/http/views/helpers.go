package views

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/intuneview/intuneview/internal/http/viewmodels"
)

const appName = "Intune Config Viewer"

type navItem struct {
	Label string
	Href  string
}

var navItems = []navItem{
	{Label: "Dashboard", Href: "/"},
	{Label: "Device Configurations", Href: "/configurations"},
	{Label: "Compliance Policies", Href: "/compliance"},
	{Label: "Managed Devices", Href: "/devices"},
	{Label: "Mobile Apps", Href: "/apps"},
}

func FormatInt(v int) string {
	return strconv.Itoa(v)
}

func IsActivePath(activePath, target string) bool {
	activePath = strings.TrimSpace(activePath)
	target = strings.TrimSpace(target)
	if target == "/" {
		return activePath == "/"
	}
	return activePath == target || strings.HasPrefix(activePath, target+"/")
}

func IsAlertDestructive(category string) bool {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return false
	}
	return strings.Contains(category, "error") || strings.Contains(category, "destructive")
}

func AlertRole(destructive bool) string {
	if destructive {
		return "alert"
	}
	return "status"
}

func AlertAriaLive(destructive bool) string {
	if destructive {
		return "assertive"
	}
	return "polite"
}

func pageTitle(title string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t + " · " + appName
	}
	return appName
}

func navUser(data viewmodels.LayoutData) string {
	if data.UserEmail != "" {
		return data.UserEmail
	}
	return data.UserName
}

func hasUser(data viewmodels.LayoutData) bool {
	return data.UserEmail != "" || data.UserName != ""
}

// csrfHeaders is the hx-headers value that sends the CSRF token with every
// htmx request.
func csrfHeaders(token string) string {
	payload, err := json.Marshal(map[string]string{"X-CSRF-Token": token})
	if err != nil {
		return "{}"
	}
	return string(payload)
}

func loginLayout(data viewmodels.LoginViewData) viewmodels.LayoutData {
	return viewmodels.LayoutData{
		Title:     "Sign in",
		CSRFToken: data.CSRFToken,
		Toast:     data.Toast,
	}
}
