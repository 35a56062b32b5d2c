package parser

import "strings"

// Client describes the software behind a request.
type Client struct {
	Kind    string `json:"kind"` // sdk, cli, browser, tool or unknown
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	OS      string `json:"os,omitempty"`
}

// ParseClient identifies the caller. clientInfo is the X-Client-Info header
// the Go SDK sends ("alawein-go/1.0"); it wins over the User-Agent.
func ParseClient(clientInfo, ua string) Client {
	if name, version, ok := strings.Cut(strings.TrimSpace(clientInfo), "/"); ok && name != "" {
		return Client{Kind: "sdk", Name: name, Version: version, OS: detectOS(ua)}
	}

	uaLower := strings.ToLower(ua)
	switch {
	case strings.HasPrefix(uaLower, "alaweinctl"):
		return Client{Kind: "cli", Name: "alaweinctl", Version: productVersion(ua)}
	case strings.HasPrefix(uaLower, "curl/"):
		return Client{Kind: "tool", Name: "curl", Version: productVersion(ua)}
	case strings.HasPrefix(uaLower, "go-http-client"):
		return Client{Kind: "tool", Name: "go-http-client", Version: productVersion(ua)}
	}

	if browser := detectBrowser(uaLower); browser != "" {
		return Client{Kind: "browser", Name: browser, OS: detectOS(ua)}
	}
	return Client{Kind: "unknown", Name: "unknown"}
}

func productVersion(ua string) string {
	first, _, _ := strings.Cut(ua, " ")
	_, v, _ := strings.Cut(first, "/")
	return v
}

func detectOS(ua string) string {
	uaLower := strings.ToLower(ua)
	switch {
	case strings.Contains(uaLower, "windows"):
		return "Windows"
	case strings.Contains(uaLower, "iphone") || strings.Contains(uaLower, "ipad"):
		return "iOS"
	case strings.Contains(uaLower, "mac os"):
		return "macOS"
	case strings.Contains(uaLower, "android"):
		return "Android"
	case strings.Contains(uaLower, "linux"):
		return "Linux"
	}
	return ""
}

func detectBrowser(uaLower string) string {
	switch {
	case strings.Contains(uaLower, "edg"):
		return "Edge"
	case strings.Contains(uaLower, "chrome"):
		return "Chrome"
	case strings.Contains(uaLower, "firefox"):
		return "Firefox"
	case strings.Contains(uaLower, "safari"):
		return "Safari"
	}
	return ""
}
