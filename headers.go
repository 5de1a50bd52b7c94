package trends

import "strings"

// defaultUserAgent identifies this client to the API.
const defaultUserAgent = "go-twitter-trends/1.0"

// apiHeaders returns the headers for app-only bearer requests.
func apiHeaders(bearer, userAgent string) map[string]string {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return map[string]string{
		"authorization":   "Bearer " + bearer,
		"user-agent":      userAgent,
		"accept":          "application/json",
		"accept-encoding": "gzip, deflate, br",
	}
}

// apiHeaderOrder is the header order sent with every request.
var apiHeaderOrder = []string{
	"authorization",
	"user-agent",
	"accept",
	"accept-encoding",
}

// headerValue looks up a response header case-insensitively. The transport
// reports lowercase keys, but scripted transports may not.
func headerValue(h map[string]string, key string) string {
	if v, ok := h[key]; ok {
		return v
	}
	for k, v := range h {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
