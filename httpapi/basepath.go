package httpapi

import "strings"

func normalizeBasePath(value string) string {
	path := strings.TrimSpace(value)
	if path == "" || path == "/" {
		return ""
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	path = strings.TrimRight(path, "/")
	if path == "/" {
		return ""
	}
	return path
}

// cookiePath scopes the identity cookie to the mount point.
func cookiePath(basePath string) string {
	if path := normalizeBasePath(basePath); path != "" {
		return path + "/"
	}
	return "/"
}
