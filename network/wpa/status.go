package wpa

import "strings"

// ParseStatus parses the key=value lines of a STATUS reply.
func ParseStatus(reply string) map[string]string {
	status := make(map[string]string)

	for _, line := range strings.Split(reply, "\n") {
		key, value, ok := strings.Cut(strings.TrimRight(line, "\r"), "=")
		if !ok || key == "" {
			continue
		}

		status[key] = value
	}

	return status
}
