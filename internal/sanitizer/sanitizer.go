// Package sanitizer strips code-fence lines from model output so that what
// remains can be handed to the sandbox as source text.
package sanitizer

import "strings"

var markers = []string{
	"```",
	"```jsx",
	"```js",
}

// Markers returns the fence markers that cause a line to be dropped.
func Markers() []string {
	out := make([]string, len(markers))
	copy(out, markers)
	return out
}

// Sanitize drops every line whose trimmed content starts with a fence marker.
// All other lines, blank ones included, are kept verbatim and in order.
func Sanitize(raw string) string {
	if raw == "" {
		return ""
	}

	lines := strings.Split(raw, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if isFence(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func isFence(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, m := range markers {
		if strings.HasPrefix(trimmed, m) {
			return true
		}
	}
	return false
}
