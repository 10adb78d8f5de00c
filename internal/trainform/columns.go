package trainform

import (
	"bytes"
	"strings"
)

// HeaderColumns splits the first line of content on commas and trims each
// token. Quoting is not interpreted. An empty file yields one empty column.
func HeaderColumns(content []byte) []Column {
	line := content
	if i := bytes.IndexByte(content, '\n'); i >= 0 {
		line = content[:i]
	}
	parts := strings.Split(string(line), ",")
	out := make([]Column, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		out[i] = Column{Label: p, Value: p}
	}
	return out
}
