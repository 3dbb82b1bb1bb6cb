package headers

import (
	"fmt"
	"net/http"
	"strings"
)

// Parse converts repeated --header "Key: Value" flags into canonical
// request headers. Later flags override earlier ones.
func Parse(h []string) (map[string]string, error) {
	m := make(map[string]string, len(h))
	for _, hdr := range h {
		k, v, ok := strings.Cut(hdr, ":")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid header %q, expected \"Key: Value\"", hdr)
		}
		m[http.CanonicalHeaderKey(k)] = strings.TrimSpace(v)
	}
	return m, nil
}

// Apply sets every header on req.
func Apply(req *http.Request, h map[string]string) {
	for k, v := range h {
		req.Header.Set(k, v)
	}
}
