package capture

import (
	"net/http"
	"sort"
	"strings"

	"github.com/trafficlens/trafficlens/internal/models"
)

// HeadersFrom converts an http.Header map to the ordered captured form.
// Go's header map has no delivery order, so names are sorted for a
// deterministic stored representation; multi-valued headers collapse to
// one comma-joined value as they would appear on the wire.
func HeadersFrom(h http.Header) models.Headers {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(models.Headers, 0, len(names))
	for _, name := range names {
		out = append(out, models.Header{Name: name, Value: strings.Join(h[name], ", ")})
	}
	return out
}
