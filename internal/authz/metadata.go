package authz

import (
	"net/http"
	"sort"
	"strings"
)

// Header names that may carry the API key. Matching is case-insensitive.
const (
	HeaderAPIKey    = "api-key"
	HeaderAPIKeyAlt = "apikey"
)

// Pair is one call metadata entry.
type Pair struct {
	Key   string
	Value string
}

// Metadata is the ordered key-value sequence attached to a call.
type Metadata []Pair

// FromMap flattens multi-valued metadata such as gRPC metadata.MD or
// http.Header. Keys are visited in sorted order so extraction is deterministic.
func FromMap(m map[string][]string) Metadata {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	md := make(Metadata, 0, len(m))
	for _, k := range keys {
		for _, v := range m[k] {
			md = append(md, Pair{Key: k, Value: v})
		}
	}
	return md
}

// FromHeader is FromMap for HTTP headers.
func FromHeader(h http.Header) Metadata {
	return FromMap(h)
}

// ExtractAPIKey returns the first non-empty value whose name matches either
// recognised header name.
func ExtractAPIKey(md Metadata) (string, bool) {
	for _, p := range md {
		if !isKeyHeader(p.Key) {
			continue
		}
		if v := strings.TrimSpace(p.Value); v != "" {
			return v, true
		}
	}
	return "", false
}

func isKeyHeader(name string) bool {
	name = strings.TrimSpace(name)
	return strings.EqualFold(name, HeaderAPIKey) || strings.EqualFold(name, HeaderAPIKeyAlt)
}
