package respond

import (
	"strconv"
	"strings"
)

// acceptRange is one media range from an Accept header.
type acceptRange struct {
	typ     string
	subtype string
	q       float64
}

var (
	jsonMediaTypes = []string{"application/json", "application/problem+json"}
	cborMediaTypes = []string{"application/cbor", "application/problem+cbor"}
)

// parseAccept splits an Accept header into lower-cased media ranges.
// Missing or malformed q-values count as 1.0; the last q parameter wins.
func parseAccept(header string) []acceptRange {
	var ranges []acceptRange
	for part := range strings.SplitSeq(header, ",") {
		params := strings.Split(part, ";")
		mediaType := strings.ToLower(strings.TrimSpace(params[0]))
		if mediaType == "" {
			continue
		}
		typ, subtype, found := strings.Cut(mediaType, "/")
		if !found {
			subtype = "*"
		}
		ar := acceptRange{typ: strings.TrimSpace(typ), subtype: strings.TrimSpace(subtype), q: 1.0}
		for _, p := range params[1:] {
			key, value, ok := strings.Cut(strings.TrimSpace(p), "=")
			if !ok || strings.ToLower(strings.TrimSpace(key)) != "q" {
				continue
			}
			q, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil || q < 0 || q > 1 {
				q = 1.0
			}
			ar.q = q
		}
		ranges = append(ranges, ar)
	}
	return ranges
}

// specificity reports how precisely a range matches mediaType, or -1.
// Exact problem+ types outrank their base types so that an explicit
// problem+cbor request beats a plain application/json at the same q.
func (ar acceptRange) specificity(mediaType string) int {
	typ, subtype, _ := strings.Cut(mediaType, "/")
	switch {
	case ar.typ == "*" && ar.subtype == "*":
		return 0
	case ar.typ != typ:
		return -1
	case ar.subtype == "*":
		return 1
	case strings.HasPrefix(ar.subtype, "*+"):
		if strings.Contains(subtype, "+") && strings.HasSuffix(subtype, ar.subtype[1:]) {
			return 2
		}
		return -1
	case ar.subtype == subtype:
		if strings.HasPrefix(subtype, "problem+") {
			return 4
		}
		return 3
	default:
		return -1
	}
}

// preference returns the q-value and specificity a client assigns to the
// best of mediaTypes. Per RFC 9110 the most specific matching range decides
// each media type's q-value.
func preference(ranges []acceptRange, mediaTypes []string) (float64, int) {
	bestQ, bestSpec := 0.0, -1
	for _, mt := range mediaTypes {
		q, spec := 0.0, -1
		for _, ar := range ranges {
			if s := ar.specificity(mt); s > spec {
				q, spec = ar.q, s
			}
		}
		if spec < 0 || q <= 0 {
			continue
		}
		if q > bestQ || (q == bestQ && spec > bestSpec) {
			bestQ, bestSpec = q, spec
		}
	}
	return bestQ, bestSpec
}

// selectFormat reports whether the problem body should be CBOR. The q-value
// ranks first and specificity breaks ties; a full tie, an empty header or an
// unsupported type all fall back to JSON.
func selectFormat(accept string) bool {
	ranges := parseAccept(accept)
	if len(ranges) == 0 {
		return false
	}
	cborQ, cborSpec := preference(ranges, cborMediaTypes)
	if cborQ <= 0 {
		return false
	}
	jsonQ, jsonSpec := preference(ranges, jsonMediaTypes)
	if cborQ != jsonQ {
		return cborQ > jsonQ
	}
	return cborSpec > jsonSpec
}
