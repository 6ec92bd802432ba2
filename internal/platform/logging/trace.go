package logging

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	traceparentHeader = "traceparent"
	amznTraceHeader   = "X-Amzn-Trace-Id"
)

// W3C Trace Context format: {version}-{trace-id}-{parent-id}-{trace-flags}
// Example: 00-ab42124a3c573678d4d8b21ba52df3bf-d21f7bc17caa5aba-01
var traceparentRe = regexp.MustCompile(`^([0-9a-fA-F]{2})-([0-9a-fA-F]{32})-([0-9a-fA-F]{16})-([0-9a-fA-F]{2})$`)

// AWS load balancers stamp X-Amzn-Trace-Id on every request.
// Example: Root=1-5759e988-bd862e3fe1be46a994272793;Parent=53995c3f42cd8ad8;Sampled=1
var amznRootRe = regexp.MustCompile(`^1-[0-9a-fA-F]{8}-[0-9a-fA-F]{24}$`)

// traceContext is the correlation data carried by an inbound request.
type traceContext struct {
	TraceID string
	SpanID  string
	Sampled bool
}

// extractTrace prefers W3C traceparent and falls back to the AWS header.
func extractTrace(h http.Header) (traceContext, bool) {
	if tc, ok := parseTraceparent(h.Get(traceparentHeader)); ok {
		return tc, true
	}
	return parseAmznTrace(h.Get(amznTraceHeader))
}

func parseTraceparent(header string) (traceContext, bool) {
	matches := traceparentRe.FindStringSubmatch(strings.TrimSpace(header))
	if len(matches) != 5 {
		return traceContext{}, false
	}
	traceID, spanID := strings.ToLower(matches[2]), strings.ToLower(matches[3])
	if strings.EqualFold(matches[1], "ff") || isAllZero(traceID) || isAllZero(spanID) {
		return traceContext{}, false
	}
	flags, err := strconv.ParseUint(matches[4], 16, 8)
	if err != nil {
		return traceContext{}, false
	}
	return traceContext{
		TraceID: traceID,
		SpanID:  spanID,
		Sampled: flags&1 == 1,
	}, true
}

func isAllZero(id string) bool {
	return strings.Trim(id, "0") == ""
}

func parseAmznTrace(header string) (traceContext, bool) {
	var tc traceContext
	for part := range strings.SplitSeq(header, ";") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "Root":
			if amznRootRe.MatchString(value) {
				tc.TraceID = value
			}
		case "Parent":
			tc.SpanID = value
		case "Sampled":
			tc.Sampled = value == "1"
		}
	}
	if tc.TraceID == "" {
		return traceContext{}, false
	}
	return tc, true
}

func traceFields(tc traceContext) []zap.Field {
	if tc.TraceID == "" {
		return nil
	}
	fields := []zap.Field{zap.String("traceId", tc.TraceID)}
	if tc.SpanID != "" {
		fields = append(fields, zap.String("spanId", tc.SpanID))
	}
	return append(fields, zap.Bool("traceSampled", tc.Sampled))
}

func loggerWithTrace(base *zap.Logger, tc traceContext, requestID string) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	fields := traceFields(tc)
	if requestID != "" {
		fields = append(fields, zap.String("requestId", requestID))
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
