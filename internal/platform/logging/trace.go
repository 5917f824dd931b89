package logging

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

const traceparentHeader = "traceparent"

// W3C Trace Context format: {version}-{trace-id}-{parent-id}-{trace-flags}
// Example: 00-ab42124a3c573678d4d8b21ba52df3bf-d21f7bc17caa5aba-01
var traceparentRe = regexp.MustCompile(`^([0-9a-f]{2})-([0-9a-f]{32})-([0-9a-f]{16})-([0-9a-f]{2})$`)

var (
	projectIDOnce   sync.Once
	cachedProjectID string
)

// traceContext is the parsed form of a traceparent header.
type traceContext struct {
	TraceID string
	SpanID  string
	Sampled bool
}

// parseTraceparent returns false for malformed headers and for the all-zero
// trace and span ids that W3C Trace Context declares invalid.
func parseTraceparent(header string) (traceContext, bool) {
	m := traceparentRe.FindStringSubmatch(header)
	if len(m) != 5 {
		return traceContext{}, false
	}
	if m[1] == "ff" || m[2] == "00000000000000000000000000000000" || m[3] == "0000000000000000" {
		return traceContext{}, false
	}
	flags, err := strconv.ParseUint(m[4], 16, 8)
	if err != nil {
		return traceContext{}, false
	}
	return traceContext{TraceID: m[2], SpanID: m[3], Sampled: flags&0x01 == 1}, true
}

// traceFields maps a trace context to log fields. With a project id the
// Cloud Logging special keys are used so entries group under the trace.
func traceFields(tc traceContext, projectID string) []zap.Field {
	if projectID == "" {
		return []zap.Field{
			zap.String("traceId", tc.TraceID),
			zap.String("spanId", tc.SpanID),
			zap.Bool("traceSampled", tc.Sampled),
		}
	}
	return []zap.Field{
		zap.String("logging.googleapis.com/trace", traceResource(tc, projectID)),
		zap.String("logging.googleapis.com/spanId", tc.SpanID),
		zap.Bool("logging.googleapis.com/trace_sampled", tc.Sampled),
	}
}

func traceResource(tc traceContext, projectID string) string {
	if projectID == "" {
		return tc.TraceID
	}
	return fmt.Sprintf("projects/%s/traces/%s", projectID, tc.TraceID)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func resolveProjectID() string {
	projectIDOnce.Do(func() {
		cachedProjectID = firstNonEmpty(
			os.Getenv("GOOGLE_CLOUD_PROJECT"),
			os.Getenv("GCP_PROJECT"),
			os.Getenv("GCLOUD_PROJECT"),
			os.Getenv("PROJECT_ID"),
		)
	})
	return cachedProjectID
}
