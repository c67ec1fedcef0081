package common

import "net/http"

const (
	StageDev         = "dev"
	StageStaging     = "staging"
	StageTest        = "test"
	ContentTypePlain = "text/plain"
	ContentTypeJSON  = "application/json"
	LiveEndpoint     = "live"
	MetricsEndpoint  = "metrics"
)

// labels for the outcome of a single solve
const (
	SolveResultFound     = "found"
	SolveResultExhausted = "exhausted"
	SolveResultError     = "error"
	SolveResultCancelled = "cancelled"
)

var (
	HeaderContentType = http.CanonicalHeaderKey("Content-Type")
	HeaderTraceID     = http.CanonicalHeaderKey("X-Trace-ID")
)
