package monitoring

import (
	"net/http"
	"time"

	"github.com/PrivateCaptcha/powsolver/pkg/common"
)

type stubMetrics struct{}

func NewStub() *stubMetrics {
	return &stubMetrics{}
}

var _ common.SolverMetrics = (*stubMetrics)(nil)

func (sm *stubMetrics) ObserveSolved(algorithm string, result string, attempts uint64, elapsed time.Duration) {
}
func (sm *stubMetrics) ObserveCacheHitRatio(ratio float64) {}

func (sm *stubMetrics) Setup(mux *http.ServeMux) {
	mux.Handle(http.MethodGet+" /"+common.LiveEndpoint, common.Recovered(http.HandlerFunc(common.LiveHandler)))
}
