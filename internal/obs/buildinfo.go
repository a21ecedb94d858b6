package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var buildInfoOnce sync.Once

// InitBuildInfo publishes a constant-1 build_info gauge labelled with the
// release version and VCS commit. Later calls are ignored.
func InitBuildInfo(version, commit string) {
	buildInfoOnce.Do(func() {
		g := prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "build_info",
				Help: "Faxas property API build information.",
			},
			[]string{"version", "commit"},
		)
		prometheus.MustRegister(g)
		g.WithLabelValues(version, commit).Set(1)
	})
}
