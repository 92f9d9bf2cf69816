package geomeasure

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Hikitak/geomeasure/terrain"
)

var (
	elevationLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geomeasure_elevation_lookups_total",
		Help: "Raster elevation lookups by result (hit, miss, unavailable, error)",
	}, []string{"result"})
	annotationPasses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geomeasure_annotation_passes_total",
		Help: "Annotation synchronization passes by trigger",
	}, []string{"kind"})
)

// RegisterMetrics registers the engine's and the terrain reader's collectors.
func RegisterMetrics(reg prometheus.Registerer) error {
	collectors := append([]prometheus.Collector{elevationLookups, annotationPasses}, terrain.Collectors()...)
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
