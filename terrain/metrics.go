package terrain

import "github.com/prometheus/client_golang/prometheus"

var tileFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "terrain_tile_fetches_total",
	Help: "Terrain tile downloads by outcome",
}, []string{"status"})

// Collectors returns the package's metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{tileFetches}
}
