// Public domain.

// Package metrics counts the work of a run.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Run holds the metrics of one run, registered on a private registry.
// A nil *Run records nothing.
type Run struct {
	reg *prometheus.Registry

	Visits     prometheus.Counter
	Orbits     prometheus.Counter
	Objects    prometheus.Counter
	Candidates prometheus.Counter
	Detections *prometheus.CounterVec
	ObjectTime prometheus.Histogram
}

// New registers the run metrics.
func New() *Run {
	r := &Run{
		reg: prometheus.NewRegistry(),
		Visits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "makelsstobs_visits_total",
			Help: "Opsim visits read.",
		}),
		Orbits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "makelsstobs_orbits_total",
			Help: "Orbits read.",
		}),
		Objects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "makelsstobs_objects_total",
			Help: "Objects processed.",
		}),
		Candidates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "makelsstobs_candidate_visits_total",
			Help: "Visits tested against the footprint.",
		}),
		Detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "makelsstobs_detections_total",
			Help: "Detections written, by orbit class.",
		}, []string{"class"}),
		ObjectTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "makelsstobs_object_seconds",
			Help:    "Processing time per object.",
			Buckets: prometheus.ExponentialBuckets(.001, 4, 8),
		}),
	}
	r.reg.MustRegister(r.Visits, r.Orbits, r.Objects, r.Candidates,
		r.Detections, r.ObjectTime)
	return r
}

// Gatherer returns the registry holding the run metrics.
func (r *Run) Gatherer() prometheus.Gatherer { return r.reg }

// Object records one processed object.
func (r *Run) Object(class string, candidates, detections int, seconds float64) {
	if r == nil {
		return
	}
	r.Objects.Inc()
	r.Candidates.Add(float64(candidates))
	if detections > 0 {
		r.Detections.WithLabelValues(class).Add(float64(detections))
	}
	r.ObjectTime.Observe(seconds)
}

// WriteFile writes the metrics in the prometheus text format.
func (r *Run) WriteFile(fn string) error {
	return prometheus.WriteToTextfile(fn, r.reg)
}
