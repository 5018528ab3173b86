// Package metrics exposes the engine activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/slok/conveyor/internal/model"
)

const namespace = "conveyor"

// Recorder is an engine hook that records the task activity.
type Recorder struct {
	polling            *prometheus.GaugeVec
	tasksEnded         *prometheus.CounterVec
	taskDuration       *prometheus.HistogramVec
	pollCauses         *prometheus.CounterVec
	resolutionFailures *prometheus.CounterVec
}

// NewRecorder returns a Recorder registering its metrics on reg, the default
// Prometheus registerer is used when nil.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &Recorder{
		polling: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "polling",
			Help:      "Whether the engine is polling (1) or not (0).",
		}, []string{"handler"}),
		tasksEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_ended_total",
			Help:      "Total number of executed tasks by type and resolution outcome.",
		}, []string{"type", "outcome", "status", "handler_error"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_handler_duration_seconds",
			Help:      "Duration of the task handlers.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		pollCauses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_causes_total",
			Help:      "Total number of claimed tasks that could not be executed.",
		}, []string{"cause"}),
		resolutionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_resolution_failures_total",
			Help:      "Total number of task resolutions that could not be stored.",
		}, []string{"type"}),
	}

	for _, c := range []prometheus.Collector{r.polling, r.tasksEnded, r.taskDuration, r.pollCauses, r.resolutionFailures} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("could not register metric: %w", err)
		}
	}

	return r, nil
}

func (r *Recorder) Name() string { return "prometheus" }

func (r *Recorder) OnPollingStarted(_ context.Context, handlerName string) error {
	r.polling.WithLabelValues(handlerName).Set(1)
	return nil
}

func (r *Recorder) OnPollingStopped(_ context.Context, handlerName string) error {
	r.polling.WithLabelValues(handlerName).Set(0)
	return nil
}

func (r *Recorder) OnTaskEnded(_ context.Context, task model.TaskRow, res model.Resolution) error {
	handlerErr := "false"
	if res.HandlerErr != nil {
		handlerErr = "true"
	}
	r.tasksEnded.WithLabelValues(task.Type, string(res.Outcome), string(res.Status), handlerErr).Inc()
	r.taskDuration.WithLabelValues(task.Type).Observe(res.Duration.Seconds())
	return nil
}

func (r *Recorder) OnPollCause(_ context.Context, _ string, cause error) error {
	label := "other"
	switch {
	case errors.Is(cause, model.ErrMalformedPayload):
		label = "malformed_payload"
	case errors.Is(cause, model.ErrInvalidStatus):
		label = "invalid_status"
	}
	r.pollCauses.WithLabelValues(label).Inc()
	return nil
}

func (r *Recorder) OnTaskResolutionFailed(_ context.Context, task model.TaskRow, _ error) error {
	r.resolutionFailures.WithLabelValues(task.Type).Inc()
	return nil
}

// NewHandler returns the HTTP handler that serves the metrics of g.
func NewHandler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
