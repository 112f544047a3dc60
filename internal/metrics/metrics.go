package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MarksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classtrack", Name: "attendance_marks_total",
		Help: "Attendance mark attempts by mode and outcome",
	}, []string{"mode", "outcome"})
	RecognitionLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "classtrack", Name: "recognition_seconds",
		Help:    "Latency of recognition service calls",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})
	RecognitionErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classtrack", Name: "recognition_errors_total",
		Help: "Recognition service failures by class",
	}, []string{"kind"})
	HandlerErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "classtrack", Name: "handler_errors_total",
		Help: "Requests answered with an internal error",
	})
	TrainJobs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classtrack", Name: "train_jobs_total",
		Help: "Training jobs processed by the worker",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(MarksTotal, RecognitionLatency, RecognitionErrors, HandlerErrors, TrainJobs)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveRecognition(d time.Duration) { RecognitionLatency.Observe(d.Seconds()) }
