package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline metrics
	pipelineRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicegraph_pipeline_requests_total",
		Help: "Total number of pipeline runs",
	}, []string{"entry", "status"}) // entry: "audio" or "text"

	pipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voicegraph_pipeline_duration_seconds",
		Help:    "End-to-end pipeline duration in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
	})

	// Per-stage metrics
	stageRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicegraph_stage_requests_total",
		Help: "Total number of stage invocations",
	}, []string{"stage", "status"}) // stage: stt, llm, tts

	stageLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voicegraph_stage_latency_seconds",
		Help:    "Stage processing latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	}, []string{"stage"})

	fallbackActivations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicegraph_fallback_activations_total",
		Help: "Number of times a stage fell back to its secondary engine",
	}, []string{"stage"})

	lowConfidenceResults = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicegraph_stt_low_confidence_total",
		Help: "Number of transcripts rejected by the confidence gate",
	})

	safeAnswersServed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicegraph_llm_safe_answers_total",
		Help: "Number of canned safe answers served after total LLM failure",
	})

	// Conversation metrics
	historyTurns = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "voicegraph_history_turns",
		Help: "Current number of stored conversation turns",
	}, []string{"session"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicegraph_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "voicegraph_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicegraph_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Audio metrics
	audioBytesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicegraph_audio_bytes_total",
		Help: "Total audio bytes processed",
	}, []string{"direction"}) // direction: "in" or "out"
)

// StageTimer tracks the latency of one stage invocation.
type StageTimer struct {
	stage string
	start time.Time
	once  sync.Once
}

// StartStage begins timing a stage invocation.
func StartStage(stage string) *StageTimer {
	return &StageTimer{stage: stage, start: time.Now()}
}

// Done records the stage outcome. Safe to call more than once; only the
// first call is recorded.
func (t *StageTimer) Done(success bool) {
	t.once.Do(func() {
		stageLatency.WithLabelValues(t.stage).Observe(time.Since(t.start).Seconds())

		status := "success"
		if !success {
			status = "error"
		}
		stageRequests.WithLabelValues(t.stage, status).Inc()
	})
}

// RecordPipelineRun records a completed pipeline run.
func RecordPipelineRun(entry string, success bool, started time.Time) {
	status := "success"
	if !success {
		status = "error"
	}
	pipelineRequests.WithLabelValues(entry, status).Inc()
	pipelineDuration.Observe(time.Since(started).Seconds())
}

// RecordFallback records a stage falling back to its secondary engine.
func RecordFallback(stage string) {
	fallbackActivations.WithLabelValues(stage).Inc()
}

// RecordLowConfidence records a transcript rejected by the confidence gate.
func RecordLowConfidence() {
	lowConfidenceResults.Inc()
}

// RecordSafeAnswer records a canned reply served after total LLM failure.
func RecordSafeAnswer() {
	safeAnswersServed.Inc()
}

// RecordHistoryTurns records the stored turn count for a session.
func RecordHistoryTurns(session string, turns int) {
	historyTurns.WithLabelValues(session).Set(float64(turns))
}

// RecordError records an error
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordAudioBytes records audio bytes processed
func RecordAudioBytes(direction string, bytes int64) {
	audioBytesProcessed.WithLabelValues(direction).Add(float64(bytes))
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
