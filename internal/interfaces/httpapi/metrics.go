package httpapi

import (
	"fmt"
	"io"
	"sync"
	"time"
)

type Metrics struct {
	mu              sync.RWMutex
	startTime       time.Time
	submissions     uint64
	submissionErrs  uint64
	retries         uint64
	gasEscalations  uint64
	accepted        uint64
	rejected        uint64
	trackErrs       uint64
	calls           uint64
	callErrs        uint64
	walletsCreated  uint64
	kafkaMessages   uint64
	kafkaDecodeErrs uint64
	kafkaApplyErrs  uint64
	kafkaCommitErrs uint64
	kafkaFetchErrs  uint64
	kafkaLastTopic  string
	kafkaLastPart   int
	kafkaLastOffset int64
	kafkaLastTime   time.Time
	kafkaLastLag    time.Duration
	kafkaMaxLag     time.Duration
}

func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

func (m *Metrics) IncSubmission() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions++
}

func (m *Metrics) IncSubmissionErr() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissionErrs++
}

func (m *Metrics) IncRetry() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries++
}

func (m *Metrics) IncGasEscalation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gasEscalations++
}

func (m *Metrics) OnConfirmation(accepted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if accepted {
		m.accepted++
	} else {
		m.rejected++
	}
}

func (m *Metrics) IncTrackErr() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trackErrs++
}

func (m *Metrics) IncCall() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
}

func (m *Metrics) IncCallErr() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callErrs++
}

func (m *Metrics) IncWalletCreated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.walletsCreated++
}

func (m *Metrics) IncKafkaDecodeErr() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kafkaDecodeErrs++
}

func (m *Metrics) IncKafkaApplyErr() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kafkaApplyErrs++
}

func (m *Metrics) IncKafkaCommitErr() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kafkaCommitErrs++
}

func (m *Metrics) IncKafkaFetchErr() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kafkaFetchErrs++
}

func (m *Metrics) ObserveKafkaMessage(topic string, partition int, offset int64, ts time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kafkaMessages++
	m.kafkaLastTopic = topic
	m.kafkaLastPart = partition
	m.kafkaLastOffset = offset
	m.kafkaLastTime = ts
	if !ts.IsZero() {
		lag := time.Since(ts)
		m.kafkaLastLag = lag
		if lag > m.kafkaMaxLag {
			m.kafkaMaxLag = lag
		}
	}
}

type Snapshot struct {
	StartTime       time.Time
	Submissions     uint64
	SubmissionErrs  uint64
	Retries         uint64
	GasEscalations  uint64
	Accepted        uint64
	Rejected        uint64
	TrackErrs       uint64
	Calls           uint64
	CallErrs        uint64
	WalletsCreated  uint64
	KafkaMessages   uint64
	KafkaDecodeErrs uint64
	KafkaApplyErrs  uint64
	KafkaCommitErrs uint64
	KafkaFetchErrs  uint64
	KafkaLastTopic  string
	KafkaLastPart   int
	KafkaLastOffset int64
	KafkaLastTime   time.Time
	KafkaLastLag    time.Duration
	KafkaMaxLag     time.Duration
}

// WritePrometheus renders the counters in Prometheus text exposition
// format. Both the gateway mux and the watcher's standalone metrics
// listener serve it.
func (m *Metrics) WritePrometheus(w io.Writer) {
	snap := m.Snapshot()

	uptime := time.Since(snap.StartTime).Seconds()
	fmt.Fprintf(w, "txbridge_uptime_seconds %.0f\n", uptime)
	fmt.Fprintf(w, "txbridge_submissions_total %d\n", snap.Submissions)
	fmt.Fprintf(w, "txbridge_submission_errors_total %d\n", snap.SubmissionErrs)
	fmt.Fprintf(w, "txbridge_retries_total %d\n", snap.Retries)
	fmt.Fprintf(w, "txbridge_gas_escalations_total %d\n", snap.GasEscalations)
	fmt.Fprintf(w, "txbridge_confirmations_accepted_total %d\n", snap.Accepted)
	fmt.Fprintf(w, "txbridge_confirmations_rejected_total %d\n", snap.Rejected)
	fmt.Fprintf(w, "txbridge_tracking_errors_total %d\n", snap.TrackErrs)
	fmt.Fprintf(w, "txbridge_calls_total %d\n", snap.Calls)
	fmt.Fprintf(w, "txbridge_call_errors_total %d\n", snap.CallErrs)
	fmt.Fprintf(w, "txbridge_wallets_created_total %d\n", snap.WalletsCreated)
	fmt.Fprintf(w, "txbridge_kafka_messages_total %d\n", snap.KafkaMessages)
	fmt.Fprintf(w, "txbridge_kafka_decode_errors_total %d\n", snap.KafkaDecodeErrs)
	fmt.Fprintf(w, "txbridge_kafka_apply_errors_total %d\n", snap.KafkaApplyErrs)
	fmt.Fprintf(w, "txbridge_kafka_commit_errors_total %d\n", snap.KafkaCommitErrs)
	fmt.Fprintf(w, "txbridge_kafka_fetch_errors_total %d\n", snap.KafkaFetchErrs)
	fmt.Fprintf(w, "txbridge_kafka_max_lag_seconds %.3f\n", snap.KafkaMaxLag.Seconds())
}

func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		StartTime:       m.startTime,
		Submissions:     m.submissions,
		SubmissionErrs:  m.submissionErrs,
		Retries:         m.retries,
		GasEscalations:  m.gasEscalations,
		Accepted:        m.accepted,
		Rejected:        m.rejected,
		TrackErrs:       m.trackErrs,
		Calls:           m.calls,
		CallErrs:        m.callErrs,
		WalletsCreated:  m.walletsCreated,
		KafkaMessages:   m.kafkaMessages,
		KafkaDecodeErrs: m.kafkaDecodeErrs,
		KafkaApplyErrs:  m.kafkaApplyErrs,
		KafkaCommitErrs: m.kafkaCommitErrs,
		KafkaFetchErrs:  m.kafkaFetchErrs,
		KafkaLastTopic:  m.kafkaLastTopic,
		KafkaLastPart:   m.kafkaLastPart,
		KafkaLastOffset: m.kafkaLastOffset,
		KafkaLastTime:   m.kafkaLastTime,
		KafkaLastLag:    m.kafkaLastLag,
		KafkaMaxLag:     m.kafkaMaxLag,
	}
}
