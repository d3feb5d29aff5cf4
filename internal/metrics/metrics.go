// Package metrics はセッションゲートウェイのPrometheusメトリクスを提供する。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// 認証結果のラベル値。
const (
	// OutcomeAuthenticated は認証成功。
	OutcomeAuthenticated = "authenticated"
	// OutcomeMissingCredential はクッキー未提示。
	OutcomeMissingCredential = "missing_credential"
	// OutcomeInvalidSignature は署名不正または形式不正。
	OutcomeInvalidSignature = "invalid_signature"
	// OutcomeExpired は有効期限切れ。
	OutcomeExpired = "expired"
)

// 監査イベントを書き込まずに捨てた理由のラベル値。
const (
	// DropQueueFull は書き込みキューが満杯だった。
	DropQueueFull = "queue_full"
	// DropSampled は対象者の無い拒否イベントを間引いた。
	DropSampled = "sampled"
)

// Metrics は認証とセッション操作のカウンタを保持する。
type Metrics struct {
	authOutcomes   *prometheus.CounterVec
	sessionsIssued prometheus.Counter
	sessionsClear  prometheus.Counter
	issueFailures  prometheus.Counter
	auditDropped   *prometheus.CounterVec
}

// New はメトリクスを生成し、registererに登録する。
// registererがnilの場合は登録しない。
func New(namespace string, registerer prometheus.Registerer) (*Metrics, error) {
	if namespace == "" {
		namespace = "plantnet"
	}

	m := &Metrics{
		authOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "outcomes_total",
				Help:      "Total number of authentication gate outcomes",
			},
			[]string{"outcome"},
		),
		sessionsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "issued_total",
			Help:      "Total number of session tokens issued",
		}),
		sessionsClear: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "cleared_total",
			Help:      "Total number of session cookies cleared",
		}),
		issueFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "issue_failures_total",
			Help:      "Total number of failed token signing attempts",
		}),
		auditDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "audit",
				Name:      "dropped_total",
				Help:      "Total number of audit events dropped without being written",
			},
			[]string{"reason"},
		),
	}

	// 全ラベルを0で初期化し、未発生の結果もスクレイプで見えるようにする
	for _, o := range []string{OutcomeAuthenticated, OutcomeMissingCredential, OutcomeInvalidSignature, OutcomeExpired} {
		m.authOutcomes.WithLabelValues(o)
	}
	for _, r := range []string{DropQueueFull, DropSampled} {
		m.auditDropped.WithLabelValues(r)
	}

	if registerer != nil {
		for _, c := range []prometheus.Collector{m.authOutcomes, m.sessionsIssued, m.sessionsClear, m.issueFailures, m.auditDropped} {
			if err := registerer.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// ObserveAuth は認証ゲートの結果を記録する。
func (m *Metrics) ObserveAuth(outcome string) {
	if m == nil {
		return
	}
	m.authOutcomes.WithLabelValues(outcome).Inc()
}

// SessionIssued はトークン発行を記録する。
func (m *Metrics) SessionIssued() {
	if m == nil {
		return
	}
	m.sessionsIssued.Inc()
}

// SessionCleared はクッキー削除を記録する。
func (m *Metrics) SessionCleared() {
	if m == nil {
		return
	}
	m.sessionsClear.Inc()
}

// IssueFailed はトークン発行の失敗を記録する。
func (m *Metrics) IssueFailed() {
	if m == nil {
		return
	}
	m.issueFailures.Inc()
}

// AuditDropped は監査イベントを書き込まずに捨てたことを記録する。
func (m *Metrics) AuditDropped(reason string) {
	if m == nil {
		return
	}
	m.auditDropped.WithLabelValues(reason).Inc()
}
