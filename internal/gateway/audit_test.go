package gateway

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/nao1215/plantnet/internal/config"
	"github.com/nao1215/plantnet/internal/metrics"
	"github.com/nao1215/plantnet/pkg/cookie"
	"github.com/nao1215/plantnet/pkg/event"
)

// blockingAudit はreleaseが閉じられるまでAppendが戻らない監査ログ。
type blockingAudit struct {
	memoryAudit
	release chan struct{}
	once    sync.Once
}

func newBlockingAudit() *blockingAudit {
	return &blockingAudit{release: make(chan struct{})}
}

func (b *blockingAudit) Append(ctx context.Context, ev *event.Event) error {
	select {
	case <-b.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return b.memoryAudit.Append(ctx, ev)
}

// unblock は待たせているAppendをすべて戻す。何度呼んでもよい。
func (b *blockingAudit) unblock() {
	b.once.Do(func() { close(b.release) })
}

// counterValue はレジストリからカウンタの値を読み出す。
// labelが空の場合はラベルを見ない。
func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather()でエラーが発生: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if label == "" {
				return m.GetCounter().GetValue()
			}
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	t.Fatalf("メトリクス %s{%s=%q} が見つからない", name, label, value)
	return 0
}

// TestAuditWriter は監査ログの非同期書き込みを検証する。
func TestAuditWriter(t *testing.T) {
	t.Parallel()

	t.Run("キューに積んだイベントはCloseまでにすべて書き込まれること", func(t *testing.T) {
		t.Parallel()

		log := &memoryAudit{}
		w := newAuditWriter(log, nil, zap.NewNop())
		for _, subject := range []string{"a@example.com", "b@example.com", "c@example.com"} {
			ev, err := event.New(subject, event.TypeSessionIssued, event.SessionIssuedData{})
			if err != nil {
				t.Fatalf("event.New()でエラーが発生: %v", err)
			}
			w.enqueue(ev)
		}

		if err := w.close(context.Background()); err != nil {
			t.Fatalf("close()でエラーが発生: %v", err)
		}
		if n := len(log.ofType(event.TypeSessionIssued)); n != 3 {
			t.Errorf("書き込まれたイベント数 = %d, want 3", n)
		}

		// 閉じた後のイベントは書き込まれない
		ev, err := event.New("late@example.com", event.TypeSessionIssued, event.SessionIssuedData{})
		if err != nil {
			t.Fatalf("event.New()でエラーが発生: %v", err)
		}
		w.enqueue(ev)
		if err := w.close(context.Background()); err != nil {
			t.Errorf("2回目のclose()でエラーが発生: %v", err)
		}
		if n := len(log.ofType(event.TypeSessionIssued)); n != 3 {
			t.Errorf("書き込まれたイベント数 = %d, want 3", n)
		}
	})

	t.Run("キューが満杯の場合は待たずに破棄して数えること", func(t *testing.T) {
		t.Parallel()

		reg := prometheus.NewRegistry()
		m, err := metrics.New("test", reg)
		if err != nil {
			t.Fatalf("metrics.New()でエラーが発生: %v", err)
		}
		log := &memoryAudit{}
		// 書き込み用のgoroutineはまだ起動しない
		w := &auditWriter{
			log:     log,
			metrics: m,
			logger:  zap.NewNop(),
			queue:   make(chan *event.Event, 1),
			stop:    make(chan struct{}),
			done:    make(chan struct{}),
		}
		for _, subject := range []string{"first@example.com", "second@example.com"} {
			ev, err := event.New(subject, event.TypeSessionIssued, event.SessionIssuedData{})
			if err != nil {
				t.Fatalf("event.New()でエラーが発生: %v", err)
			}
			w.enqueue(ev)
		}

		if got := counterValue(t, reg, "test_audit_dropped_total", "reason", metrics.DropQueueFull); got != 1 {
			t.Errorf("queue_full = %v, want 1", got)
		}

		go w.run()
		if err := w.close(context.Background()); err != nil {
			t.Fatalf("close()でエラーが発生: %v", err)
		}
		events := log.ofType(event.TypeSessionIssued)
		if len(events) != 1 || events[0].Subject != "first@example.com" {
			t.Errorf("書き込まれたイベント = %+v", events)
		}
	})

	t.Run("書き込みが終わらない場合はctxの期限でCloseを打ち切ること", func(t *testing.T) {
		t.Parallel()

		log := newBlockingAudit()
		t.Cleanup(log.unblock)
		w := newAuditWriter(log, nil, zap.NewNop())
		ev, err := event.New("stuck@example.com", event.TypeSessionIssued, event.SessionIssuedData{})
		if err != nil {
			t.Fatalf("event.New()でエラーが発生: %v", err)
		}
		w.enqueue(ev)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		if err := w.close(ctx); err == nil {
			t.Error("書き込み中のclose()はctxの期限でエラーになるべき")
		}
	})
}

// TestAuditDoesNotDelayResponses は監査ログの書き込みがレスポンスを遅らせないことを検証する。
func TestAuditDoesNotDelayResponses(t *testing.T) {
	t.Parallel()

	t.Run("監査ログの書き込みが詰まっても401をすぐに返すこと", func(t *testing.T) {
		t.Parallel()

		log := newBlockingAudit()
		cfg := config.Default()
		cfg.TokenSecret = testSecret
		env := &testEnv{
			server: startServer(t, cfg, Options{Audit: log, Registry: prometheus.NewRegistry()}),
		}
		// サーバーのCloseより先に書き込みを解放する
		t.Cleanup(log.unblock)

		garbage := &http.Cookie{Name: cookie.DefaultName, Value: "garbage"}
		for i := range anonymousEventBurst {
			start := time.Now()
			w := env.do(http.MethodGet, "/api/v1/me", "", garbage)
			elapsed := time.Since(start)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("%d回目: ステータスコード = %d, want %d", i+1, w.Code, http.StatusUnauthorized)
			}
			if elapsed > 500*time.Millisecond {
				t.Errorf("%d回目: 401までに%vかかった", i+1, elapsed)
			}
		}

		log.unblock()
		env.flush(t)
		if n := len(log.ofType(event.TypeSessionRejected)); n != anonymousEventBurst {
			t.Errorf("SessionRejectedイベント数 = %d, want %d", n, anonymousEventBurst)
		}
	})

	t.Run("対象者の無い拒否イベントは間引いてもメトリクスには全件数えること", func(t *testing.T) {
		t.Parallel()

		env := newTestServer(t, nil)
		const requests = 30
		garbage := &http.Cookie{Name: cookie.DefaultName, Value: "garbage"}
		for range requests {
			if w := env.do(http.MethodGet, "/api/v1/me", "", garbage); w.Code != http.StatusUnauthorized {
				t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		}
		env.flush(t)

		stored := len(env.audit.ofType(event.TypeSessionRejected))
		sampled := counterValue(t, env.registry, "plantnet_audit_dropped_total", "reason", metrics.DropSampled)
		invalid := counterValue(t, env.registry, "plantnet_auth_outcomes_total", "outcome", metrics.OutcomeInvalidSignature)

		if invalid != requests {
			t.Errorf("invalid_signature = %v, want %d", invalid, requests)
		}
		if stored == 0 || stored > anonymousEventBurst+1 {
			t.Errorf("記録された拒否イベント数 = %d, want 1〜%d", stored, anonymousEventBurst+1)
		}
		if float64(stored)+sampled != requests {
			t.Errorf("記録 %d + 間引き %v != %d", stored, sampled, requests)
		}
	})

	t.Run("対象者のあるイベントは間引かないこと", func(t *testing.T) {
		t.Parallel()

		env := newTestServer(t, nil)
		const logins = anonymousEventBurst * 3
		for range logins {
			env.login(t, "many@example.com")
		}
		env.flush(t)

		if n := len(env.audit.ofType(event.TypeSessionIssued)); n != logins {
			t.Errorf("SessionIssuedイベント数 = %d, want %d", n, logins)
		}
	})
}
