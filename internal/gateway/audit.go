package gateway

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nao1215/plantnet/internal/metrics"
	"github.com/nao1215/plantnet/pkg/event"
)

const (
	// auditTimeout は監査ログ1件の書き込みに許す時間。
	auditTimeout        = 3 * time.Second
	// auditQueueSize は書き込み待ちの監査イベントを保持できる件数。
	auditQueueSize      = 256
	// anonymousEventRate は対象者の無いイベントを監査ログに残す毎秒の件数。
	anonymousEventRate  = rate.Limit(1)
	// anonymousEventBurst は対象者の無いイベントを連続して残せる件数。
	anonymousEventBurst = 5
)

// auditWriter は監査イベントをバックグラウンドで1件ずつ書き込む。
// リクエスト処理は書き込みの完了を待たない。
type auditWriter struct {
	log     AuditLog
	metrics *metrics.Metrics
	logger  *zap.Logger
	// anonymous は対象者の無いイベントの間引きに使う。
	anonymous *rate.Limiter

	queue chan *event.Event
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
}

// newAuditWriter は書き込み用のgoroutineを起動したauditWriterを返す。
func newAuditWriter(log AuditLog, m *metrics.Metrics, logger *zap.Logger) *auditWriter {
	w := &auditWriter{
		log:       log,
		metrics:   m,
		logger:    logger,
		anonymous: rate.NewLimiter(anonymousEventRate, anonymousEventBurst),
		queue:     make(chan *event.Event, auditQueueSize),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go w.run()
	return w
}

// enqueue はイベントを書き込みキューに積む。ブロックしない。
// キューが満杯の場合と、間引き対象の匿名イベントは捨ててメトリクスに数える。
func (w *auditWriter) enqueue(ev *event.Event) {
	select {
	case <-w.stop:
		w.logger.Debug("停止後の監査イベントを破棄", zap.String("event_type", string(ev.EventType)))
		return
	default:
	}

	if ev.Subject == "" && !w.anonymous.Allow() {
		w.metrics.AuditDropped(metrics.DropSampled)
		return
	}

	select {
	case w.queue <- ev:
	default:
		w.metrics.AuditDropped(metrics.DropQueueFull)
		w.logger.Warn("監査ログの書き込みキューが満杯のためイベントを破棄",
			zap.String("event_type", string(ev.EventType)))
	}
}

func (w *auditWriter) run() {
	defer close(w.done)
	for {
		select {
		case ev := <-w.queue:
			w.write(ev)
		case <-w.stop:
			// 停止時点でキューに残っているイベントは書き込んでから終了する
			for {
				select {
				case ev := <-w.queue:
					w.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (w *auditWriter) write(ev *event.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()
	if err := w.log.Append(ctx, ev); err != nil {
		w.logger.Error("監査ログの書き込みに失敗",
			zap.String("event_type", string(ev.EventType)),
			zap.String("event_id", ev.ID),
			zap.Error(err))
	}
}

// close は新しいイベントの受け付けを止め、キューが空になるまで待つ。
// 何度呼んでもよい。
func (w *auditWriter) close(ctx context.Context) error {
	w.once.Do(func() { close(w.stop) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
