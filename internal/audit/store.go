package audit

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	auditdb "github.com/nao1215/plantnet/internal/audit/db"
	"github.com/nao1215/plantnet/pkg/event"
	"github.com/nao1215/plantnet/pkg/migration"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DefaultListLimit はListBySubjectの既定の取得件数。
const DefaultListLimit = 50

// maxListLimit はListBySubjectで取得できる最大件数。
const maxListLimit = 500

// timeLayout はcreated_at列の保存形式。文字列比較で時系列順になる。
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store はセッションイベントの監査ログ。
type Store struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
	// queries はsqlcが生成したクエリ実行オブジェクト。
	queries *auditdb.Queries
}

// Open はSQLiteファイルを開き、マイグレーションを適用したStoreを返す。
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("監査ログのパスが空です")
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	// SQLiteは書き込みを直列化するため接続を1本に絞る
	db.SetMaxOpenConns(1)

	s := New(db)
	if err := s.Migrate(ctx, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New は既存のDB接続からStoreを生成する。マイグレーションは適用しない。
func New(db *sql.DB) *Store {
	return &Store{db: db, queries: auditdb.New(db)}
}

// Migrate は監査ログのスキーマを適用する。
func (s *Store) Migrate(ctx context.Context, logger *zap.Logger) error {
	if _, err := migration.Run(ctx, s.db, migrationsFS, "migrations", logger); err != nil {
		return fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return nil
}

// Ping はデータベースへの疎通を確認する。
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close はデータベース接続を閉じる。
func (s *Store) Close() error {
	return s.db.Close()
}

// Append はイベントを追記する。
func (s *Store) Append(ctx context.Context, ev *event.Event) error {
	if ev == nil {
		return errors.New("イベントがnilです")
	}
	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	err := s.queries.AppendEvent(ctx, auditdb.AppendEventParams{
		ID:        ev.ID,
		Subject:   ev.Subject,
		EventType: string(ev.EventType),
		Data:      string(ev.Data),
		CreatedAt: createdAt.UTC().Format(timeLayout),
	})
	if err != nil {
		return fmt.Errorf("イベントの追記に失敗: %w", err)
	}
	return nil
}

// ListBySubject は指定した識別子のイベントを新しい順に返す。
// limitが0以下の場合はDefaultListLimitを使う。
func (s *Store) ListBySubject(ctx context.Context, subject string, limit int) ([]event.Event, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, maxListLimit)

	rows, err := s.queries.ListEventsBySubject(ctx, auditdb.ListEventsBySubjectParams{
		Subject: subject,
		Limit:   int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("イベントの取得に失敗: %w", err)
	}

	events := make([]event.Event, 0, len(rows))
	for _, row := range rows {
		createdAt, err := time.Parse(timeLayout, row.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("作成日時の解釈に失敗: %w", err)
		}
		events = append(events, event.Event{
			ID:        row.ID,
			Subject:   row.Subject,
			EventType: event.Type(row.EventType),
			Data:      []byte(row.Data),
			CreatedAt: createdAt,
		})
	}
	return events, nil
}
