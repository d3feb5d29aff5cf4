package event

import (
	"encoding/json"
	"testing"
	"time"
)

// TestNew はNew関数でイベントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("SessionIssuedDataでイベントを正常に生成できること", func(t *testing.T) {
		t.Parallel()

		expires := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
		data := SessionIssuedData{
			TokenID:   "jti-1",
			ExpiresAt: expires,
			ClientIP:  "192.0.2.1",
		}

		before := time.Now().UTC()
		ev, err := New("a@x.com", TypeSessionIssued, data)
		after := time.Now().UTC()

		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		if ev == nil {
			t.Fatal("New()がnilを返した")
		}

		// UUIDが生成されていること
		if ev.ID == "" {
			t.Error("IDが空文字列")
		}
		if ev.Subject != "a@x.com" {
			t.Errorf("Subject = %q, want %q", ev.Subject, "a@x.com")
		}
		if ev.EventType != TypeSessionIssued {
			t.Errorf("EventType = %q, want %q", ev.EventType, TypeSessionIssued)
		}
		if ev.CreatedAt.Before(before) || ev.CreatedAt.After(after) {
			t.Errorf("CreatedAt = %v, 期待する範囲: [%v, %v]", ev.CreatedAt, before, after)
		}

		var decoded SessionIssuedData
		if err := json.Unmarshal(ev.Data, &decoded); err != nil {
			t.Fatalf("Dataのデシリアライズに失敗: %v", err)
		}
		if decoded.TokenID != "jti-1" {
			t.Errorf("Data.TokenID = %q, want %q", decoded.TokenID, "jti-1")
		}
		if !decoded.ExpiresAt.Equal(expires) {
			t.Errorf("Data.ExpiresAt = %v, want %v", decoded.ExpiresAt, expires)
		}
	})

	t.Run("連続して生成したイベントのIDが異なること", func(t *testing.T) {
		t.Parallel()

		data := SessionClearedData{HadCookie: true}

		ev1, err := New("a@x.com", TypeSessionCleared, data)
		if err != nil {
			t.Fatalf("1回目のNew()でエラーが発生: %v", err)
		}
		ev2, err := New("a@x.com", TypeSessionCleared, data)
		if err != nil {
			t.Fatalf("2回目のNew()でエラーが発生: %v", err)
		}

		if ev1.ID == ev2.ID {
			t.Errorf("異なるイベントが同じIDを持っている: %q", ev1.ID)
		}
	})

	t.Run("シリアライズ不可能なデータでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		// json.Marshalでエラーになるチャネル型を渡す
		ev, err := New("a@x.com", TypeSessionRejected, make(chan int))
		if err == nil {
			t.Fatal("New()がエラーを返すべきだが、nilが返った")
		}
		if ev != nil {
			t.Error("エラー時にnilでないEventが返った")
		}
	})
}

// TestDecodeData はDecodeData関数でイベントデータを正しくデシリアライズできることを検証する。
func TestDecodeData(t *testing.T) {
	t.Parallel()

	t.Run("SessionRejectedDataを正しくデコードできること", func(t *testing.T) {
		t.Parallel()

		original := SessionRejectedData{
			Reason:   "expired",
			Path:     "/api/v1/me",
			ClientIP: "198.51.100.7",
		}

		ev, err := New("", TypeSessionRejected, original)
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}

		decoded, err := DecodeData[SessionRejectedData](ev)
		if err != nil {
			t.Fatalf("DecodeData()でエラーが発生: %v", err)
		}
		if *decoded != original {
			t.Errorf("DecodeData() = %+v, want %+v", *decoded, original)
		}
	})

	t.Run("不正なJSONでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ev := &Event{Data: json.RawMessage(`{"reason":`)}
		if _, err := DecodeData[SessionRejectedData](ev); err == nil {
			t.Fatal("DecodeData()がエラーを返すべき")
		}
	})
}
