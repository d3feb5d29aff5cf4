package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

// TestNew はNewのレベルと形式の解釈を検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{name: "既定値で生成できること", level: "", format: ""},
		{name: "debugとconsoleで生成できること", level: "debug", format: "console"},
		{name: "warnとjsonで生成できること", level: "warn", format: "json"},
		{name: "不正なレベルはエラーになること", level: "verbose", format: "json", wantErr: true},
		{name: "不正な形式はエラーになること", level: "info", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, err := New(tt.level, tt.format)
			if tt.wantErr {
				if err == nil {
					t.Fatal("エラーが返るべき")
				}
				return
			}
			if err != nil {
				t.Fatalf("New()でエラーが発生: %v", err)
			}
			if logger == nil {
				t.Fatal("New()がnilを返した")
			}
		})
	}

	t.Run("debugレベルではDebugが有効になること", func(t *testing.T) {
		t.Parallel()

		logger, err := New("debug", "json")
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		if !logger.Core().Enabled(zapcore.DebugLevel) {
			t.Error("debugレベルが無効")
		}
	})
}
