package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/Additional-Code/orderdesk/internal/config"
)

func TestBuildHonoursLevel(t *testing.T) {
	cases := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"WARN", zapcore.WarnLevel},
		{"", zapcore.InfoLevel},
		{"chatty", zapcore.InfoLevel},
	}
	for _, tc := range cases {
		logger, err := Build(config.Observability{LogLevel: tc.level, LogEncoding: "json", ServiceName: "orderdesk"})
		if err != nil {
			t.Fatalf("%q: %v", tc.level, err)
		}
		if !logger.Core().Enabled(tc.want) {
			t.Errorf("%q: level %s disabled", tc.level, tc.want)
		}
		if tc.want > zapcore.DebugLevel && logger.Core().Enabled(tc.want-1) {
			t.Errorf("%q: level %s should be disabled", tc.level, tc.want-1)
		}
	}
}

func TestBuildConsole(t *testing.T) {
	logger, err := Build(config.Observability{LogLevel: "info", LogEncoding: "console"})
	if err != nil {
		t.Fatal(err)
	}
	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("info disabled")
	}
}
