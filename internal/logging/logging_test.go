package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level   string
		format  string
		want    zapcore.Level
		wantErr bool
	}{
		{"info", "console", zapcore.InfoLevel, false},
		{"debug", "json", zapcore.DebugLevel, false},
		{"WARN", "", zapcore.WarnLevel, false},
		{"loud", "console", 0, true},
		{"info", "xml", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			logger, err := New(tt.level, tt.format)
			if tt.wantErr {
				if err == nil {
					t.Fatal("New() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			if got := logger.Level(); got != tt.want {
				t.Errorf("Level() = %v, want %v", got, tt.want)
			}
		})
	}
}
