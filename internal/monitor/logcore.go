package monitor

import (
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jdavidguerrero/ableton-push-clone-processor/internal/telemetry"
)

// Logger returns a zap logger whose entries appear in the event log.
// Writing to stdout would tear the alternate screen.
func (m *Monitor) Logger(level zapcore.LevelEnabler) *zap.Logger {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	enc.CallerKey = ""
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	return zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(logWriter{m}), level))
}

type logWriter struct{ m *Monitor }

// Write posts one encoded entry. The console encoder writes each entry in a
// single call.
func (w logWriter) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\n")
	kind := telemetry.KindLog
	if strings.HasPrefix(line, "WARN") || strings.HasPrefix(line, "ERROR") {
		kind = telemetry.KindWarning
	}
	w.m.post(EventMsg{Time: time.Now(), Kind: kind, Source: "log", Message: line})
	return len(p), nil
}
