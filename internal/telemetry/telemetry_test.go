package telemetry

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMultiFansOut(t *testing.T) {
	var a, b Recorder
	sink := Multi{&a, &b, Nop{}}

	sink.Emit(Event{Kind: KindLink, Source: "grid", Message: "connected"})

	if len(a.Events) != 1 || len(b.Events) != 1 {
		t.Fatalf("recorders got %d and %d events, want 1 each", len(a.Events), len(b.Events))
	}
	if a.Count(KindLink) != 1 || a.Count(KindWarning) != 0 {
		t.Errorf("Count() misclassified events: %v", a.Events)
	}
}

func TestLogSinkLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sink := LogSink{Logger: zap.New(core)}

	sink.Emit(Event{Kind: KindSession, Source: "daw", Message: "connected"})
	sink.Emit(Event{Kind: KindWarning, Source: "daw", Message: "no grid"})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Level != zapcore.InfoLevel || entries[1].Level != zapcore.WarnLevel {
		t.Errorf("levels = %v, %v; want info, warn", entries[0].Level, entries[1].Level)
	}
}

func TestEventString(t *testing.T) {
	e := Event{
		Time:    time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC),
		Kind:    KindRing,
		Source:  "ring",
		Message: "tracks 8-15",
	}
	want := "12:30:00.000 [ring] ring: tracks 8-15"
	if got := e.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
