package logger

import (
	"fmt"
	"testing"
)

type recorder struct {
	lines []string
}

func (r *recorder) record(level, message string, keyvals []any) {
	r.lines = append(r.lines, fmt.Sprintf("%s %s %v", level, message, keyvals))
}

func (r *recorder) Log(m string, kv ...any)   { r.record("log", m, kv) }
func (r *recorder) Debug(m string, kv ...any) { r.record("debug", m, kv) }
func (r *recorder) Info(m string, kv ...any)  { r.record("info", m, kv) }
func (r *recorder) Warn(m string, kv ...any)  { r.record("warn", m, kv) }
func (r *recorder) Error(m string, kv ...any) { r.record("error", m, kv) }
func (r *recorder) Fatal(m string, kv ...any) { r.record("fatal", m, kv) }

func TestDispatchToAllBackends(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Init(a, b)
	defer Reset()

	Info("[Test] hello", "k", 1)
	Log("[Test] plain", "k", 2)

	for _, r := range []*recorder{a, b} {
		if len(r.lines) != 2 {
			t.Fatalf("got %d lines, want 2", len(r.lines))
		}
		if r.lines[0] != "info [Test] hello [k 1]" {
			t.Fatalf("unexpected line %q", r.lines[0])
		}
		if r.lines[1] != "log [Test] plain [k 2]" {
			t.Fatalf("Log dropped key values: %q", r.lines[1])
		}
	}
}

func TestNoopBeforeInit(t *testing.T) {
	Reset()
	Info("nobody listens")
	Error("still nobody")
}
