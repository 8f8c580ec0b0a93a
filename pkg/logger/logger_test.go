package logger

import (
	"bytes"
	"strings"
	"testing"
)

func newBufferLogger(level LogLevel) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := New(Config{Level: level, Output: &buf})
	return l, &buf
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(WARN)

	l.Debugf("debug %d", 1)
	l.Infof("info %d", 2)
	l.Warnf("warn %d", 3)
	l.Errorf("error %d", 4)

	out := buf.String()
	if strings.Contains(out, "debug 1") || strings.Contains(out, "info 2") {
		t.Errorf("Expected DEBUG and INFO to be filtered, got %q", out)
	}
	if !strings.Contains(out, "[WARN] warn 3") {
		t.Errorf("Expected WARN line, got %q", out)
	}
	if !strings.Contains(out, "[ERROR] error 4") {
		t.Errorf("Expected ERROR line, got %q", out)
	}
}

func TestNamedSharesLevelAndOutput(t *testing.T) {
	l, buf := newBufferLogger(INFO)
	child := l.Named("sampler").Named("http")

	child.Infof("tick")
	l.SetLevel(ERROR)
	child.Infof("hidden")

	out := buf.String()
	if !strings.Contains(out, "[sampler] [http] tick") {
		t.Errorf("Expected component prefix, got %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("Expected child to follow parent level, got %q", out)
	}
}

func TestColorizeWrapsLevel(t *testing.T) {
	l, buf := newBufferLogger(DEBUG)
	l.SetColorize(true)
	l.Errorf("boom")

	if !strings.Contains(buf.String(), colorRed+"[ERROR]"+colorReset) {
		t.Errorf("Expected coloured level tag, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   DEBUG,
		" INFO ":  INFO,
		"warning": WARN,
		"Error":   ERROR,
		"fatal":   FATAL,
	}
	for in, want := range cases {
		got, ok := ParseLevel(in)
		if !ok || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; expected %v", in, got, ok, want)
		}
	}
	if _, ok := ParseLevel("loud"); ok {
		t.Error("Expected unknown level to be rejected")
	}
}
