package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestParseLevel 测试日志级别解析
func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected slog.Level
	}{
		{"debug", "debug", slog.LevelDebug},
		{"info", "info", slog.LevelInfo},
		{"warn", "warn", slog.LevelWarn},
		{"error", "error", slog.LevelError},
		{"未知级别默认info", "unknown", slog.LevelInfo},
		{"空字符串默认info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseLevel(tt.input)
			if got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, 期望 %v", tt.input, got, tt.expected)
			}
		})
	}
}

// TestLevelTag 测试日志级别标签
func TestLevelTag(t *testing.T) {
	tests := []struct {
		level    slog.Level
		expected string
	}{
		{slog.LevelError, "ERROR"},
		{slog.LevelWarn, "WARN "},
		{slog.LevelInfo, "INFO "},
		{slog.LevelDebug, "DEBUG"},
	}

	for _, tt := range tests {
		if got := levelTag(tt.level); got != tt.expected {
			t.Errorf("levelTag(%v) = %q, 期望 %q", tt.level, got, tt.expected)
		}
	}
}

// TestFormatAttr 测试属性格式化
func TestFormatAttr(t *testing.T) {
	tests := []struct {
		name     string
		group    string
		attr     slog.Attr
		expected string
	}{
		{"无分组", "", slog.String("direction", "left"), "  direction=left"},
		{"有分组", "turn", slog.String("mode", "snap"), "  turn.mode=snap"},
		{"浮点数保留三位", "", slog.Float64("yaw", 0.785398163), "  yaw=0.785"},
		{"整数值", "", slog.Int("port", 8765), "  port=8765"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatAttr(tt.group, tt.attr)
			if got != tt.expected {
				t.Errorf("formatAttr(%q, %v) = %q, 期望 %q", tt.group, tt.attr, got, tt.expected)
			}
		})
	}
}

// TestConsoleHandlerEnabled 测试 consoleHandler 的级别过滤
func TestConsoleHandlerEnabled(t *testing.T) {
	h := newConsoleHandler(nil, slog.LevelInfo)

	if !h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("Info 级别应该被启用")
	}
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Debug 级别不应该被启用")
	}
}

// TestConsoleHandlerHandle 测试 consoleHandler 的日志输出
func TestConsoleHandlerHandle(t *testing.T) {
	var buf bytes.Buffer
	h := newConsoleHandler(&buf, slog.LevelDebug)

	record := slog.NewRecord(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), slog.LevelInfo, "Snap turn", 0)
	record.AddAttrs(slog.String("direction", "right"))

	if err := h.Handle(context.Background(), record); err != nil {
		t.Fatalf("Handle() 返回错误: %v", err)
	}

	output := buf.String()
	for _, want := range []string{"12:00:00", "INFO", "Snap turn", "direction=right"} {
		if !strings.Contains(output, want) {
			t.Errorf("输出应包含 %q, 实际: %q", want, output)
		}
	}
	if !strings.HasSuffix(output, "\n") {
		t.Errorf("输出应以换行符结尾, 实际: %q", output)
	}
}

// TestConsoleHandlerWithAttrsAndGroup 测试 WithAttrs / WithGroup 创建新 handler
func TestConsoleHandlerWithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	h := newConsoleHandler(&buf, slog.LevelDebug)

	h2 := h.WithAttrs([]slog.Attr{slog.String("session", "abc")}).WithGroup("rig").WithGroup("head")
	if len(h.attrs) != 0 {
		t.Error("原始 handler 的 attrs 不应该被修改")
	}

	record := slog.NewRecord(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), slog.LevelInfo, "tick", 0)
	record.AddAttrs(slog.Float64("y", 1.6))
	if err := h2.Handle(context.Background(), record); err != nil {
		t.Fatalf("Handle() 返回错误: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "rig.head.session=abc") {
		t.Errorf("输出应包含预设属性, 实际: %q", output)
	}
	if !strings.Contains(output, "rig.head.y=1.600") {
		t.Errorf("输出应包含嵌套分组前缀, 实际: %q", output)
	}
}

// TestNewWithFormats 测试不同格式的 logger 创建
func TestNewWithFormats(t *testing.T) {
	var buf bytes.Buffer
	New(Config{Level: "info", Format: "json", Output: &buf}).Info("hello", "mode", "snap")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("json 输出无法解析: %v (%q)", err, buf.String())
	}
	if line["mode"] != "snap" {
		t.Errorf("mode = %v, 期望 snap", line["mode"])
	}

	buf.Reset()
	New(Config{Level: "warn", Format: "console", Output: &buf}).Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("warn 级别下 info 日志应被过滤, 实际: %q", buf.String())
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locomotion.log")
	w, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	New(Config{Level: "debug", Output: w}).Debug("written")
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	stdout, err := OpenFile("")
	if err != nil {
		t.Fatalf("OpenFile(\"\"): %v", err)
	}
	if err := stdout.Close(); err != nil {
		t.Fatalf("stdout Close: %v", err)
	}
}
