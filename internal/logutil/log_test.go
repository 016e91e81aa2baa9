package logutil

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestLoggerInContext(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("json", &buf)
	if err != nil {
		t.Fatal(err)
	}
	ctx := WithLogger(context.Background(), logger.With().Str("request", "abc").Logger())
	log := GetOrDefault(ctx)
	log.Info().Msg("hello")
	if !strings.Contains(buf.String(), `"request":"abc"`) {
		t.Fatalf("logger from context should carry its fields, got %v", buf.String())
	}
	if _, err := New("xml", &buf); err == nil {
		t.Fatal("unknown formats should be rejected")
	}
}
