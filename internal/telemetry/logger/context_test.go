package logger

import (
	"context"
	"testing"
)

func TestWithConnID(t *testing.T) {
	ctx := WithConnID(context.Background(), "01HZX3K4M5N6P7Q8R9S0T1V2W3")

	if got := ConnIDFromContext(ctx); got != "01HZX3K4M5N6P7Q8R9S0T1V2W3" {
		t.Errorf("ConnIDFromContext() = %q, want %q", got, "01HZX3K4M5N6P7Q8R9S0T1V2W3")
	}
}

func TestConnIDFromContext_Empty(t *testing.T) {
	if got := ConnIDFromContext(context.Background()); got != "" {
		t.Errorf("ConnIDFromContext() = %q, want empty", got)
	}
}
