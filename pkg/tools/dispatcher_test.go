package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDispatch(t *testing.T) {
	done := make(chan string, 2)
	Dispatch(context.Background(), "ok", func(ctx context.Context) error {
		done <- "ok"
		return nil
	})
	Dispatch(context.Background(), "broken", func(ctx context.Context) error {
		done <- "broken"
		return errors.New("boom")
	})

	got := map[string]bool{}
	for range 2 {
		select {
		case name := <-done:
			got[name] = true
		case <-time.After(time.Second):
			t.Fatal("tool did not run")
		}
	}
	assert.Equal(t, map[string]bool{"ok": true, "broken": true}, got)
}
