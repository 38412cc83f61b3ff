// AngelaMos | 2026
// janitor_test.go

package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stubPurger struct {
	calls int
	n     int64
	err   error
}

func (p *stubPurger) PurgeExpiredTokens(context.Context) (int64, error) {
	p.calls++
	return p.n, p.err
}

func TestUntilNextMidnight(t *testing.T) {
	loc := time.FixedZone("test", 2*60*60)

	now := time.Date(2026, 3, 14, 23, 30, 0, 0, loc)
	assert.Equal(t, 30*time.Minute, untilNextMidnight(now))

	now = time.Date(2026, 12, 31, 0, 0, 0, 0, loc)
	assert.Equal(t, 24*time.Hour, untilNextMidnight(now))
}

func TestJanitorRunOnceSurvivesFailure(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := &stubPurger{err: errors.New("db down")}

	j := NewJanitor(p, logger)
	j.RunOnce(context.Background())
	j.RunOnce(context.Background())

	assert.Equal(t, 2, p.calls)
}

func TestJanitorRunStopsOnCancel(t *testing.T) {
	p := &stubPurger{}
	j := NewJanitor(p, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
	assert.Zero(t, p.calls)
}
