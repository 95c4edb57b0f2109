package diag

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/swagger2client/internal/spec"
)

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordingLogger) record(level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, level+" "+msg)
}

func (r *recordingLogger) Debug(msg string, _ ...any) { r.record("debug", msg) }
func (r *recordingLogger) Info(msg string, _ ...any)  { r.record("info", msg) }
func (r *recordingLogger) Warn(msg string, _ ...any)  { r.record("warn", msg) }
func (r *recordingLogger) Error(msg string, _ ...any) { r.record("error", msg) }

func TestCollector_DedupAndOrder(t *testing.T) {
	t.Parallel()
	log := &recordingLogger{}
	c := NewCollector(log)

	b := spec.Origin{Doc: "b.yaml", Pointer: "/paths"}
	a2 := spec.Origin{Doc: "a.yaml", Pointer: "/components/schemas/Z"}
	a1 := spec.Origin{Doc: "a.yaml", Pointer: "/components/schemas/A"}
	c.Warn(CodePathParam, b, "missing %s", "id")
	c.Warn(CodeUnknownShape, a2, "opaque")
	c.Info(CodeDuplicateName, a1, "renamed")
	c.Warn(CodePathParam, b, "missing %s", "id")

	events := c.Events()
	require.Len(t, events, 3)
	assert.Equal(t, a1, events[0].Origin)
	assert.Equal(t, a2, events[1].Origin)
	assert.Equal(t, b, events[2].Origin)
	assert.Equal(t, "missing id", events[2].Message)

	warnings := c.Warnings()
	require.Len(t, warnings, 2)
	for _, w := range warnings {
		assert.Equal(t, LevelWarn, w.Level)
	}
	assert.Equal(t, []string{"warn missing id", "warn opaque", "debug renamed"}, log.lines)
}

func TestCollector_Concurrent(t *testing.T) {
	t.Parallel()
	c := NewCollector(nil)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Warn(CodeValidation, spec.Origin{Doc: "api.yaml", Pointer: fmt.Sprintf("/n/%02d", i%4)}, "bad")
		}(i)
	}
	wg.Wait()
	assert.Len(t, c.Events(), 4)
}

func TestEventString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "[warn] formatter: gofmt failed", Event{Level: LevelWarn, Code: CodeFormatter, Message: "gofmt failed"}.String())
	e := Event{Level: LevelInfo, Code: CodeCircularRef, Message: "cycle", Origin: spec.Origin{Doc: "api.yaml", Pointer: "/a", Line: 3}}
	assert.Equal(t, "[info] circular-ref: cycle (api.yaml#/a (line 3))", e.String())
}

func TestFromContext(t *testing.T) {
	t.Parallel()
	c := NewCollector(nil)
	assert.Same(t, c, FromContext(WithCollector(context.Background(), c)))

	fallback := FromContext(context.Background())
	require.NotNil(t, fallback)
	fallback.Warn(CodeValidation, spec.Origin{}, "dropped")
	assert.Empty(t, c.Events())
}
