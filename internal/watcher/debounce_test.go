package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoalesce_CreateThenDeleteDropsBoth(t *testing.T) {
	_, ok := coalesce(OpCreate, OpDelete)
	assert.False(t, ok)
}

func TestCoalesce_CreateThenModifyStaysCreate(t *testing.T) {
	merged, ok := coalesce(OpCreate, OpModify)
	require.True(t, ok)
	assert.Equal(t, OpCreate, merged)
}

func TestCoalesce_ModifyThenDeleteBecomesDelete(t *testing.T) {
	merged, ok := coalesce(OpModify, OpDelete)
	require.True(t, ok)
	assert.Equal(t, OpDelete, merged)
}

func TestCoalesce_DeleteThenCreateBecomesModify(t *testing.T) {
	merged, ok := coalesce(OpDelete, OpCreate)
	require.True(t, ok)
	assert.Equal(t, OpModify, merged)
}

func TestCoalesce_RepeatedModifyCollapses(t *testing.T) {
	merged, ok := coalesce(OpModify, OpModify)
	require.True(t, ok)
	assert.Equal(t, OpModify, merged)
}

func TestDebounceBuffer_CoalescesPerPath(t *testing.T) {
	b := newDebounceBuffer(0)
	now := time.Now()

	b.add(FileChangeEvent{Path: "a.ts", Op: OpCreate, Time: now})
	b.add(FileChangeEvent{Path: "a.ts", Op: OpModify, Time: now.Add(time.Millisecond)})

	out := b.flush()
	require.Len(t, out, 1)
	assert.Equal(t, OpCreate, out[0].Op)
}

func TestDebounceBuffer_CreateDeleteCancelsOut(t *testing.T) {
	b := newDebounceBuffer(0)
	now := time.Now()

	b.add(FileChangeEvent{Path: "a.ts", Op: OpCreate, Time: now})
	b.add(FileChangeEvent{Path: "a.ts", Op: OpDelete, Time: now})

	out := b.flush()
	assert.Empty(t, out)
}

func TestDebounceBuffer_FlushOrdersByOpThenDepthThenPath(t *testing.T) {
	b := newDebounceBuffer(0)
	now := time.Now()

	b.add(FileChangeEvent{Path: "z.ts", Op: OpModify, Time: now})
	b.add(FileChangeEvent{Path: "nested/a.ts", Op: OpDelete, Time: now})
	b.add(FileChangeEvent{Path: "a.ts", Op: OpDelete, Time: now})
	b.add(FileChangeEvent{Path: "b.ts", Op: OpCreate, Time: now})

	out := b.flush()
	require.Len(t, out, 4)
	assert.Equal(t, OpDelete, out[0].Op)
	assert.Equal(t, "a.ts", out[0].Path)
	assert.Equal(t, OpDelete, out[1].Op)
	assert.Equal(t, "nested/a.ts", out[1].Path)
	assert.Equal(t, OpCreate, out[2].Op)
	assert.Equal(t, OpModify, out[3].Op)
}

func TestDebounceBuffer_ForceFlushAtMinBatchSize(t *testing.T) {
	b := newDebounceBuffer(2)
	now := time.Now()

	assert.False(t, b.add(FileChangeEvent{Path: "a.ts", Op: OpModify, Time: now}))
	assert.True(t, b.add(FileChangeEvent{Path: "b.ts", Op: OpModify, Time: now}))
}

func TestDebounceBuffer_PendingCountReflectsBufferedEvents(t *testing.T) {
	b := newDebounceBuffer(0)
	now := time.Now()
	b.add(FileChangeEvent{Path: "a.ts", Op: OpModify, Time: now})
	assert.Equal(t, 1, b.pendingCount())
	b.flush()
	assert.Equal(t, 0, b.pendingCount())
}
