package reload

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/snapshot"
)

type countingReloader struct {
	reloads     int
	invalidates int
	err         error
}

func (c *countingReloader) Reload(context.Context) error {
	c.reloads++
	return c.err
}

func (c *countingReloader) Invalidate(context.Context) error {
	c.invalidates++
	return nil
}

func event(t *testing.T, complete bool) []byte {
	t.Helper()
	b, err := json.Marshal(snapshot.ReadyEvent{
		Location: "data/index.eidx",
		Complete: complete,
		Entities: 3,
		BuiltAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
	return b
}

func TestHandleMessage_ReloadsAndInvalidates(t *testing.T) {
	r := &countingReloader{}
	h := HandleMessage(r, r, false)

	require.NoError(t, h(context.Background(), nil, event(t, true)))

	assert.Equal(t, 1, r.reloads)
	assert.Equal(t, 1, r.invalidates)
}

func TestHandleMessage_SkipsPartial(t *testing.T) {
	r := &countingReloader{}

	require.NoError(t, HandleMessage(r, r, false)(context.Background(), nil, event(t, false)))
	assert.Equal(t, 0, r.reloads)

	require.NoError(t, HandleMessage(r, nil, true)(context.Background(), nil, event(t, false)))
	assert.Equal(t, 1, r.reloads)
	assert.Equal(t, 0, r.invalidates)
}

func TestHandleMessage_BadPayloadIsDropped(t *testing.T) {
	r := &countingReloader{}

	require.NoError(t, HandleMessage(r, r, false)(context.Background(), []byte("k"), []byte("{nope")))
	assert.Equal(t, 0, r.reloads)
}

func TestHandleMessage_ReloadErrorIsReturned(t *testing.T) {
	r := &countingReloader{err: errors.New("rebuild required")}

	err := HandleMessage(r, r, false)(context.Background(), nil, event(t, true))

	require.Error(t, err)
	assert.Equal(t, 0, r.invalidates)
}
