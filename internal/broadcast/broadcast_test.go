package broadcast

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/avatarpipe/internal/pipeline"
)

type recordingObserver struct {
	frames []*pipeline.Frame
	errors []string
	err    error
}

func (r *recordingObserver) OnFrame(frame *pipeline.Frame) error {
	if r.err != nil {
		return r.err
	}
	r.frames = append(r.frames, frame)
	return nil
}

func (r *recordingObserver) OnStreamError(message, _ string) error {
	if r.err != nil {
		return r.err
	}
	r.errors = append(r.errors, message)
	return nil
}

func TestSubscribeIdempotent(t *testing.T) {
	b := New(zerolog.Nop())
	obs := &recordingObserver{}

	b.Subscribe(obs)
	b.Subscribe(obs)
	assert.Equal(t, 1, b.ObserverCount())

	b.Unsubscribe(obs)
	b.Unsubscribe(obs)
	assert.Equal(t, 0, b.ObserverCount())
}

func TestPublishReachesAll(t *testing.T) {
	b := New(zerolog.Nop())
	a, c := &recordingObserver{}, &recordingObserver{}
	b.Subscribe(a)
	b.Subscribe(c)

	frame := &pipeline.Frame{TextChunk: "hello", Timestamp: 0.5}
	require.NoError(t, b.Publish(frame))

	require.Len(t, a.frames, 1)
	require.Len(t, c.frames, 1)
	assert.Same(t, frame, a.frames[0])
}

func TestFailingObserverDropped(t *testing.T) {
	b := New(zerolog.Nop())
	good1 := &recordingObserver{}
	bad := &recordingObserver{err: errors.New("write: broken pipe")}
	good2 := &recordingObserver{}
	b.Subscribe(good1)
	b.Subscribe(bad)
	b.Subscribe(good2)

	err := b.Publish(&pipeline.Frame{TextChunk: "one"})

	var bErr *BroadcastError
	require.ErrorAs(t, err, &bErr)
	assert.Len(t, bErr.Failures, 1)

	// The failure did not block anyone else.
	assert.Len(t, good1.frames, 1)
	assert.Len(t, good2.frames, 1)
	assert.Equal(t, 2, b.ObserverCount())

	// Next publish skips the dropped observer cleanly.
	require.NoError(t, b.Publish(&pipeline.Frame{TextChunk: "two"}))
	assert.Len(t, good1.frames, 2)
	assert.Len(t, good2.frames, 2)
}

func TestPublishErrorReachesAll(t *testing.T) {
	b := New(zerolog.Nop())
	good := &recordingObserver{}
	bad := &recordingObserver{err: errors.New("gone")}
	b.Subscribe(good)
	b.Subscribe(bad)

	err := b.PublishError("pipeline aborted at tts stage", "tts")

	var bErr *BroadcastError
	require.ErrorAs(t, err, &bErr)
	require.Len(t, good.errors, 1)
	assert.Contains(t, good.errors[0], "tts")
	assert.Equal(t, 1, b.ObserverCount())
}

func TestPublishWithNoObservers(t *testing.T) {
	b := New(zerolog.Nop())
	assert.NoError(t, b.Publish(&pipeline.Frame{TextChunk: "void"}))
}

func TestNilObserverIgnored(t *testing.T) {
	b := New(zerolog.Nop())
	b.Subscribe(nil)
	assert.Equal(t, 0, b.ObserverCount())
}
