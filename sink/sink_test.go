package sink

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() SessionConfig {
	return SessionConfig{
		Bucket:    "example-bucket",
		Region:    "us-west-2",
		KeyPrefix: "deja_vu",
		Extension: "png",
	}
}

func TestSink_TwelveFrames(t *testing.T) {
	storage := newFakeStorage()
	s, err := New(testConfig(), storage, log.NewLogger())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	for i := 0; i < 12; i++ {
		signal := s.Push(ctx, []byte(fmt.Sprintf("frame payload %d", i)))
		require.Equal(t, FlowOK, signal, "frame %d", i)
	}

	summary, err := s.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), summary.Succeeded)
	assert.Equal(t, uint64(0), summary.Failed)
	assert.Empty(t, summary.FailedKeys)

	expected := map[string]bool{}
	for i := 0; i < 12; i++ {
		expected[ObjectKey("deja_vu", uint64(i), "png")] = true
	}
	assert.Equal(t, expected, storage.storedKeys())
	assert.True(t, s.Healthy())
}

func TestSink_SequenceAssignmentGapless(t *testing.T) {
	storage := newFakeStorage()
	config := testConfig()
	config.Concurrency = 3
	s, err := New(config, storage, log.NewLogger())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	const numFrames = 25
	for i := 0; i < numFrames; i++ {
		require.Equal(t, FlowOK, s.Push(ctx, []byte("p")))
	}

	summary, err := s.Drain(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(numFrames), summary.Succeeded)

	// every sequence number from 0..N-1 used exactly once, no gaps, no reuse
	stored := storage.storedKeys()
	require.Len(t, stored, numFrames)
	for i := 0; i < numFrames; i++ {
		assert.True(t, stored[ObjectKey("deja_vu", uint64(i), "png")], "missing sequence %d", i)
	}
}

func TestSink_ProvisioningFailureRejectsAllFrames(t *testing.T) {
	storage := newFakeStorage()
	storage.headErr = fmt.Errorf("head bucket: %w", &smithy.GenericAPIError{
		Code:  "PermanentRedirect",
		Fault: smithy.FaultClient,
	})

	s, err := New(testConfig(), storage, log.NewLogger())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	for i := 0; i < 3; i++ {
		assert.Equal(t, FlowError, s.Push(ctx, []byte("p")))
	}

	summary, err := s.Drain(ctx)
	assert.Error(t, err)
	assert.Equal(t, uint64(0), summary.Succeeded)
	assert.Equal(t, 0, storage.numPutCalls(), "no upload attempt may occur")
	assert.False(t, s.BucketState().Usable())
	assert.False(t, s.Healthy())
}

func TestSink_RejectWhileProvisioning(t *testing.T) {
	storage := newFakeStorage()
	storage.headGate = make(chan struct{})

	config := testConfig()
	config.RejectWhileProvisioning = true
	s, err := New(config, storage, log.NewLogger())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	assert.Equal(t, FlowNotReady, s.Push(ctx, []byte("early")))

	close(storage.headGate)
	require.Eventually(t, func() bool {
		return s.Push(ctx, []byte("p")) == FlowOK
	}, 2*time.Second, 5*time.Millisecond)

	summary, err := s.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), summary.Succeeded)
}

func TestSink_PerFrameFailureDoesNotHaltStream(t *testing.T) {
	storage := newFakeStorage()
	badKey := ObjectKey("deja_vu", 1, "png")
	storage.putErrs[badKey] = &smithy.GenericAPIError{Code: "AccessDenied", Fault: smithy.FaultClient}

	s, err := New(testConfig(), storage, log.NewLogger())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	for i := 0; i < 5; i++ {
		require.Equal(t, FlowOK, s.Push(ctx, []byte("p")), "stream must keep accepting frames")
	}

	summary, err := s.Drain(ctx)
	assert.Error(t, err)
	assert.Equal(t, uint64(4), summary.Succeeded)
	assert.Equal(t, uint64(1), summary.Failed)
	assert.Equal(t, []string{badKey}, summary.FailedKeys)
}

func TestSink_Lifecycle(t *testing.T) {
	storage := newFakeStorage()
	s, err := New(testConfig(), storage, log.NewLogger())
	require.NoError(t, err)

	ctx := context.Background()

	assert.Equal(t, FlowError, s.Push(ctx, []byte("p")), "push before start")

	_, err = s.Drain(ctx)
	assert.ErrorIs(t, err, ErrNotStarted)

	require.NoError(t, s.Start(ctx))
	assert.ErrorIs(t, s.Start(ctx), ErrAlreadyStarted)

	require.Equal(t, FlowOK, s.Push(ctx, []byte("p")))

	_, err = s.Drain(ctx)
	require.NoError(t, err)

	assert.Equal(t, FlowError, s.Push(ctx, []byte("p")), "push after drain")
}

func TestSink_InvalidConfigRejectedAtConstruction(t *testing.T) {
	config := testConfig()
	config.Extension = "exe"

	_, err := New(config, newFakeStorage(), log.NewLogger())
	assert.Error(t, err)
}
