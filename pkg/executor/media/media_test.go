package media_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssbking/personal-digital-authority/internal/idempotency"
	"github.com/ssbking/personal-digital-authority/pkg/executor"
	"github.com/ssbking/personal-digital-authority/pkg/executor/media"
	"github.com/ssbking/personal-digital-authority/pkg/hostadapter"
	"github.com/ssbking/personal-digital-authority/pkg/kernelerrors"
	"github.com/ssbking/personal-digital-authority/pkg/lease"
	"github.com/ssbking/personal-digital-authority/pkg/manifest"
)

type nopSigner struct{}

func (nopSigner) Sign(msg []byte) []byte { return []byte("sig") }

type stubResolver struct{ result hostadapter.TargetResolution }

func (r stubResolver) ResolveTarget(targetType, id string) hostadapter.TargetResolution { return r.result }

type stubEffector struct {
	result      hostadapter.EffectResult
	lastSeekPos int64
}

func (e *stubEffector) Play(ctx context.Context, deviceID string) hostadapter.EffectResult  { return e.result }
func (e *stubEffector) Pause(ctx context.Context, deviceID string) hostadapter.EffectResult { return e.result }
func (e *stubEffector) Stop(ctx context.Context, deviceID string) hostadapter.EffectResult  { return e.result }
func (e *stubEffector) Seek(ctx context.Context, deviceID string, positionSeconds int64) hostadapter.EffectResult {
	e.lastSeekPos = positionSeconds
	return e.result
}

func liveToken(taskID string) lease.Token {
	return lease.Token{TaskID: taskID, ExpiresAt: time.Now().Add(time.Minute).UnixMilli()}
}

func playManifest(device string) manifest.TaskManifest {
	return manifest.TaskManifest{
		TaskID:       "play-1",
		CapabilityID: "MEDIA_PLAY",
		Inputs:       map[string]string{"media_uri": "spotify://track/1", "target_device": device},
	}
}

func TestExecute_PlaySucceedsOnAllowlistedResolvedDevice(t *testing.T) {
	eff := &stubEffector{result: hostadapter.Success}
	exec := media.New(func(lease.Token) bool { return true }, idempotency.NewMemoryCache(), nopSigner{},
		stubResolver{result: hostadapter.Resolved}, eff, []string{"living-room"})

	man := playManifest("living-room")
	result := exec.Execute(context.Background(), man, liveToken(man.TaskID))

	require.Equal(t, executor.StatusSuccess, result.Status)
	assert.Equal(t, "living-room", result.Output["target_device"])
	assert.Equal(t, "spotify://track/1", result.Output["media_uri"])
}

func TestExecute_DeviceNotOnAllowlistIsRejectedBeforeResolution(t *testing.T) {
	eff := &stubEffector{result: hostadapter.Success}
	exec := media.New(func(lease.Token) bool { return true }, idempotency.NewMemoryCache(), nopSigner{},
		stubResolver{result: hostadapter.Resolved}, eff, []string{"living-room"})

	man := playManifest("bedroom")
	result := exec.Execute(context.Background(), man, liveToken(man.TaskID))

	require.Equal(t, executor.StatusFailure, result.Status)
	assert.Equal(t, kernelerrors.TargetNotAccessible, result.Error.Code)
}

func TestExecute_DeviceNotFoundByResolver(t *testing.T) {
	eff := &stubEffector{result: hostadapter.Success}
	exec := media.New(func(lease.Token) bool { return true }, idempotency.NewMemoryCache(), nopSigner{},
		stubResolver{result: hostadapter.TargetNotFound}, eff, []string{"living-room"})

	man := playManifest("living-room")
	result := exec.Execute(context.Background(), man, liveToken(man.TaskID))

	require.Equal(t, executor.StatusFailure, result.Status)
	assert.Equal(t, kernelerrors.TargetNotFound, result.Error.Code)
}

func TestExecute_SeekParsesPositionSecondsAndRejectsNegative(t *testing.T) {
	eff := &stubEffector{result: hostadapter.Success}
	exec := media.New(func(lease.Token) bool { return true }, idempotency.NewMemoryCache(), nopSigner{},
		stubResolver{result: hostadapter.Resolved}, eff, []string{"living-room"})

	man := manifest.TaskManifest{
		TaskID:       "seek-1",
		CapabilityID: "MEDIA_SEEK",
		Inputs: map[string]string{
			"media_uri":        "spotify://track/1",
			"target_device":    "living-room",
			"position_seconds": "90",
		},
	}
	result := exec.Execute(context.Background(), man, liveToken(man.TaskID))

	require.Equal(t, executor.StatusSuccess, result.Status)
	assert.EqualValues(t, 90, eff.lastSeekPos)
	assert.EqualValues(t, 90, result.Output["position_seconds"])

	man.TaskID = "seek-2"
	man.Inputs["position_seconds"] = "-5"
	result = exec.Execute(context.Background(), man, liveToken(man.TaskID))
	require.Equal(t, executor.StatusFailure, result.Status)
}

func TestExecute_HostBlockedEffectIsExecutionFailed(t *testing.T) {
	eff := &stubEffector{result: hostadapter.NavigationBlocked}
	exec := media.New(func(lease.Token) bool { return true }, idempotency.NewMemoryCache(), nopSigner{},
		stubResolver{result: hostadapter.Resolved}, eff, []string{"living-room"})

	man := playManifest("living-room")
	result := exec.Execute(context.Background(), man, liveToken(man.TaskID))

	require.Equal(t, executor.StatusFailure, result.Status)
	assert.Equal(t, kernelerrors.ExecutionFailed, result.Error.Code)
}
