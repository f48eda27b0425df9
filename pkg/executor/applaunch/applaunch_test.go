package applaunch_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssbking/personal-digital-authority/internal/idempotency"
	"github.com/ssbking/personal-digital-authority/pkg/executor"
	"github.com/ssbking/personal-digital-authority/pkg/executor/applaunch"
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
	launchCalls int
}

func (e *stubEffector) Launch(ctx context.Context, appID string) hostadapter.EffectResult {
	e.launchCalls++
	return e.result
}
func (e *stubEffector) Focus(ctx context.Context, appID string) hostadapter.EffectResult { return e.result }
func (e *stubEffector) CloseGracefully(ctx context.Context, appID string) hostadapter.EffectResult {
	return e.result
}

func liveToken(taskID string) lease.Token {
	return lease.Token{TaskID: taskID, ExpiresAt: time.Now().Add(time.Minute).UnixMilli()}
}

func launchManifest(appID, targetEnv string) manifest.TaskManifest {
	return manifest.TaskManifest{
		TaskID:       "launch-" + appID,
		CapabilityID: "APP_LAUNCH",
		Inputs:       map[string]string{"app_id": appID, "target_environment": targetEnv},
	}
}

func TestExecute_LaunchSkipsTargetResolutionSinceAppIsNotYetRunning(t *testing.T) {
	eff := &stubEffector{result: hostadapter.Success}
	exec := applaunch.New(func(lease.Token) bool { return true }, idempotency.NewMemoryCache(), nopSigner{},
		stubResolver{result: hostadapter.TargetNotFound}, eff, []string{"notes.app"})

	man := launchManifest("notes.app", "desktop")
	result := exec.Execute(context.Background(), man, liveToken(man.TaskID))

	require.Equal(t, executor.StatusSuccess, result.Status)
	assert.Equal(t, 1, eff.launchCalls)
	assert.Equal(t, "desktop", result.Output["target_environment"])
}

func TestExecute_AppNotOnAllowlistIsRejected(t *testing.T) {
	eff := &stubEffector{result: hostadapter.Success}
	exec := applaunch.New(func(lease.Token) bool { return true }, idempotency.NewMemoryCache(), nopSigner{},
		stubResolver{result: hostadapter.Resolved}, eff, []string{"notes.app"})

	man := launchManifest("unknown.app", "desktop")
	result := exec.Execute(context.Background(), man, liveToken(man.TaskID))

	require.Equal(t, executor.StatusFailure, result.Status)
	assert.Equal(t, kernelerrors.TargetNotAccessible, result.Error.Code)
	assert.Equal(t, 0, eff.launchCalls)
}

func TestExecute_UnknownTargetEnvironmentIsRejected(t *testing.T) {
	eff := &stubEffector{result: hostadapter.Success}
	exec := applaunch.New(func(lease.Token) bool { return true }, idempotency.NewMemoryCache(), nopSigner{},
		stubResolver{result: hostadapter.Resolved}, eff, []string{"notes.app"})

	man := launchManifest("notes.app", "smartwatch")
	result := exec.Execute(context.Background(), man, liveToken(man.TaskID))

	require.Equal(t, executor.StatusFailure, result.Status)
	assert.Equal(t, kernelerrors.ExecutionFailed, result.Error.Code)
	assert.Equal(t, 0, eff.launchCalls)
}

func TestExecute_FocusRequiresTargetResolution(t *testing.T) {
	eff := &stubEffector{result: hostadapter.Success}
	exec := applaunch.New(func(lease.Token) bool { return true }, idempotency.NewMemoryCache(), nopSigner{},
		stubResolver{result: hostadapter.TargetNotFound}, eff, []string{"notes.app"})

	man := manifest.TaskManifest{
		TaskID:       "focus-1",
		CapabilityID: "APP_FOCUS",
		Inputs:       map[string]string{"app_id": "notes.app", "target_environment": "desktop"},
	}
	result := exec.Execute(context.Background(), man, liveToken(man.TaskID))

	require.Equal(t, executor.StatusFailure, result.Status)
	assert.Equal(t, kernelerrors.TargetNotFound, result.Error.Code)
}

func TestExecute_CloseGracefullyIsTheOnlyCloseEffectInvoked(t *testing.T) {
	eff := &stubEffector{result: hostadapter.Success}
	exec := applaunch.New(func(lease.Token) bool { return true }, idempotency.NewMemoryCache(), nopSigner{},
		stubResolver{result: hostadapter.Resolved}, eff, []string{"notes.app"})

	man := manifest.TaskManifest{
		TaskID:       "close-1",
		CapabilityID: "APP_CLOSE",
		Inputs:       map[string]string{"app_id": "notes.app", "target_environment": "desktop"},
	}
	result := exec.Execute(context.Background(), man, liveToken(man.TaskID))

	require.Equal(t, executor.StatusSuccess, result.Status)
	assert.Equal(t, "notes.app", result.Output["app_id"])
}

func TestExecute_NavigationBlockedEffectIsMappedToExecutionFailed(t *testing.T) {
	eff := &stubEffector{result: hostadapter.NavigationBlocked}
	exec := applaunch.New(func(lease.Token) bool { return true }, idempotency.NewMemoryCache(), nopSigner{},
		stubResolver{result: hostadapter.Resolved}, eff, []string{"notes.app"})

	man := launchManifest("notes.app", "desktop")
	result := exec.Execute(context.Background(), man, liveToken(man.TaskID))

	require.Equal(t, executor.StatusFailure, result.Status)
	assert.Equal(t, kernelerrors.ExecutionFailed, result.Error.Code)
}

func TestExecute_FailureIsNotCachedAndIsReattemptedOnRetry(t *testing.T) {
	eff := &stubEffector{result: hostadapter.Success}
	resolver := &trackingResolver{result: hostadapter.TargetNotFound}
	exec := applaunch.New(func(lease.Token) bool { return true }, idempotency.NewMemoryCache(), nopSigner{},
		resolver, eff, []string{"notes.app"})

	man := manifest.TaskManifest{
		TaskID:       "focus-retry",
		CapabilityID: "APP_FOCUS",
		Inputs:       map[string]string{"app_id": "notes.app", "target_environment": "desktop"},
	}
	first := exec.Execute(context.Background(), man, liveToken(man.TaskID))
	require.Equal(t, executor.StatusFailure, first.Status)

	resolver.result = hostadapter.Resolved
	second := exec.Execute(context.Background(), man, liveToken(man.TaskID))
	assert.Equal(t, executor.StatusSuccess, second.Status)
}

type trackingResolver struct{ result hostadapter.TargetResolution }

func (r *trackingResolver) ResolveTarget(targetType, id string) hostadapter.TargetResolution {
	return r.result
}

func TestSupportedCapabilities_ListsAllThreeAppCapabilities(t *testing.T) {
	eff := &stubEffector{result: hostadapter.Success}
	exec := applaunch.New(func(lease.Token) bool { return true }, idempotency.NewMemoryCache(), nopSigner{},
		stubResolver{result: hostadapter.Resolved}, eff, []string{"notes.app"})

	assert.ElementsMatch(t, []string{"APP_LAUNCH", "APP_FOCUS", "APP_CLOSE"}, exec.SupportedCapabilities())
}
