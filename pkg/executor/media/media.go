// Package media implements the MEDIA executor (spec §4.4.2):
// MEDIA_PLAY, MEDIA_PAUSE, MEDIA_STOP, MEDIA_SEEK against an allowlist
// of known devices, routed through hostadapter for the actual effect.
package media

import (
	"context"
	"strconv"
	"time"

	"github.com/ssbking/personal-digital-authority/pkg/executor"
	"github.com/ssbking/personal-digital-authority/pkg/hostadapter"
	"github.com/ssbking/personal-digital-authority/pkg/invariant"
	"github.com/ssbking/personal-digital-authority/pkg/kernelerrors"
	"github.com/ssbking/personal-digital-authority/pkg/lease"
	"github.com/ssbking/personal-digital-authority/pkg/manifest"
)

// Effector performs the capability-specific host effect after the
// device allowlist and target resolution checks have passed.
type Effector interface {
	Play(ctx context.Context, deviceID string) hostadapter.EffectResult
	Pause(ctx context.Context, deviceID string) hostadapter.EffectResult
	Stop(ctx context.Context, deviceID string) hostadapter.EffectResult
	Seek(ctx context.Context, deviceID string, positionSeconds int64) hostadapter.EffectResult
}

// Executor is the MEDIA capability family.
type Executor struct {
	gate     executor.Gate
	cache    executor.IdempotencyCache
	signer   executor.Signer
	resolver hostadapter.TargetResolver
	effector Effector
	allowed  map[string]bool
}

// New constructs a MEDIA executor confined to allowedDevices.
func New(leaseVerify func(lease.Token) bool, cache executor.IdempotencyCache, signer executor.Signer, resolver hostadapter.TargetResolver, effector Effector, allowedDevices []string) *Executor {
	invariant.NotNil(cache, "cache")
	invariant.NotNil(signer, "signer")
	invariant.NotNil(resolver, "resolver")
	invariant.NotNil(effector, "effector")

	allowed := make(map[string]bool, len(allowedDevices))
	for _, d := range allowedDevices {
		allowed[d] = true
	}

	return &Executor{
		gate: executor.Gate{
			LeaseVerifier: leaseVerify,
			SupportedCapabilities: map[string]bool{
				"MEDIA_PLAY":  true,
				"MEDIA_PAUSE": true,
				"MEDIA_STOP":  true,
				"MEDIA_SEEK":  true,
			},
		},
		cache:    cache,
		signer:   signer,
		resolver: resolver,
		effector: effector,
		allowed:  allowed,
	}
}

// SupportedCapabilities implements executor.Executor.
func (e *Executor) SupportedCapabilities() []string {
	return []string{"MEDIA_PLAY", "MEDIA_PAUSE", "MEDIA_STOP", "MEDIA_SEEK"}
}

// Execute implements executor.Executor.
func (e *Executor) Execute(ctx context.Context, man manifest.TaskManifest, tok lease.Token) executor.Result {
	if cached, ok := e.cache.Get(man.TaskID); ok {
		return cached
	}

	now := time.Now()
	if gateErr := e.gate.Check(man, tok, now); gateErr != nil {
		return e.fail(man, gateErr.Code, gateErr.Message)
	}

	deviceID := man.Inputs["target_device"]
	if !e.allowed[deviceID] {
		return e.fail(man, kernelerrors.TargetNotAccessible, "device is not on the allowlist")
	}

	switch e.resolver.ResolveTarget("device", deviceID) {
	case hostadapter.TargetNotFound:
		return e.fail(man, kernelerrors.TargetNotFound, "device not found")
	case hostadapter.TargetNotAccessible:
		return e.fail(man, kernelerrors.TargetNotAccessible, "device not accessible")
	case hostadapter.InvalidTargetFormat:
		return e.fail(man, kernelerrors.ExecutionFailed, "invalid device identifier format")
	}

	var effect hostadapter.EffectResult
	output := map[string]interface{}{"target_device": deviceID}

	switch man.CapabilityID {
	case "MEDIA_PLAY":
		output["media_uri"] = man.Inputs["media_uri"]
		effect = e.effector.Play(ctx, deviceID)
	case "MEDIA_PAUSE":
		effect = e.effector.Pause(ctx, deviceID)
	case "MEDIA_STOP":
		effect = e.effector.Stop(ctx, deviceID)
	case "MEDIA_SEEK":
		posSec, err := strconv.ParseInt(man.Inputs["position_seconds"], 10, 64)
		if err != nil || posSec < 0 {
			return e.fail(man, kernelerrors.ExecutionFailed, "position_seconds must be a non-negative integer")
		}
		output["position_seconds"] = posSec
		effect = e.effector.Seek(ctx, deviceID, posSec)
	default:
		return e.fail(man, kernelerrors.UnsupportedCapability, "capability not handled by MEDIA executor")
	}

	var result executor.Result
	switch effect {
	case hostadapter.Success, hostadapter.NoOp:
		result = e.succeed(man, output)
	case hostadapter.NavigationBlocked:
		result = e.fail(man, kernelerrors.ExecutionFailed, "effect was blocked by the host")
	default:
		result = e.fail(man, kernelerrors.ExecutionFailed, "host effect failed")
	}

	if result.Status == executor.StatusSuccess {
		e.cache.Put(man.TaskID, result)
	}
	return result
}

func (e *Executor) fail(man manifest.TaskManifest, code kernelerrors.Code, message string) executor.Result {
	r, err := executor.Failure(e.signer, man.TaskID, man.CapabilityID, code, message)
	invariant.ExpectNoError(err, "signing a FAILURE result must not fail")
	return r
}

func (e *Executor) succeed(man manifest.TaskManifest, output map[string]interface{}) executor.Result {
	r, err := executor.Success(e.signer, man.TaskID, man.CapabilityID, output)
	invariant.ExpectNoError(err, "signing a SUCCESS result must not fail")
	return r
}
