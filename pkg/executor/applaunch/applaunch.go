// Package applaunch implements the APP_LAUNCH executor (spec §4.4.3):
// LAUNCH, FOCUS, CLOSE against an allowlist of known applications.
// CLOSE is graceful-only — the kernel never force-kills a process.
package applaunch

import (
	"context"
	"time"

	"github.com/ssbking/personal-digital-authority/pkg/executor"
	"github.com/ssbking/personal-digital-authority/pkg/hostadapter"
	"github.com/ssbking/personal-digital-authority/pkg/invariant"
	"github.com/ssbking/personal-digital-authority/pkg/kernelerrors"
	"github.com/ssbking/personal-digital-authority/pkg/lease"
	"github.com/ssbking/personal-digital-authority/pkg/manifest"
)

// Effector performs the capability-specific host effect once the app
// allowlist and target resolution checks have passed. Close must only
// ever request a graceful shutdown — no SIGKILL equivalent exists on
// this interface.
type Effector interface {
	Launch(ctx context.Context, appID string) hostadapter.EffectResult
	Focus(ctx context.Context, appID string) hostadapter.EffectResult
	CloseGracefully(ctx context.Context, appID string) hostadapter.EffectResult
}

// allowedEnvironments is target_environment's closed domain (spec
// §4.4.3). The compiler's capability schema already rejects an
// out-of-set value at compile time; this is the gate's step 5
// re-check at the executor itself.
var allowedEnvironments = map[string]bool{"desktop": true, "mobile": true, "tv": true}

// Executor is the APP_LAUNCH capability family.
type Executor struct {
	gate     executor.Gate
	cache    executor.IdempotencyCache
	signer   executor.Signer
	resolver hostadapter.TargetResolver
	effector Effector
	allowed  map[string]bool
}

// New constructs an APP_LAUNCH executor confined to allowedApps.
func New(leaseVerify func(lease.Token) bool, cache executor.IdempotencyCache, signer executor.Signer, resolver hostadapter.TargetResolver, effector Effector, allowedApps []string) *Executor {
	invariant.NotNil(cache, "cache")
	invariant.NotNil(signer, "signer")
	invariant.NotNil(resolver, "resolver")
	invariant.NotNil(effector, "effector")

	allowed := make(map[string]bool, len(allowedApps))
	for _, a := range allowedApps {
		allowed[a] = true
	}

	return &Executor{
		gate: executor.Gate{
			LeaseVerifier: leaseVerify,
			SupportedCapabilities: map[string]bool{
				"APP_LAUNCH": true,
				"APP_FOCUS":  true,
				"APP_CLOSE":  true,
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
	return []string{"APP_LAUNCH", "APP_FOCUS", "APP_CLOSE"}
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

	appID := man.Inputs["app_id"]
	if !e.allowed[appID] {
		return e.fail(man, kernelerrors.TargetNotAccessible, "application is not on the allowlist")
	}

	targetEnv := man.Inputs["target_environment"]
	if !allowedEnvironments[targetEnv] {
		return e.fail(man, kernelerrors.ExecutionFailed, "target_environment must be one of desktop, mobile, tv")
	}

	if man.CapabilityID != "APP_LAUNCH" {
		switch e.resolver.ResolveTarget("app", appID) {
		case hostadapter.TargetNotFound:
			return e.fail(man, kernelerrors.TargetNotFound, "application is not currently running")
		case hostadapter.TargetNotAccessible:
			return e.fail(man, kernelerrors.TargetNotAccessible, "application not accessible")
		case hostadapter.InvalidTargetFormat:
			return e.fail(man, kernelerrors.ExecutionFailed, "invalid application identifier format")
		}
	}

	var effect hostadapter.EffectResult
	switch man.CapabilityID {
	case "APP_LAUNCH":
		effect = e.effector.Launch(ctx, appID)
	case "APP_FOCUS":
		effect = e.effector.Focus(ctx, appID)
	case "APP_CLOSE":
		effect = e.effector.CloseGracefully(ctx, appID)
	default:
		return e.fail(man, kernelerrors.UnsupportedCapability, "capability not handled by APP_LAUNCH executor")
	}

	var result executor.Result
	switch effect {
	case hostadapter.Success, hostadapter.NoOp:
		result = e.succeed(man, map[string]interface{}{"app_id": appID, "target_environment": targetEnv})
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
