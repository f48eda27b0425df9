// Package navigation implements the NAVIGATION executor (spec
// §4.4.4): NAVIGATE_APP, NAVIGATE_WINDOW, NAVIGATE_URL, NAVIGATE_FILE.
// Each capability binds a fixed target_type constant via its
// capability.Schema, so a single host effect call carries that type
// through to target resolution and the navigation effect itself.
package navigation

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

// Effector performs the navigate effect after target resolution has
// succeeded.
type Effector interface {
	Navigate(ctx context.Context, targetType, targetID, navigationMode, focusPolicy string) hostadapter.EffectResult
}

// Executor is the NAVIGATION capability family.
type Executor struct {
	gate     executor.Gate
	cache    executor.IdempotencyCache
	signer   executor.Signer
	resolver hostadapter.TargetResolver
	effector Effector
}

// New constructs a NAVIGATION executor.
func New(leaseVerify func(lease.Token) bool, cache executor.IdempotencyCache, signer executor.Signer, resolver hostadapter.TargetResolver, effector Effector) *Executor {
	invariant.NotNil(cache, "cache")
	invariant.NotNil(signer, "signer")
	invariant.NotNil(resolver, "resolver")
	invariant.NotNil(effector, "effector")

	return &Executor{
		gate: executor.Gate{
			LeaseVerifier: leaseVerify,
			SupportedCapabilities: map[string]bool{
				"NAVIGATE_APP":    true,
				"NAVIGATE_WINDOW": true,
				"NAVIGATE_URL":    true,
				"NAVIGATE_FILE":   true,
			},
		},
		cache:    cache,
		signer:   signer,
		resolver: resolver,
		effector: effector,
	}
}

// SupportedCapabilities implements executor.Executor.
func (e *Executor) SupportedCapabilities() []string {
	return []string{"NAVIGATE_APP", "NAVIGATE_WINDOW", "NAVIGATE_URL", "NAVIGATE_FILE"}
}

var targetTypeByCapability = map[string]string{
	"NAVIGATE_APP":    "app",
	"NAVIGATE_WINDOW": "window",
	"NAVIGATE_URL":    "url",
	"NAVIGATE_FILE":   "file",
}

// Closed domains for navigation_mode and focus_policy (spec §4.4.4).
// The compiler's capability schema already rejects these at compile
// time; this is the gate's step 5 re-check at the executor itself.
var (
	validNavigationModes = map[string]bool{"foreground": true, "background": true}
	validFocusPolicies   = map[string]bool{"steal": true, "request": true, "none": true}
)

// Execute implements executor.Executor.
func (e *Executor) Execute(ctx context.Context, man manifest.TaskManifest, tok lease.Token) executor.Result {
	if cached, ok := e.cache.Get(man.TaskID); ok {
		return cached
	}

	now := time.Now()
	if gateErr := e.gate.Check(man, tok, now); gateErr != nil {
		return e.fail(man, gateErr.Code, gateErr.Message)
	}

	targetType, ok := targetTypeByCapability[man.CapabilityID]
	if !ok {
		return e.fail(man, kernelerrors.UnsupportedCapability, "capability not handled by NAVIGATION executor")
	}

	targetID := man.Inputs["target_id"]
	navigationMode := man.Inputs["navigation_mode"]
	focusPolicy := man.Inputs["focus_policy"]

	if !validNavigationModes[navigationMode] {
		return e.fail(man, kernelerrors.ExecutionFailed, "navigation_mode must be one of foreground, background")
	}
	if !validFocusPolicies[focusPolicy] {
		return e.fail(man, kernelerrors.ExecutionFailed, "focus_policy must be one of steal, request, none")
	}

	var result executor.Result
	switch e.resolver.ResolveTarget(targetType, targetID) {
	case hostadapter.TargetNotFound:
		result = e.fail(man, kernelerrors.TargetNotFound, "navigation target not found")
	case hostadapter.TargetNotAccessible:
		result = e.fail(man, kernelerrors.TargetNotAccessible, "navigation target not accessible")
	case hostadapter.InvalidTargetFormat:
		result = e.fail(man, kernelerrors.ExecutionFailed, "invalid navigation target identifier format")
	default:
		effect := e.effector.Navigate(ctx, targetType, targetID, navigationMode, focusPolicy)
		switch effect {
		case hostadapter.Success, hostadapter.NoOp:
			result = e.succeed(man, map[string]interface{}{
				"target_type":     targetType,
				"target_id":       targetID,
				"navigation_mode": navigationMode,
				"focus_policy":    focusPolicy,
			})
		case hostadapter.NavigationBlocked:
			result = e.fail(man, kernelerrors.NavigationBlocked, "navigation was blocked by the host")
		default:
			result = e.fail(man, kernelerrors.ExecutionFailed, "host navigation effect failed")
		}
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
