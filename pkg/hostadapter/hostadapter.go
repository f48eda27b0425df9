// Package hostadapter declares the narrow, synchronous, exception-free
// boundary executors use to reach the outside world (spec §4.4, §5,
// §6). The kernel fixes these contracts; concrete platform bindings
// (filesystem, media devices, OS focus, mail/dataset search backends)
// are host-supplied and out of scope for this module.
package hostadapter

// LeaseVerification is the result of verify_lease_signature.
type LeaseVerification int

const (
	Verified LeaseVerification = iota
	Invalid
)

// TargetResolution is the result of resolve_target.
type TargetResolution int

const (
	Resolved TargetResolution = iota
	TargetNotFound
	TargetNotAccessible
	InvalidTargetFormat
)

// EffectResult is the result of a capability-specific effect call.
type EffectResult int

const (
	Success EffectResult = iota
	NoOp
	NavigationBlocked
	EffectExecutionFailed
)

// Capabilities describes what a host build supports, as a static
// declaration rather than a means of discovering new capabilities at
// runtime (spec Non-goals: no dynamic capability discovery). None of
// the executors in this module consult it.
type Capabilities struct {
	AdapterVersion    string
	SupportedFamilies []string
}

// LeaseVerifier exposes verify_lease_signature. All methods are
// synchronous, stateless, exception-free, and deterministic given
// identical host state.
type LeaseVerifier interface {
	VerifyLeaseSignature(payload, signature, kernelPublicKey []byte) LeaseVerification
}

// TargetResolver exposes resolve_target.
type TargetResolver interface {
	ResolveTarget(targetType, id string) TargetResolution
}

// CapabilitiesProvider exposes get_host_capabilities.
type CapabilitiesProvider interface {
	HostCapabilities() Capabilities
}

// Host aggregates the three generic host-adapter interfaces. Executors
// take only the parts they use (such as a TargetResolver) at
// construction time; the capability-specific effect calls are declared
// by each executor in its own package.
type Host interface {
	LeaseVerifier
	TargetResolver
	CapabilitiesProvider
}
