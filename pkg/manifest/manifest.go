// Package manifest defines TaskManifest, the immutable product of the
// blueprint compiler (spec §3, §4.2).
package manifest

import "github.com/ssbking/personal-digital-authority/pkg/ast"

// Constraints mirrors the AST's metadata fields, copied byte-for-byte
// by the compiler — no interpretation (spec §4.2 "Constraint
// propagation").
type Constraints struct {
	Scope       string
	Reversible  bool
	Sensitivity ast.Sensitivity
	HRCRequired bool
}

// Provenance records the compiler's derivation inputs independent of
// the chosen task_id scheme.
type Provenance struct {
	ASTHash string
}

// TaskManifest is immutable once constructed: created by the compiler,
// consumed by the lease manager and executor, never mutated.
type TaskManifest struct {
	TaskID       string
	CapabilityID string
	Inputs       map[string]string
	Constraints  Constraints
	Provenance   Provenance
}

// Canonical returns the generic value tree used for hashing/signing —
// the manifest's own canonical encoding is distinct from the AST's,
// used e.g. when a downstream signer wants to bind to the full
// manifest rather than just task_id.
func (m TaskManifest) Canonical() map[string]interface{} {
	inputs := make(map[string]interface{}, len(m.Inputs))
	for k, v := range m.Inputs {
		inputs[k] = v
	}
	return map[string]interface{}{
		"task_id":       m.TaskID,
		"capability_id": m.CapabilityID,
		"inputs":        inputs,
		"constraints": map[string]interface{}{
			"scope":        m.Constraints.Scope,
			"reversible":   m.Constraints.Reversible,
			"sensitivity":  string(m.Constraints.Sensitivity),
			"hrc_required": m.Constraints.HRCRequired,
		},
		"provenance": map[string]interface{}{
			"ast_hash": m.Provenance.ASTHash,
		},
	}
}
