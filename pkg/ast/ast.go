// Package ast defines the typed tree produced by the DSL validator
// (spec §3, §4.1). An AST is closed-world: every enumerated field is
// drawn from a fixed set, and the validator never emits a value outside
// it.
package ast

import "github.com/ssbking/personal-digital-authority/pkg/canonical"

// SubjectType is the closed set of DSL subject tags.
type SubjectType string

const (
	SubjectUser   SubjectType = "USER"
	SubjectSystem SubjectType = "SYSTEM"
)

// VerbClass is the closed set of DSL verb classes.
type VerbClass string

const (
	VerbMutate      VerbClass = "MUTATE"
	VerbTransform   VerbClass = "TRANSFORM"
	VerbDisseminate VerbClass = "DISSEMINATE"
)

// ObjectType is the closed set of DSL object tags.
type ObjectType string

const (
	ObjectFile    ObjectType = "FILE"
	ObjectFolder  ObjectType = "FOLDER"
	ObjectEmail   ObjectType = "EMAIL"
	ObjectDataset ObjectType = "DATASET"
	ObjectDevice  ObjectType = "DEVICE"
)

// Sensitivity is the closed set of metadata sensitivity levels.
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "LOW"
	SensitivityMedium Sensitivity = "MEDIUM"
	SensitivityHigh   Sensitivity = "HIGH"
)

// Position is a source location (line and column). The lexer and parser
// track positions with their own types and the validator reports them
// through kernelerrors.Error; nothing in this module fills in a Position.
type Position struct {
	Line   int
	Column int
}

// Subject is the SUBJECT(type, id) block.
type Subject struct {
	Type SubjectType
	ID   string
}

// Verb is the VERB(class, action) block.
type Verb struct {
	Class  VerbClass
	Action string
}

// Object is the OBJECT(type, id) block.
type Object struct {
	Type ObjectType
	ID   string
}

// Metadata is the META(scope, reversible, sensitivity, hrc_required)
// block. All four fields are mandatory; there are no defaults.
type Metadata struct {
	Scope       string
	Reversible  bool
	Sensitivity Sensitivity
	HRCRequired bool
}

// AST is the product of a successful validation: exactly one Subject,
// one Verb, one Object, and one Metadata block, each in normalized
// (canonical-spelling) form.
type AST struct {
	Subject  Subject
	Verb     Verb
	Object   Object
	Metadata Metadata
}

// Canonical returns the generic value tree used as the sole input to
// canonical.Encode/Hash — object keys are whatever canonical.Encode
// sorts them to; this function only needs to describe the AST's
// content, not its ordering.
func (a AST) Canonical() map[string]interface{} {
	return map[string]interface{}{
		"subject": map[string]interface{}{
			"type": string(a.Subject.Type),
			"id":   a.Subject.ID,
		},
		"verb": map[string]interface{}{
			"class":  string(a.Verb.Class),
			"action": a.Verb.Action,
		},
		"object": map[string]interface{}{
			"type": string(a.Object.Type),
			"id":   a.Object.ID,
		},
		"metadata": map[string]interface{}{
			"scope":        a.Metadata.Scope,
			"reversible":   a.Metadata.Reversible,
			"sensitivity":  string(a.Metadata.Sensitivity),
			"hrc_required": a.Metadata.HRCRequired,
		},
	}
}

// CanonicalBytes returns the canonical JSON byte encoding of the AST.
func (a AST) CanonicalBytes() ([]byte, error) {
	return canonical.Encode(a.Canonical())
}

// Hash returns the lower-case hex SHA-256 of the AST's canonical
// encoding, used as provenance.ast_hash by the compiler.
func (a AST) Hash() (string, error) {
	return canonical.Hash(a.Canonical())
}
