// Package file implements the FILE executor (spec §4.4.1):
// FILE_MOVE, FILE_COPY, FILE_DELETE over absolute, base-directory-
// confined, symlink-free paths.
package file

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ssbking/personal-digital-authority/pkg/executor"
	"github.com/ssbking/personal-digital-authority/pkg/invariant"
	"github.com/ssbking/personal-digital-authority/pkg/kernelerrors"
	"github.com/ssbking/personal-digital-authority/pkg/lease"
	"github.com/ssbking/personal-digital-authority/pkg/manifest"
)

// RecoveryReference is the opaque handle FILE_DELETE captures so an
// irreversible delete never occurs (spec §4.4.1: "captures recovery
// reference (snapshot or backup handle)").
type RecoveryReference struct {
	BackupPath string
}

// Recorder captures delete recovery references. A host build backs
// this with real snapshot/backup infrastructure; callers that don't
// need recovery can use NopRecorder.
type Recorder interface {
	Backup(ctx context.Context, path string) (RecoveryReference, error)
}

// NopRecorder refuses to back up — pairing it with an executor forces
// FILE_DELETE to fail closed rather than silently skip recovery
// capture.
type NopRecorder struct{}

// Backup always fails.
func (NopRecorder) Backup(ctx context.Context, path string) (RecoveryReference, error) {
	return RecoveryReference{}, os.ErrInvalid
}

// Executor is the FILE capability family.
type Executor struct {
	gate     executor.Gate
	cache    executor.IdempotencyCache
	signer   executor.Signer
	baseDirs []string
	recorder Recorder
}

// New constructs a FILE executor confined to baseDirs.
func New(leaseVerify func(lease.Token) bool, cache executor.IdempotencyCache, signer executor.Signer, baseDirs []string, recorder Recorder) *Executor {
	invariant.NotNil(cache, "cache")
	invariant.NotNil(signer, "signer")
	invariant.Precondition(len(baseDirs) > 0, "at least one allowed base directory is required")

	return &Executor{
		gate: executor.Gate{
			LeaseVerifier: leaseVerify,
			SupportedCapabilities: map[string]bool{
				"FILE_MOVE":   true,
				"FILE_COPY":   true,
				"FILE_DELETE": true,
			},
		},
		cache:    cache,
		signer:   signer,
		baseDirs: baseDirs,
		recorder: recorder,
	}
}

// SupportedCapabilities implements executor.Executor.
func (e *Executor) SupportedCapabilities() []string {
	return []string{"FILE_MOVE", "FILE_COPY", "FILE_DELETE"}
}

// Execute implements executor.Executor. Idempotent on manifest.TaskID:
// a completed task_id's cached signed result is returned verbatim
// without repeating any filesystem side effect.
func (e *Executor) Execute(ctx context.Context, man manifest.TaskManifest, tok lease.Token) executor.Result {
	if cached, ok := e.cache.Get(man.TaskID); ok {
		return cached
	}

	now := time.Now()
	if gateErr := e.gate.Check(man, tok, now); gateErr != nil {
		return e.fail(man, gateErr.Code, gateErr.Message)
	}

	var result executor.Result
	switch man.CapabilityID {
	case "FILE_MOVE":
		result = e.move(ctx, man)
	case "FILE_COPY":
		result = e.copy(ctx, man)
	case "FILE_DELETE":
		result = e.delete(ctx, man)
	default:
		result = e.fail(man, kernelerrors.UnsupportedCapability, "capability not handled by FILE executor")
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

// confine validates path as absolute, UTF-8 (guaranteed by Go strings),
// a descendant of one of the configured base directories, free of ..
// components, and — after resolving symlinks on every existing
// ancestor — still within a base directory and not itself a symlink
// (spec §4.4.1 "Base-directory confinement").
func (e *Executor) confine(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return "", os.ErrInvalid
	}
	clean := filepath.Clean(path)
	if strings.Contains(path, "..") {
		return "", os.ErrInvalid
	}

	var inBase bool
	for _, base := range e.baseDirs {
		rel, err := filepath.Rel(base, clean)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			inBase = true
			break
		}
	}
	if !inBase {
		return "", os.ErrPermission
	}

	if info, err := os.Lstat(clean); err == nil {
		if info.Mode()&os.ModeSymlink != 0 {
			return "", os.ErrInvalid
		}
		resolved, err := filepath.EvalSymlinks(clean)
		if err != nil || resolved != clean {
			return "", os.ErrInvalid
		}
		if !info.Mode().IsRegular() {
			return "", os.ErrInvalid
		}
	} else {
		dir := filepath.Dir(clean)
		if resolved, err := filepath.EvalSymlinks(dir); err != nil || resolved != dir {
			return "", os.ErrInvalid
		}
	}

	return clean, nil
}

func (e *Executor) move(ctx context.Context, man manifest.TaskManifest) executor.Result {
	src, err := e.confine(man.Inputs["source_path"])
	if err != nil {
		return e.fail(man, kernelerrors.ExecutionFailed, "source path rejected: "+err.Error())
	}
	dst, err := e.confine(man.Inputs["destination_path"])
	if err != nil {
		return e.fail(man, kernelerrors.ExecutionFailed, "destination path rejected: "+err.Error())
	}

	if _, statErr := os.Stat(src); statErr != nil {
		return e.fail(man, kernelerrors.ExecutionFailed, "source does not exist")
	}
	if _, statErr := os.Stat(dst); statErr == nil {
		return e.fail(man, kernelerrors.ExecutionFailed, "destination already exists")
	}

	if err := os.Rename(src, dst); err != nil {
		return e.fail(man, kernelerrors.ExecutionFailed, "move failed: "+err.Error())
	}

	output := map[string]interface{}{
		"moved_to": dst,
	}
	if man.Constraints.Reversible {
		output["undo_metadata"] = map[string]interface{}{"original_path": src}
	}
	return e.succeed(man, output)
}

func (e *Executor) copy(ctx context.Context, man manifest.TaskManifest) executor.Result {
	src, err := e.confine(man.Inputs["source_path"])
	if err != nil {
		return e.fail(man, kernelerrors.ExecutionFailed, "source path rejected: "+err.Error())
	}
	dst, err := e.confine(man.Inputs["destination_path"])
	if err != nil {
		return e.fail(man, kernelerrors.ExecutionFailed, "destination path rejected: "+err.Error())
	}

	if _, statErr := os.Stat(src); statErr != nil {
		return e.fail(man, kernelerrors.ExecutionFailed, "source does not exist")
	}
	if _, statErr := os.Stat(dst); statErr == nil {
		return e.fail(man, kernelerrors.ExecutionFailed, "destination already exists")
	}

	if err := copyFile(src, dst); err != nil {
		return e.fail(man, kernelerrors.ExecutionFailed, "copy failed: "+err.Error())
	}

	return e.succeed(man, map[string]interface{}{"copied_to": dst})
}

func (e *Executor) delete(ctx context.Context, man manifest.TaskManifest) executor.Result {
	if !man.Constraints.Reversible {
		return e.fail(man, kernelerrors.ExecutionFailed, "irreversible delete is forbidden")
	}

	target, err := e.confine(man.Inputs["target_path"])
	if err != nil {
		return e.fail(man, kernelerrors.ExecutionFailed, "target path rejected: "+err.Error())
	}
	if _, statErr := os.Stat(target); statErr != nil {
		return e.fail(man, kernelerrors.ExecutionFailed, "target does not exist")
	}

	ref, err := e.recorder.Backup(ctx, target)
	if err != nil {
		return e.fail(man, kernelerrors.ExecutionFailed, "failed to capture recovery reference, refusing to delete")
	}

	if err := os.Remove(target); err != nil {
		return e.fail(man, kernelerrors.ExecutionFailed, "delete failed: "+err.Error())
	}

	return e.succeed(man, map[string]interface{}{
		"undo_metadata": map[string]interface{}{"backup_path": ref.BackupPath},
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
