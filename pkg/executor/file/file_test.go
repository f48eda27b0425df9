package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssbking/personal-digital-authority/internal/idempotency"
	"github.com/ssbking/personal-digital-authority/pkg/executor"
	"github.com/ssbking/personal-digital-authority/pkg/executor/file"
	"github.com/ssbking/personal-digital-authority/pkg/kernelerrors"
	"github.com/ssbking/personal-digital-authority/pkg/lease"
	"github.com/ssbking/personal-digital-authority/pkg/manifest"
)

type nopSigner struct{}

func (nopSigner) Sign(msg []byte) []byte { return []byte("sig") }

func alwaysGrantedLease() func(lease.Token) bool {
	return func(lease.Token) bool { return true }
}

func liveToken(taskID string) lease.Token {
	return lease.Token{TaskID: taskID, ExpiresAt: time.Now().Add(time.Minute).UnixMilli()}
}

func newExecutor(t *testing.T, baseDir string, recorder file.Recorder) *file.Executor {
	t.Helper()
	return file.New(alwaysGrantedLease(), idempotency.NewMemoryCache(), nopSigner{}, []string{baseDir}, recorder)
}

func moveManifest(src, dst string, reversible bool) manifest.TaskManifest {
	return manifest.TaskManifest{
		TaskID:       "move-" + src,
		CapabilityID: "FILE_MOVE",
		Inputs:       map[string]string{"source_path": src, "destination_path": dst},
		Constraints:  manifest.Constraints{Reversible: reversible},
	}
}

func TestExecute_MoveSucceedsAndEmitsUndoMetadataWhenReversible(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "doc.txt")
	dst := filepath.Join(dir, "moved.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o600))

	exec := newExecutor(t, dir, file.NopRecorder{})
	man := moveManifest(src, dst, true)

	result := exec.Execute(context.Background(), man, liveToken(man.TaskID))

	require.Equal(t, executor.StatusSuccess, result.Status)
	assert.Equal(t, dst, result.Output["moved_to"])
	undo, ok := result.Output["undo_metadata"].(map[string]interface{})
	require.True(t, ok, "expected undo_metadata in output")
	assert.Equal(t, src, undo["original_path"])

	_, statErr := os.Stat(dst)
	assert.NoError(t, statErr)
	_, statErr = os.Stat(src)
	assert.True(t, os.IsNotExist(statErr))
}

func TestExecute_MoveOmitsUndoMetadataWhenNotReversible(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "doc.txt")
	dst := filepath.Join(dir, "moved.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o600))

	exec := newExecutor(t, dir, file.NopRecorder{})
	man := moveManifest(src, dst, false)

	result := exec.Execute(context.Background(), man, liveToken(man.TaskID))

	require.Equal(t, executor.StatusSuccess, result.Status)
	_, hasUndo := result.Output["undo_metadata"]
	assert.False(t, hasUndo)
}

func TestExecute_PathOutsideBaseDirectoryIsRejected(t *testing.T) {
	dir := t.TempDir()
	outside := filepath.Join(os.TempDir(), "not-in-base.txt")

	exec := newExecutor(t, dir, file.NopRecorder{})
	man := moveManifest(outside, filepath.Join(dir, "dst.txt"), true)

	result := exec.Execute(context.Background(), man, liveToken(man.TaskID))

	require.Equal(t, executor.StatusFailure, result.Status)
	assert.Equal(t, kernelerrors.ExecutionFailed, result.Error.Code)
}

func TestExecute_IrreversibleDeleteIsRefusedByExecutor(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(target, []byte("hello"), 0o600))

	exec := newExecutor(t, dir, file.NopRecorder{})
	man := manifest.TaskManifest{
		TaskID:       "del-1",
		CapabilityID: "FILE_DELETE",
		Inputs:       map[string]string{"target_path": target},
		Constraints:  manifest.Constraints{Reversible: false},
	}

	result := exec.Execute(context.Background(), man, liveToken(man.TaskID))

	require.Equal(t, executor.StatusFailure, result.Status)
	_, statErr := os.Stat(target)
	assert.NoError(t, statErr, "target must still exist — delete must not have run")
}

type stubRecorder struct {
	path string
}

func (r *stubRecorder) Backup(ctx context.Context, path string) (file.RecoveryReference, error) {
	r.path = path
	return file.RecoveryReference{BackupPath: path + ".bak"}, nil
}

func TestExecute_ReversibleDeleteCapturesRecoveryReferenceBeforeRemoving(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(target, []byte("hello"), 0o600))

	rec := &stubRecorder{}
	exec := newExecutor(t, dir, rec)
	man := manifest.TaskManifest{
		TaskID:       "del-2",
		CapabilityID: "FILE_DELETE",
		Inputs:       map[string]string{"target_path": target},
		Constraints:  manifest.Constraints{Reversible: true},
	}

	result := exec.Execute(context.Background(), man, liveToken(man.TaskID))

	require.Equal(t, executor.StatusSuccess, result.Status)
	assert.Equal(t, target, rec.path)
	_, statErr := os.Stat(target)
	assert.True(t, os.IsNotExist(statErr))
}

func TestExecute_FailedBackupLeavesFileInPlace(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(target, []byte("hello"), 0o600))

	exec := newExecutor(t, dir, file.NopRecorder{})
	man := manifest.TaskManifest{
		TaskID:       "del-3",
		CapabilityID: "FILE_DELETE",
		Inputs:       map[string]string{"target_path": target},
		Constraints:  manifest.Constraints{Reversible: true},
	}

	result := exec.Execute(context.Background(), man, liveToken(man.TaskID))

	require.Equal(t, executor.StatusFailure, result.Status)
	_, statErr := os.Stat(target)
	assert.NoError(t, statErr, "target must survive a failed-backup delete attempt")
}

func TestExecute_ReExecutionOfSameTaskIDIsIdempotentAndDoesNotRepeatSideEffect(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "doc.txt")
	dst := filepath.Join(dir, "copy.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o600))

	exec := newExecutor(t, dir, file.NopRecorder{})
	man := manifest.TaskManifest{
		TaskID:       "copy-1",
		CapabilityID: "FILE_COPY",
		Inputs:       map[string]string{"source_path": src, "destination_path": dst},
		Constraints:  manifest.Constraints{Reversible: true},
	}
	tok := liveToken(man.TaskID)

	first := exec.Execute(context.Background(), man, tok)
	require.Equal(t, executor.StatusSuccess, first.Status)

	require.NoError(t, os.Remove(dst)) // simulate the copy having been undone out-of-band

	second := exec.Execute(context.Background(), man, tok)

	assert.Equal(t, first, second)
	_, statErr := os.Stat(dst)
	assert.True(t, os.IsNotExist(statErr), "a cached re-execution must not repeat the filesystem copy")
}

func TestExecute_SymlinkTargetIsRejected(t *testing.T) {
	dir := t.TempDir()
	real := filepath.Join(dir, "real.txt")
	link := filepath.Join(dir, "link.txt")
	require.NoError(t, os.WriteFile(real, []byte("hello"), 0o600))
	require.NoError(t, os.Symlink(real, link))

	exec := newExecutor(t, dir, file.NopRecorder{})
	man := moveManifest(link, filepath.Join(dir, "dst.txt"), true)

	result := exec.Execute(context.Background(), man, liveToken(man.TaskID))

	require.Equal(t, executor.StatusFailure, result.Status)
	assert.Equal(t, kernelerrors.ExecutionFailed, result.Error.Code)
}
