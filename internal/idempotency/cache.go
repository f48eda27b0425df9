// Package idempotency provides the opaque, task_id-keyed store of
// prior signed ExecutionResults executors consult to satisfy spec
// §4.4's idempotency requirement. Encoding is CBOR (fxamacker/cbor),
// deliberately independent of the canonical JSON hash/signature path
// in pkg/canonical — this is a storage format, not an input to any
// hash or signature.
package idempotency

import (
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/ssbking/personal-digital-authority/pkg/executor"
	"github.com/ssbking/personal-digital-authority/pkg/kernelerrors"
)

// record is the CBOR-serializable mirror of executor.Result.
type record struct {
	TaskID       string
	CapabilityID string
	Status       string
	Output       map[string]interface{} `cbor:",omitempty"`
	ErrorCode    string                  `cbor:",omitempty"`
	ErrorMessage string                  `cbor:",omitempty"`
	Signature    []byte
}

func toRecord(r executor.Result) record {
	rec := record{
		TaskID:       r.TaskID,
		CapabilityID: r.CapabilityID,
		Status:       string(r.Status),
		Output:       r.Output,
		Signature:    r.Signature,
	}
	if r.Error != nil {
		rec.ErrorCode = string(r.Error.Code)
		rec.ErrorMessage = r.Error.Message
	}
	return rec
}

func fromRecord(rec record) executor.Result {
	r := executor.Result{
		TaskID:       rec.TaskID,
		CapabilityID: rec.CapabilityID,
		Status:       executor.Status(rec.Status),
		Output:       rec.Output,
		Signature:    rec.Signature,
	}
	if rec.ErrorCode != "" {
		r.Error = &executor.ExecutionError{Code: kernelerrors.Code(rec.ErrorCode), Message: rec.ErrorMessage}
	}
	return r
}

// MemoryCache is an in-process IdempotencyCache. Production
// deployments would persist the CBOR-encoded record to a durable
// opaque store keyed by task_id; this reference implementation keeps
// the encoded bytes in memory to exercise the same (de)serialization
// path without requiring a filesystem.
type MemoryCache struct {
	mu    sync.RWMutex
	store map[string][]byte
}

// NewMemoryCache constructs an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{store: make(map[string][]byte)}
}

// Get implements executor.IdempotencyCache.
func (c *MemoryCache) Get(taskID string) (executor.Result, bool) {
	c.mu.RLock()
	data, ok := c.store[taskID]
	c.mu.RUnlock()
	if !ok {
		return executor.Result{}, false
	}

	var rec record
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return executor.Result{}, false
	}
	return fromRecord(rec), true
}

// Put implements executor.IdempotencyCache.
func (c *MemoryCache) Put(taskID string, result executor.Result) {
	data, err := cbor.Marshal(toRecord(result))
	if err != nil {
		return
	}
	c.mu.Lock()
	c.store[taskID] = data
	c.mu.Unlock()
}
