package data

import (
	"errors"
	"fmt"
	"sync"
)

// Standard errors that Storage implementations should use.
var (
	// Path resolution errors
	ErrInvalidPath        = errors.New("aclsync: invalid path detected")
	ErrNotExist           = errors.New("aclsync: path does not exist")
	ErrExist              = errors.New("aclsync: path already exists")
	ErrNotDirectory       = errors.New("aclsync: not a directory")
	ErrContainerNotExist  = errors.New("aclsync: container does not exist")
	ErrInvalidContainer   = errors.New("aclsync: invalid container name")
	ErrBackendUnsupported = errors.New("aclsync: backend capability unsupported")

	// Backend address errors
	ErrMalformedBackendAddress       = errors.New("aclsync: malformed backend address")
	ErrUnknownBackendProtocolAddress = errors.New("aclsync: unknown backend protocol")

	// ACL errors
	ErrInvalidEntry      = errors.New("aclsync: invalid acl entry")
	ErrInvalidObjectType = errors.New("aclsync: invalid acl object type")
	ErrDefaultAclOnFile  = errors.New("aclsync: default acl not allowed on files")
)

// RetriesExhaustedError is returned once every attempt of a storage
// operation failed. Err holds the failure of the last attempt.
type RetriesExhaustedError struct {
	Op      string
	Retries int
	Err     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("aclsync: maximum %d retries exceeded for '%s': %v", e.Retries, e.Op, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.Err
}

type Errors struct {
	mu     sync.RWMutex
	errors []error
}

func (e *Errors) Add(err error) {
	if err == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.errors = append(e.errors, err)
}

func (e *Errors) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.errors = make([]error, 0)
}

func (e *Errors) Errors() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.errors) == 0 {
		return nil
	}

	return errors.Join(e.errors...)
}
