// Package common defines the sentinel errors shared across the backup
// engine's layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// ErrNotFound is returned when a record or blob does not exist.
	ErrNotFound = errors.New("not found")

	// ErrTransportUnavailable marks a recoverable failure to reach remote
	// storage. Operations surface it as a soft failure and the scheduler
	// retries on its next cycle; nothing blocks or retries at this level.
	ErrTransportUnavailable = errors.New("remote storage unavailable")

	// ErrDecompressionUnavailable is returned when a blob is in compressed
	// form but the configured codec cannot inflate it. Fatal for that one
	// restore or download attempt.
	ErrDecompressionUnavailable = errors.New("decompression unavailable")

	// ErrInvalidSnapshot marks a structurally invalid snapshot document
	// (missing version or data). Fatal for the whole import.
	ErrInvalidSnapshot = errors.New("invalid snapshot format")

	// ErrBucketPrivilege marks a bucket create/verify failure caused by
	// insufficient permissions. Non-fatal: uploads proceed optimistically.
	ErrBucketPrivilege = errors.New("insufficient bucket privileges")
)
