package backup

import "errors"

var (
	// ErrInvalidManifest indicates the manifest is missing or malformed.
	ErrInvalidManifest = errors.New("invalid or missing manifest")

	// ErrVersionMismatch indicates the archive version is not supported.
	ErrVersionMismatch = errors.New("archive version not supported")

	// ErrCorruptedArchive indicates the archive failed integrity checks.
	ErrCorruptedArchive = errors.New("archive integrity check failed")
)
