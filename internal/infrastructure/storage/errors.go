package storage

import "errors"

var (
	// ErrBucketRequired is returned when no bucket is configured
	ErrBucketRequired = errors.New("storage: bucket is required")
	// ErrIncompleteCredentials is returned when only one of the access key pair is set
	ErrIncompleteCredentials = errors.New("storage: access key id and secret access key must be set together")
	// ErrReportNotFound is returned by Load for a missing object
	ErrReportNotFound = errors.New("storage: batch report not found")
)
