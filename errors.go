package tdigest

import "github.com/zeebo/errs/v2"

// Error classes returned by the digest. Match them with errors.Is.
const (
	InvalidArgument errs.Tag = "invalid argument"
	OutOfRange      errs.Tag = "out of range"
)
