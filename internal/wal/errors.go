package wal

import "errors"

var (
	errShortHeader      = errors.New("wal: truncated header")
	errUnknownHeaderTag = errors.New("wal: unknown header variant")
	errBadSignature     = errors.New("wal: missing segment signature")
	errHeaderTooLarge   = errors.New("wal: header exceeds safety cap")
	errContentTooLarge  = errors.New("wal: content exceeds safety cap")
	errTooManyRecords   = errors.New("wal: segment exceeds max record count")
)
