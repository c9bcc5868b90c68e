package store

import "errors"

var (
	errArchiveRequired    = errors.New("case archive is required")
	errSummaryRequired    = errors.New("contribution summary is required")
	errHistoryRowRequired = errors.New("employment history row is required")
)
