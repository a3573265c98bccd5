package domain

import "errors"

var (
	ErrNotFound            = errors.New("resource not found")
	ErrProfileNotFound     = errors.New("bank profile not found")
	ErrFlagNotFound        = errors.New("feature flag not found")
	ErrStrategyNotFound    = errors.New("fallback strategy not found")
	ErrInvalidProfile      = errors.New("bank profile is invalid")
	ErrInvalidFlag         = errors.New("feature flag configuration is invalid")
	ErrInvalidStrategy     = errors.New("fallback configuration is invalid")
	ErrNoCatchAllStrategy  = errors.New("fallback configuration must keep an enabled strategy without conditions")
	ErrUnsupportedFormat   = errors.New("unsupported format")
	ErrSnapshotNotFound    = errors.New("configuration snapshot not found")
	ErrPersistenceDisabled = errors.New("persistence is not configured")
	ErrNoParserEngine      = errors.New("no parser engine registered")
)
