package gobridge

import "github.com/agiangrant/gobridge/internal/bridgeerr"

// Error is the structured error returned by the bridge.
// This is a re-export of bridgeerr.Error for consumer convenience.
type Error = bridgeerr.Error

// ErrorKind categorizes an Error.
// This is a re-export of bridgeerr.Kind for consumer convenience.
type ErrorKind = bridgeerr.Kind

const (
	KindModuleLoad         = bridgeerr.KindModuleLoad
	KindExportNotFound     = bridgeerr.KindExportNotFound
	KindBackendUnavailable = bridgeerr.KindBackendUnavailable
	KindInvalidArgument    = bridgeerr.KindInvalidArgument
	KindNativeFailure      = bridgeerr.KindNativeFailure
)

// Sentinels for errors.Is checks.
var (
	ErrModuleLoad         = bridgeerr.ErrModuleLoad
	ErrExportNotFound     = bridgeerr.ErrExportNotFound
	ErrBackendUnavailable = bridgeerr.ErrBackendUnavailable
	ErrInvalidArgument    = bridgeerr.ErrInvalidArgument
	ErrNativeFailure      = bridgeerr.ErrNativeFailure
)
