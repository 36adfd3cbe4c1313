package network

import (
	"context"
	"errors"

	"github.com/aws/smithy-go"
)

// Client-fault codes that are still worth retrying.
var transientCodes = map[string]struct{}{
	"RequestTimeout":           {},
	"RequestTimeoutException":  {},
	"Throttling":               {},
	"ThrottlingException":      {},
	"SlowDown":                 {},
	"TooManyRequestsException": {},
}

// Transient reports whether an upload error is worth retrying.
// Server faults and transport-level failures (timeouts, resets) are transient;
// client faults such as authorization denials or payload rejections are not.
func Transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiError smithy.APIError
	if errors.As(err, &apiError) {
		if _, ok := transientCodes[apiError.ErrorCode()]; ok {
			return true
		}
		return apiError.ErrorFault() == smithy.FaultServer
	}

	return true
}
