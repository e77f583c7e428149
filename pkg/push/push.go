// Package push delivers reminder notifications through an external
// provider. Delivery failures are reported in the Result and never retried
// here; the caller decides what a failed send means.
package push

import "context"

// Result is the outcome of one send attempt. ErrCode and ErrMsg carry the
// provider's error envelope when Success is false.
type Result struct {
	Success bool
	ErrCode int
	ErrMsg  string
}

// Sender sends one notification to one recipient. data maps template field
// names to already-clipped string values. Implementations must be safe for
// concurrent use and must be idempotent-safe to call repeatedly.
type Sender interface {
	Send(ctx context.Context, recipient string, data map[string]string) Result
}
