// Package queue dispatches verification emails off the request path.
package queue

import "context"

// VerificationSender delivers a verification email for token to an address.
type VerificationSender interface {
	SendVerification(ctx context.Context, to, token string) error
}
