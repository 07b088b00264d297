// Package access defines the authorization collaborator that issues scoped
// access tokens for an owner (tenant/group). Handlers request a token before
// acting on another owner's behalf and propagate it to outbound calls.
package access

import (
	"context"
	"fmt"
)

// Issuer hands out an access token scoped to the given owner.
type Issuer interface {
	RequestAccess(ctx context.Context, ownerID string) (string, error)
}

// StaticIssuer issues the configured service credential for every owner.
// It backs local wiring where a real token service is not reachable.
type StaticIssuer struct {
	ServiceToken string
}

func (s StaticIssuer) RequestAccess(ctx context.Context, ownerID string) (string, error) {
	if s.ServiceToken == "" {
		return "", fmt.Errorf("no service token configured, can not issue access for owner %s", ownerID)
	}
	return s.ServiceToken, nil
}
