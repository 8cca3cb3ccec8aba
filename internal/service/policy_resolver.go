package service

import (
	"context"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/repository"
)

// PolicySource names the level of the hierarchy a policy was resolved from.
type PolicySource string

const (
	PolicyFromClient  PolicySource = "client"
	PolicyFromBoard   PolicySource = "board"
	PolicyFromDefault PolicySource = "tenant_default"
)

// ResolvedPolicy is the effective policy and where it came from.
type ResolvedPolicy struct {
	Policy domain.SlaPolicy
	Source PolicySource
}

// PolicyResolver picks the effective policy for a ticket context:
// client override, then board override, then tenant default.
type PolicyResolver struct {
	deps Dependencies
}

// NewPolicyResolver constructs the resolver.
func NewPolicyResolver(deps Dependencies) *PolicyResolver {
	return &PolicyResolver{deps: deps}
}

// Resolve returns nil when no level yields a policy; callers treat that as "no SLA".
// Unknown client or board ids are NotFound.
func (r *PolicyResolver) Resolve(ctx context.Context, tenantID string, clientID, boardID *string) (*ResolvedPolicy, error) {
	return resolvePolicy(ctx, r.deps.Store.Repositories(), tenantID, clientID, boardID)
}

func resolvePolicy(ctx context.Context, repos repository.Repositories, tenantID string, clientID, boardID *string) (*ResolvedPolicy, error) {
	if clientID != nil {
		policyID, err := repos.Directory.ClientPolicyID(ctx, tenantID, *clientID)
		if err != nil {
			return nil, notFound(err, "client", *clientID)
		}
		if resolved, err := loadResolved(ctx, repos, tenantID, policyID, PolicyFromClient); resolved != nil || err != nil {
			return resolved, err
		}
	}
	if boardID != nil {
		policyID, err := repos.Directory.BoardPolicyID(ctx, tenantID, *boardID)
		if err != nil {
			return nil, notFound(err, "board", *boardID)
		}
		if resolved, err := loadResolved(ctx, repos, tenantID, policyID, PolicyFromBoard); resolved != nil || err != nil {
			return resolved, err
		}
	}
	policy, err := optional(repos.Policies.GetDefault(ctx, tenantID))
	if err != nil || policy == nil {
		return nil, err
	}
	return &ResolvedPolicy{Policy: *policy, Source: PolicyFromDefault}, nil
}

// loadResolved skips assignments that point at a policy which no longer exists.
func loadResolved(ctx context.Context, repos repository.Repositories, tenantID string, policyID *string, source PolicySource) (*ResolvedPolicy, error) {
	if policyID == nil {
		return nil, nil
	}
	policy, err := optional(repos.Policies.GetByID(ctx, tenantID, *policyID))
	if err != nil || policy == nil {
		return nil, err
	}
	return &ResolvedPolicy{Policy: *policy, Source: source}, nil
}
