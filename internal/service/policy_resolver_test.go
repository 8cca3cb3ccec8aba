package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-engine/pkg/util/errorutil"
)

func TestPolicyResolver_Hierarchy(t *testing.T) {
	f := newFixture(t)
	f.addClient("acme")
	f.addBoard("support", nil)
	catalog := NewPolicyCatalog(f.deps)
	resolver := NewPolicyResolver(f.deps)
	ctx := context.Background()

	a, err := catalog.CreatePolicy(ctx, tenant, PolicyInput{Name: "A"})
	require.NoError(t, err)
	b, err := catalog.CreatePolicy(ctx, tenant, PolicyInput{Name: "B"})
	require.NoError(t, err)
	c, err := catalog.CreatePolicy(ctx, tenant, PolicyInput{Name: "C", MakeDefault: true})
	require.NoError(t, err)
	require.NoError(t, catalog.AssignClientPolicy(ctx, tenant, "acme", &a.Policy.ID))
	require.NoError(t, catalog.AssignBoardPolicy(ctx, tenant, "support", &b.Policy.ID))

	client, board := ptr("acme"), ptr("support")

	resolved, err := resolver.Resolve(ctx, tenant, client, board)
	require.NoError(t, err)
	assert.Equal(t, a.Policy.ID, resolved.Policy.ID)
	assert.Equal(t, PolicyFromClient, resolved.Source)

	require.NoError(t, catalog.AssignClientPolicy(ctx, tenant, "acme", nil))
	resolved, err = resolver.Resolve(ctx, tenant, client, board)
	require.NoError(t, err)
	assert.Equal(t, b.Policy.ID, resolved.Policy.ID)
	assert.Equal(t, PolicyFromBoard, resolved.Source)

	require.NoError(t, catalog.AssignBoardPolicy(ctx, tenant, "support", nil))
	resolved, err = resolver.Resolve(ctx, tenant, client, board)
	require.NoError(t, err)
	assert.Equal(t, c.Policy.ID, resolved.Policy.ID)
	assert.Equal(t, PolicyFromDefault, resolved.Source)
}

func TestPolicyResolver_NoPolicyAnywhere(t *testing.T) {
	f := newFixture(t)
	resolver := NewPolicyResolver(f.deps)

	resolved, err := resolver.Resolve(context.Background(), tenant, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, resolved)
}

func TestPolicyResolver_UnknownClient(t *testing.T) {
	f := newFixture(t)
	resolver := NewPolicyResolver(f.deps)

	_, err := resolver.Resolve(context.Background(), tenant, ptr("ghost"), nil)
	assert.True(t, errorutil.IsNotFound(err))
}

func TestPolicyResolver_SkipsDanglingAssignment(t *testing.T) {
	f := newFixture(t)
	f.store.state.clients["acme"] = ptr("deleted-policy")
	catalog := NewPolicyCatalog(f.deps)
	resolver := NewPolicyResolver(f.deps)
	ctx := context.Background()

	fallback, err := catalog.CreatePolicy(ctx, tenant, PolicyInput{Name: "Fallback", MakeDefault: true})
	require.NoError(t, err)

	resolved, err := resolver.Resolve(ctx, tenant, ptr("acme"), nil)
	require.NoError(t, err)
	assert.Equal(t, fallback.Policy.ID, resolved.Policy.ID)
	assert.Equal(t, PolicyFromDefault, resolved.Source)
}
