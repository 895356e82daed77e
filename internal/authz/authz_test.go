package authz

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ashita-ai/quire/internal/auth"
	"github.com/ashita-ai/quire/internal/model"
	"github.com/ashita-ai/quire/internal/storage"
)

// countingLookup knows a fixed set of organizations and counts lookups.
type countingLookup struct {
	mu    sync.Mutex
	known map[uuid.UUID]bool
	err   error
	calls int
}

func (l *countingLookup) GetOrganization(_ context.Context, id uuid.UUID) (model.Organization, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return model.Organization{}, l.err
	}
	if !l.known[id] {
		return model.Organization{}, storage.ErrNotFound
	}
	return model.Organization{ID: id, Name: "Press " + id.String()[:4]}, nil
}

func (l *countingLookup) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func TestCheckOrgAccess(t *testing.T) {
	home, other, missing := uuid.New(), uuid.New(), uuid.New()
	orgs := &countingLookup{known: map[uuid.UUID]bool{home: true, other: true}}
	ctx := context.Background()

	reader := &auth.Claims{OrgID: home, Role: model.RoleReader}
	admin := &auth.Claims{OrgID: home, Role: model.RoleAdmin}

	assert.NoError(t, CheckOrgAccess(ctx, reader, home, orgs))
	assert.ErrorIs(t, CheckOrgAccess(ctx, reader, other, orgs), ErrForbidden)
	assert.ErrorIs(t, CheckOrgAccess(ctx, nil, home, orgs), ErrUnauthenticated)

	assert.NoError(t, CheckOrgAccess(ctx, admin, other, orgs))
	assert.ErrorIs(t, CheckOrgAccess(ctx, admin, missing, orgs), storage.ErrNotFound)

	// A forbidden org is rejected without touching storage.
	before := orgs.count()
	_ = CheckOrgAccess(ctx, reader, missing, orgs)
	assert.Equal(t, before, orgs.count())
}

func TestCheckOrgAccess_LookupFailure(t *testing.T) {
	home := uuid.New()
	boom := errors.New("pool closed")
	orgs := &countingLookup{err: boom}

	err := CheckOrgAccess(context.Background(), &auth.Claims{OrgID: home, Role: model.RoleReader}, home, orgs)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, storage.ErrNotFound)
}
