// Package staff resolves who may moderate whom. Lookups hit sqlite once and
// are then served from a short TTL cache, including negative results, so the
// message pipeline does not touch the database on every event.
package staff

import (
	"context"
	"errors"
	"time"

	"warden/internal/cache"
	"warden/internal/storage"
)

const (
	memberCacheTTL = 15 * time.Minute
	rolesCacheTTL  = 15 * time.Minute
)

type lookup struct {
	role    storage.StaffRole
	isStaff bool
}

type Service struct {
	store      *storage.Store
	members    *cache.TTL[string, lookup]
	roles      *cache.TTL[string, []storage.StaffRole]
	fullAccess map[string]struct{}
}

func New(store *storage.Store, fullAccessUsers []string) *Service {
	access := make(map[string]struct{}, len(fullAccessUsers))
	for _, id := range fullAccessUsers {
		if id != "" {
			access[id] = struct{}{}
		}
	}
	return &Service{
		store:      store,
		members:    cache.NewTTL[string, lookup](memberCacheTTL),
		roles:      cache.NewTTL[string, []storage.StaffRole](rolesCacheTTL),
		fullAccess: access,
	}
}

// HasFullAccess reports whether the user is on the operator allowlist. Those
// users bypass every permission and priority check.
func (s *Service) HasFullAccess(userID string) bool {
	_, ok := s.fullAccess[userID]
	return ok
}

// Lookup returns the staff role assigned to the user, if any.
func (s *Service) Lookup(ctx context.Context, guildID, userID string) (storage.StaffRole, bool, error) {
	key := guildID + ":" + userID
	if cached, ok := s.members.Get(key); ok {
		return cached.role, cached.isStaff, nil
	}

	member, err := s.store.GetStaffMember(ctx, guildID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.members.Set(key, lookup{})
			return storage.StaffRole{}, false, nil
		}
		return storage.StaffRole{}, false, err
	}

	role, err := s.store.GetStaffRole(ctx, member.RoleID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Role was deleted out from under the member row.
			s.members.Set(key, lookup{})
			return storage.StaffRole{}, false, nil
		}
		return storage.StaffRole{}, false, err
	}

	s.members.Set(key, lookup{role: role, isStaff: true})
	return role, true, nil
}

func (s *Service) IsStaff(ctx context.Context, guildID, userID string) (bool, error) {
	_, ok, err := s.Lookup(ctx, guildID, userID)
	return ok, err
}

// HasPermission checks a single permission string against the user's staff
// role. Full-access users always pass.
func (s *Service) HasPermission(ctx context.Context, guildID, userID, permission string) (bool, error) {
	if s.HasFullAccess(userID) {
		return true, nil
	}
	role, ok, err := s.Lookup(ctx, guildID, userID)
	if err != nil || !ok {
		return false, err
	}
	return role.HasPermission(permission), nil
}

// Outranks reports whether actor may act on target. Non-staff targets are
// always outranked; between staff, a strictly lower priority number wins.
func (s *Service) Outranks(ctx context.Context, guildID, actorID, targetID string) (bool, error) {
	if s.HasFullAccess(actorID) {
		return true, nil
	}
	targetRole, targetIsStaff, err := s.Lookup(ctx, guildID, targetID)
	if err != nil {
		return false, err
	}
	if !targetIsStaff {
		return true, nil
	}
	actorRole, actorIsStaff, err := s.Lookup(ctx, guildID, actorID)
	if err != nil || !actorIsStaff {
		return false, err
	}
	return actorRole.Priority < targetRole.Priority, nil
}

// Limits returns the action limits for the user's role. The zero value means
// no limits apply.
func (s *Service) Limits(ctx context.Context, guildID, userID string) (storage.ActionLimits, error) {
	if s.HasFullAccess(userID) {
		return storage.ActionLimits{}, nil
	}
	role, ok, err := s.Lookup(ctx, guildID, userID)
	if err != nil || !ok {
		return storage.ActionLimits{}, err
	}
	return role.Limits, nil
}

func (s *Service) Roles(ctx context.Context, guildID string) ([]storage.StaffRole, error) {
	if roles, ok := s.roles.Get(guildID); ok {
		return roles, nil
	}
	roles, err := s.store.ListStaffRoles(ctx, guildID)
	if err != nil {
		return nil, err
	}
	s.roles.Set(guildID, roles)
	return roles, nil
}

// Invalidate drops the cached lookup for one user. Called after staff
// assignment changes.
func (s *Service) Invalidate(guildID, userID string) {
	s.members.Delete(guildID + ":" + userID)
}

func (s *Service) InvalidateRoles(guildID string) {
	s.roles.Delete(guildID)
}

// InvalidateGuild flushes every cached lookup. Role edits and deletions
// change the resolution of every member bound to the role, so per-user
// invalidation is not enough.
func (s *Service) InvalidateGuild(guildID string) {
	s.members.Clear()
	s.roles.Delete(guildID)
}
