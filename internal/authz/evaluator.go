package authz

import (
	"context"

	"github.com/pkg/errors"

	"github.com/agora-platform/agora-api/internal/models"
	"github.com/agora-platform/agora-api/internal/repository"
)

// Options tune a single permission check.
type Options struct {
	// AllowPublicRead admits any caller when the group is public.
	AllowPublicRead bool
	// SubjectID is the resolved id of the membership record the request acts
	// on. When it equals the caller's id the check passes regardless of
	// level, so members can act on their own record (leave a group, read
	// their own membership).
	SubjectID string
}

// Evaluator answers group permission questions. It is side-effect-free and
// fails closed: a missing or deleted group is simply "not allowed".
type Evaluator struct {
	groups      *repository.GroupRepository
	memberships *repository.MembershipRepository
}

func NewEvaluator(groups *repository.GroupRepository, memberships *repository.MembershipRepository) *Evaluator {
	return &Evaluator{groups: groups, memberships: memberships}
}

// Can reports whether callerID may act on the group at the required level.
func (e *Evaluator) Can(ctx context.Context, groupID, callerID string, required models.MemberLevel, opts Options) (bool, error) {
	group, err := e.groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if opts.SubjectID != "" && callerID != "" && opts.SubjectID == callerID {
		return true, nil
	}
	if opts.AllowPublicRead && group.Visibility == models.GroupVisibilityPublic {
		return true, nil
	}
	if callerID == "" {
		return false, nil
	}

	membership, err := e.memberships.Get(ctx, groupID, callerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return membership.Level.AtLeast(required), nil
}
