package invitation

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/agora-platform/agora-api/internal/database"
	"github.com/agora-platform/agora-api/internal/models"
	"github.com/agora-platform/agora-api/internal/repository"
)

// Lifecycle drives a single invitation from pending to accepted, expired or
// deleted.
type Lifecycle struct {
	db          *database.DB
	users       *repository.UserRepository
	memberships *repository.MembershipRepository
	invites     *repository.InviteRepository
	activities  *repository.ActivityRepository
	windowDays  int
	now         func() time.Time
	logger      zerolog.Logger
}

func NewLifecycle(
	db *database.DB,
	users *repository.UserRepository,
	memberships *repository.MembershipRepository,
	invites *repository.InviteRepository,
	activities *repository.ActivityRepository,
	windowDays int,
	logger zerolog.Logger,
) *Lifecycle {
	return &Lifecycle{
		db:          db,
		users:       users,
		memberships: memberships,
		invites:     invites,
		activities:  activities,
		windowDays:  windowDays,
		now:         time.Now,
		logger:      logger.With().Str("component", "invite_lifecycle").Logger(),
	}
}

// FetchResult annotates the invitation for rendering.
type FetchResult struct {
	Invite          models.GroupInvite
	AgeDays         int
	AlreadyResolved bool
}

// Fetch loads the invitation for rendering the invite page. Soft-deleted
// invitations whose invitee still has group access count as already resolved;
// deleted without access and expired ones are gone, with distinct errors.
// Fetching a fresh invitation confirms the invitee's email as a side effect:
// the invite link only ever travels by email.
func (l *Lifecycle) Fetch(ctx context.Context, inviteID, groupID string) (FetchResult, error) {
	invite, err := l.invites.GetByID(ctx, inviteID, groupID)
	if err != nil {
		return FetchResult{}, err
	}
	now := l.now().UTC()
	result := FetchResult{Invite: invite, AgeDays: invite.AgeDays(now)}

	if invite.IsDeleted() {
		if _, err := l.memberships.Get(ctx, groupID, invite.InviteeID); err == nil {
			result.AlreadyResolved = true
			return result, nil
		} else if !errors.Is(err, repository.ErrNotFound) {
			return FetchResult{}, err
		}
		return FetchResult{}, ErrInviteGone
	}

	if invite.IsExpired(now, l.windowDays) {
		return FetchResult{}, ErrInviteExpired
	}

	if err := l.users.MarkEmailVerified(ctx, invite.InviteeID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return FetchResult{}, err
	}
	return result, nil
}

// Accept resolves the invitation for callerID. Existing membership always
// wins: it is upgraded when the invitation carries a strictly higher level
// and returned unchanged otherwise, with no expiry check on that path. Only
// a caller without membership needs the invitation to still be valid.
func (l *Lifecycle) Accept(ctx context.Context, inviteID, groupID, callerID string, actor models.Actor) (models.Membership, error) {
	invite, err := l.invites.GetByID(ctx, inviteID, groupID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Accepting is idempotent with respect to membership state.
			if membership, mErr := l.memberships.Get(ctx, groupID, callerID); mErr == nil {
				return membership, nil
			}
			return models.Membership{}, repository.ErrNotFound
		}
		return models.Membership{}, err
	}

	if invite.InviteeID != callerID {
		return models.Membership{}, ErrNotInvitee
	}

	existing, err := l.memberships.Get(ctx, groupID, callerID)
	switch {
	case err == nil:
		return l.mergeWithExisting(ctx, invite, existing, actor)
	case errors.Is(err, repository.ErrNotFound):
		// fall through to the create path
	default:
		return models.Membership{}, err
	}

	if invite.IsDeleted() {
		return models.Membership{}, ErrInviteGone
	}
	if invite.IsExpired(l.now().UTC(), l.windowDays) {
		return models.Membership{}, ErrInviteExpired
	}

	var membership models.Membership
	err = l.db.InTx(ctx, func(tx *database.Tx) error {
		memberships := l.memberships.WithTx(tx)
		invites := l.invites.WithTx(tx)
		activities := l.activities.WithTx(tx)

		var err error
		membership, err = memberships.Upsert(ctx, groupID, callerID, invite.Level)
		if err != nil {
			return err
		}
		if err := invites.SoftDelete(ctx, inviteID, groupID); err != nil {
			return err
		}
		return activities.RecordAccept(ctx, actor, "group", groupID, "user", invite.InviterID, "accepted group invitation")
	})
	if err != nil {
		return models.Membership{}, err
	}
	return membership, nil
}

// mergeWithExisting handles accept when the caller is already a member.
func (l *Lifecycle) mergeWithExisting(ctx context.Context, invite models.GroupInvite, existing models.Membership, actor models.Actor) (models.Membership, error) {
	if !invite.Level.Above(existing.Level) {
		// Nothing to change; retire the invitation if it still lingers.
		l.retire(ctx, invite)
		return existing, nil
	}

	var updated models.Membership
	err := l.db.InTx(ctx, func(tx *database.Tx) error {
		memberships := l.memberships.WithTx(tx)
		invites := l.invites.WithTx(tx)
		activities := l.activities.WithTx(tx)

		var err error
		updated, err = memberships.UpdateLevel(ctx, invite.GroupID, existing.UserID, invite.Level)
		if err != nil {
			return err
		}
		if !invite.IsDeleted() {
			if err := invites.SoftDelete(ctx, invite.ID, invite.GroupID); err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
		}
		return activities.RecordUpdate(ctx, actor, "membership", existing.UserID, "raised member level from accepted invitation", map[string]string{
			"groupId": invite.GroupID,
			"level":   string(invite.Level),
		})
	})
	if err != nil {
		return models.Membership{}, err
	}
	return updated, nil
}

func (l *Lifecycle) retire(ctx context.Context, invite models.GroupInvite) {
	if invite.IsDeleted() {
		return
	}
	if err := l.invites.SoftDelete(ctx, invite.ID, invite.GroupID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		l.logger.Warn().Err(err).Str("invite_id", invite.ID).Msg("failed to retire resolved invitation")
	}
}

// Delete removes a pending invitation on behalf of a group admin.
func (l *Lifecycle) Delete(ctx context.Context, inviteID, groupID string, actor models.Actor) error {
	return l.db.InTx(ctx, func(tx *database.Tx) error {
		invites := l.invites.WithTx(tx)
		activities := l.activities.WithTx(tx)
		if err := invites.SoftDelete(ctx, inviteID, groupID); err != nil {
			return err
		}
		return activities.RecordDelete(ctx, actor, "groupInvite", inviteID, "deleted group invitation")
	})
}
