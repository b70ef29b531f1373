package invitation

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/agora-platform/agora-api/internal/database"
	"github.com/agora-platform/agora-api/internal/models"
	"github.com/agora-platform/agora-api/internal/notification"
	"github.com/agora-platform/agora-api/internal/repository"
	"github.com/agora-platform/agora-api/internal/validate"
)

// InviteRequest is one entry of an inbound invite batch. Identity is either
// an email address or a user id; anything else is dropped with a warning.
type InviteRequest struct {
	Identity string
	Level    models.MemberLevel
	Language string
}

// Result is what a reconciled batch produced. Only genuinely created
// invitations are in Created; pure membership upgrades are reported
// separately and are not part of the response payload.
type Result struct {
	Created  []models.GroupInvite
	Upgraded []models.Membership
	Dropped  []string
}

// Reconciler turns an invite batch into persisted invitations: it resolves
// identities (creating placeholder accounts for unknown emails), drops the
// inviter and invalid entries, upgrades existing members instead of
// re-inviting them, and persists everything in one transaction. The invite
// emails go out only after that transaction commits.
type Reconciler struct {
	db          *database.DB
	users       *repository.UserRepository
	groups      *repository.GroupRepository
	memberships *repository.MembershipRepository
	invites     *repository.InviteRepository
	activities  *repository.ActivityRepository
	mailer      notification.InviteMailer
	logger      zerolog.Logger
}

func NewReconciler(
	db *database.DB,
	users *repository.UserRepository,
	groups *repository.GroupRepository,
	memberships *repository.MembershipRepository,
	invites *repository.InviteRepository,
	activities *repository.ActivityRepository,
	mailer notification.InviteMailer,
	logger zerolog.Logger,
) *Reconciler {
	return &Reconciler{
		db:          db,
		users:       users,
		groups:      groups,
		memberships: memberships,
		invites:     invites,
		activities:  activities,
		mailer:      mailer,
		logger:      logger.With().Str("component", "invite_reconciler").Logger(),
	}
}

// resolved is one invitee after identity resolution.
type resolved struct {
	user  models.User
	level models.MemberLevel
}

// Reconcile processes the batch for the group on behalf of inviterID. The
// shared message is applied to every created invitation.
func (r *Reconciler) Reconcile(ctx context.Context, groupID, inviterID string, requests []InviteRequest, message *string, actor models.Actor) (Result, error) {
	var result Result

	emails, ids := r.partition(requests, &result)

	group, err := r.groups.GetByID(ctx, groupID)
	if err != nil {
		return Result{}, err
	}
	inviter, err := r.users.GetByID(ctx, inviterID)
	if err != nil {
		return Result{}, err
	}

	err = r.db.InTx(ctx, func(tx *database.Tx) error {
		users := r.users.WithTx(tx)
		memberships := r.memberships.WithTx(tx)
		invites := r.invites.WithTx(tx)
		activities := r.activities.WithTx(tx)

		// Known emails become ids; unknown emails become placeholder
		// accounts.
		known, err := users.GetManyByEmails(ctx, keys(emails))
		if err != nil {
			return err
		}
		invitees := make(map[string]resolved)
		for email, req := range emails {
			user, ok := known[email]
			if !ok {
				user, err = users.CreateUser(ctx, repository.CreateUserParams{
					Email:    &email,
					Name:     displayNameFromEmail(email),
					Language: req.Language,
				})
				if err != nil {
					return errors.Wrapf(err, "create account for %s", email)
				}
				if err := activities.RecordCreate(ctx, actor, "user", user.ID, "created account for invited email", nil); err != nil {
					return err
				}
			}
			mergeInvitee(invitees, user, req.Level)
		}
		for userID, req := range ids {
			user, err := users.GetByID(ctx, userID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					r.logger.Warn().Str("user_id", userID).Msg("dropping invite for unknown user id")
					result.Dropped = append(result.Dropped, userID)
					continue
				}
				return err
			}
			mergeInvitee(invitees, user, req.Level)
		}

		// Self-invites are a no-op, not an error.
		delete(invitees, inviterID)

		var mails []notification.GroupInviteMail
		for _, invitee := range invitees {
			membership, err := memberships.Get(ctx, groupID, invitee.user.ID)
			switch {
			case err == nil:
				// Already a member: promote if the requested level is
				// higher, otherwise leave alone. Never a new invitation.
				if !invitee.level.Above(membership.Level) {
					continue
				}
				updated, err := memberships.UpdateLevel(ctx, groupID, invitee.user.ID, invitee.level)
				if err != nil {
					return err
				}
				if err := activities.RecordUpdate(ctx, actor, "membership", updated.UserID, "raised member level on re-invite", map[string]string{
					"groupId": groupID,
					"level":   string(invitee.level),
				}); err != nil {
					return err
				}
				result.Upgraded = append(result.Upgraded, updated)
			case errors.Is(err, repository.ErrNotFound):
				invite, err := invites.Create(ctx, repository.CreateInviteParams{
					GroupID:   groupID,
					InviterID: inviterID,
					InviteeID: invitee.user.ID,
					Level:     invitee.level,
					Message:   message,
				})
				if err != nil {
					return err
				}
				if err := activities.RecordInvite(ctx, actor, "group", groupID, "user", invitee.user.ID, "invited user to group"); err != nil {
					return err
				}
				result.Created = append(result.Created, invite)
				if email := invitee.user.EmailAddress(); email != "" {
					mails = append(mails, notification.GroupInviteMail{
						InviteID:     invite.ID,
						GroupID:      groupID,
						GroupName:    group.Name,
						InviterName:  inviter.Name,
						InviteeEmail: email,
						Message:      sharedMessage(message),
					})
				}
			default:
				return err
			}
		}

		if len(mails) > 0 {
			tx.AfterCommit(func() {
				if err := r.mailer.SendGroupInviteCreated(mails); err != nil {
					r.logger.Warn().Err(err).Str("group_id", groupID).Msg("invite emails not fully delivered")
				}
			})
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

// partition splits the batch into email-keyed and id-keyed buckets, dropping
// entries that are neither and entries with an unknown level.
func (r *Reconciler) partition(requests []InviteRequest, result *Result) (map[string]InviteRequest, map[string]InviteRequest) {
	emails := make(map[string]InviteRequest)
	ids := make(map[string]InviteRequest)
	for _, req := range requests {
		identity := strings.TrimSpace(req.Identity)
		if req.Level == "" {
			req.Level = models.LevelRead
		}
		switch {
		case !models.IsValidLevel(string(req.Level)):
			r.logger.Warn().Str("identity", identity).Str("level", string(req.Level)).Msg("dropping invite with unknown level")
			result.Dropped = append(result.Dropped, identity)
		case validate.IsValidEmail(identity):
			mergeRequest(emails, strings.ToLower(identity), req)
		case validate.IsValidUUID(identity):
			mergeRequest(ids, identity, req)
		default:
			r.logger.Warn().Str("identity", identity).Msg("dropping invite with malformed identity")
			result.Dropped = append(result.Dropped, identity)
		}
	}
	return emails, ids
}

// mergeRequest keeps the highest requested level when the same identity
// appears more than once in a batch.
func mergeRequest(bucket map[string]InviteRequest, key string, req InviteRequest) {
	if existing, ok := bucket[key]; ok && existing.Level.AtLeast(req.Level) {
		return
	}
	bucket[key] = req
}

func mergeInvitee(invitees map[string]resolved, user models.User, level models.MemberLevel) {
	if existing, ok := invitees[user.ID]; ok && existing.level.AtLeast(level) {
		return
	}
	invitees[user.ID] = resolved{user: user, level: level}
}

// displayNameFromEmail derives a readable name from the address local part.
func displayNameFromEmail(email string) string {
	local := email
	if at := strings.Index(email, "@"); at > 0 {
		local = email[:at]
	}
	local = strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(local)
	return strings.TrimSpace(local)
}

func sharedMessage(message *string) string {
	if message == nil {
		return ""
	}
	return *message
}

func keys(m map[string]InviteRequest) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
