package authz

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/agora-platform/agora-api/internal/models"
)

// GroupGuard gates group routes behind the evaluator. Every guarded route
// carries a {groupID} path variable; routes that act on a member record also
// carry {userID}, which becomes the resolved subject id for the allow-self
// override.
type GroupGuard struct {
	evaluator *Evaluator
	logger    zerolog.Logger
	forbid    func(w http.ResponseWriter)
}

func NewGroupGuard(evaluator *Evaluator, logger zerolog.Logger, forbid func(w http.ResponseWriter)) *GroupGuard {
	return &GroupGuard{
		evaluator: evaluator,
		logger:    logger.With().Str("component", "group_guard").Logger(),
		forbid:    forbid,
	}
}

// Require returns a middleware enforcing the given level.
func (g *GroupGuard) Require(required models.MemberLevel) func(http.Handler) http.Handler {
	return g.require(required, Options{})
}

// RequireOrPublic additionally admits anyone when the group is public.
func (g *GroupGuard) RequireOrPublic(required models.MemberLevel) func(http.Handler) http.Handler {
	return g.require(required, Options{AllowPublicRead: true})
}

// RequireOrSelf additionally admits the caller when the {userID} path
// variable resolves to the caller itself.
func (g *GroupGuard) RequireOrSelf(required models.MemberLevel) func(http.Handler) http.Handler {
	return g.require(required, Options{}, "userID")
}

func (g *GroupGuard) require(required models.MemberLevel, opts Options, subjectVar ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			vars := mux.Vars(r)
			groupID := vars["groupID"]
			callerID, _ := UserIDFromRequest(r)

			checkOpts := opts
			if len(subjectVar) > 0 {
				checkOpts.SubjectID = vars[subjectVar[0]]
			}

			allowed, err := g.evaluator.Can(r.Context(), groupID, callerID, required, checkOpts)
			if err != nil {
				g.logger.Error().Err(err).Str("group_id", groupID).Msg("permission check failed")
				allowed = false
			}
			if !allowed {
				g.forbid(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
