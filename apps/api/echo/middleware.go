package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kikundi/core/group"
	"github.com/trezcool/kikundi/core/user"
)

var (
	contextGroupKey  = "group"
	contextMemberKey = "member"
)

func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin && contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// groupMiddleware loads the group at :id along with the authed user's
// membership and stashes both in the echo.Context. Private groups are hidden
// from non-members (admins excepted).
func groupMiddleware(grpSvc *group.Service, usrSvc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			reqCtx := ctx.Request().Context()

			grp, err := grpSvc.GetByID(reqCtx, ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == group.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding group by ID")
			}

			ctxUsr, err := getContextUser(ctx, usrSvc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			mbr, err := grpSvc.GetMember(reqCtx, grp.ID, ctxUsr.ID)
			if err != nil {
				if errors.Cause(err) != group.ErrMemberNotFound {
					return errors.Wrap(err, "finding group member")
				}
				if grp.IsPrivate && !ctxUsr.IsAdmin() {
					return errHttpNotFound
				}
			}

			ctx.Set(contextGroupKey, grp)
			ctx.Set(contextMemberKey, mbr)
			return next(ctx)
		}
	}
}

// memberOnlyMiddleware requires a stashed membership (admins pass); it must
// run after groupMiddleware.
func memberOnlyMiddleware(usrSvc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if mbr, ok := ctx.Get(contextMemberKey).(group.Member); ok && mbr.UserID != "" {
				return next(ctx)
			}
			ctxUsr, err := getContextUser(ctx, usrSvc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if ctxUsr.IsAdmin() {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// organizerMiddleware requires the stashed membership to carry organizing
// rights; it must run after groupMemberMiddleware.
func organizerMiddleware(usrSvc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx, usrSvc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if ctxUsr.IsAdmin() {
				return next(ctx)
			}
			if mbr, ok := ctx.Get(contextMemberKey).(group.Member); ok && mbr.CanOrganize() {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func getContextGroup(ctx echo.Context) (group.Group, error) {
	if grp, ok := ctx.Get(contextGroupKey).(group.Group); ok {
		return grp, nil
	}
	return group.Group{}, errors.New("group object not found in echo.Context")
}
