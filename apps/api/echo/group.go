package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kikundi/core/group"
	"github.com/trezcool/kikundi/core/user"
)

type groupApi struct {
	svc      *group.Service
	usrSvc   *user.Service
	validate *validator.Validate
}

func registerGroupAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := groupApi{svc: deps.GroupSvc, usrSvc: deps.UserSvc, validate: deps.Validate}

	gg := g.Group("/groups", jwt)
	gg.GET("", api.query)
	gg.POST("", api.create)

	// detail endpoints
	dg := gg.Group("/:id", groupMiddleware(api.svc, api.usrSvc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, organizerMiddleware(api.usrSvc))
	dg.DELETE("", api.destroy)
	dg.POST("/join", api.join)
	dg.POST("/leave", api.leave)

	mg := dg.Group("/members", memberOnlyMiddleware(api.usrSvc))
	mg.GET("", api.queryMembers)
	mg.PUT("/:uid", api.setMemberRole)
	mg.DELETE("/:uid", api.removeMember, organizerMiddleware(api.usrSvc))
}

// Handlers

func (api *groupApi) create(ctx echo.Context) error {
	var data group.NewGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGroup")
	}
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	grp, err := api.svc.Create(ctx.Request().Context(), ctxUsr.ID, ctxUsr.Name, data)
	if err != nil {
		return errors.Wrap(err, "creating group")
	}
	return ctx.JSON(http.StatusCreated, grp)
}

func (api *groupApi) query(ctx echo.Context) error {
	filter := new(group.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()

	// "my groups" listing
	if ctx.QueryParam("mine") == "true" {
		ctxUsr, err := getContextUser(ctx, api.usrSvc)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}
		filter.MemberID = ctxUsr.ID
	}

	ordering := new(Ordering)
	ordering.Bind(ctx)

	groups, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying groups")
	}
	if groups == nil {
		groups = []group.Group{}
	}
	return ctx.JSON(http.StatusOK, groups)
}

func (api *groupApi) retrieve(ctx echo.Context) error {
	grp, err := getContextGroup(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) update(ctx echo.Context) error {
	grp, err := getContextGroup(ctx)
	if err != nil {
		return err
	}

	var data group.UpdateGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateGroup")
	}
	if err := data.Validate(grp, api.validate, api.svc); err != nil {
		return err
	}

	grp, err = api.svc.Update(ctx.Request().Context(), grp.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating group")
	}
	return ctx.JSON(http.StatusOK, grp)
}

// destroy deletes the group; owner or admin only.
func (api *groupApi) destroy(ctx echo.Context) error {
	grp, err := getContextGroup(ctx)
	if err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if grp.OwnerID != ctxUsr.ID && !ctxUsr.IsAdmin() {
		return errHttpForbidden
	}

	if err := api.svc.Delete(ctx.Request().Context(), grp.ID); err != nil {
		return errors.Wrap(err, "deleting group")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *groupApi) join(ctx echo.Context) error {
	grp, err := getContextGroup(ctx)
	if err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	mbr, err := api.svc.Join(ctx.Request().Context(), grp.ID, ctxUsr.ID, ctxUsr.Name)
	if err != nil {
		return errors.Wrap(err, "joining group")
	}
	return ctx.JSON(http.StatusOK, mbr)
}

func (api *groupApi) leave(ctx echo.Context) error {
	grp, err := getContextGroup(ctx)
	if err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err := api.svc.Leave(ctx.Request().Context(), grp.ID, ctxUsr.ID); err != nil {
		if errors.Cause(err) == group.ErrMemberNotFound {
			return errHttpNotFound
		}
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *groupApi) queryMembers(ctx echo.Context) error {
	grp, err := getContextGroup(ctx)
	if err != nil {
		return err
	}

	members, err := api.svc.Members(ctx.Request().Context(), grp.ID)
	if err != nil {
		return errors.Wrap(err, "querying members")
	}
	if members == nil {
		members = []group.Member{}
	}
	return ctx.JSON(http.StatusOK, members)
}

// setMemberRole promotes or demotes a member; owner or admin only.
func (api *groupApi) setMemberRole(ctx echo.Context) error {
	grp, err := getContextGroup(ctx)
	if err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if grp.OwnerID != ctxUsr.ID && !ctxUsr.IsAdmin() {
		return errHttpForbidden
	}

	var data SetMemberRoleRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetMemberRoleRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	mbr, err := api.svc.SetMemberRole(ctx.Request().Context(), grp.ID, ctx.Param("uid"), data.Role)
	if err != nil {
		if errors.Cause(err) == group.ErrMemberNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "setting member role")
	}
	return ctx.JSON(http.StatusOK, mbr)
}

func (api *groupApi) removeMember(ctx echo.Context) error {
	grp, err := getContextGroup(ctx)
	if err != nil {
		return err
	}

	if err := api.svc.RemoveMember(ctx.Request().Context(), grp.ID, ctx.Param("uid")); err != nil {
		if errors.Cause(err) == group.ErrMemberNotFound {
			return errHttpNotFound
		}
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

type SetMemberRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=organizer member"`
}
