package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kikundi/core/group"
	"github.com/trezcool/kikundi/core/resource"
	"github.com/trezcool/kikundi/core/user"
)

var errResNotFoundInCtx = errors.New("resource object not found in echo.Context")

type resourceApi struct {
	svc      *resource.Service
	grpSvc   *group.Service
	usrSvc   *user.Service
	validate *validator.Validate
}

func registerResourceAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := resourceApi{
		svc:      deps.ResourceSvc,
		grpSvc:   deps.GroupSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}

	gg := g.Group("/groups/:id/resources", jwt, groupMiddleware(api.grpSvc, api.usrSvc), memberOnlyMiddleware(api.usrSvc))
	gg.GET("", api.query)
	gg.POST("", api.create)

	dg := g.Group("/resources/:id", jwt, api.resourceMiddleware())
	dg.GET("", api.retrieve)
	dg.DELETE("", api.destroy)
}

// resourceMiddleware loads the resource at :id and requires the authed user to
// be a member of its group (admins pass).
func (api *resourceApi) resourceMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			reqCtx := ctx.Request().Context()

			res, err := api.svc.GetByID(reqCtx, ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == resource.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding resource by ID")
			}

			ctxUsr, err := getContextUser(ctx, api.usrSvc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			mbr, err := api.grpSvc.GetMember(reqCtx, res.GroupID, ctxUsr.ID)
			if err != nil {
				if errors.Cause(err) != group.ErrMemberNotFound {
					return errors.Wrap(err, "finding group member")
				}
				if !ctxUsr.IsAdmin() {
					return errHttpNotFound
				}
			}

			ctx.Set("object", res)
			ctx.Set(contextMemberKey, mbr)
			return next(ctx)
		}
	}
}

// Handlers

func (api *resourceApi) query(ctx echo.Context) error {
	grp, err := getContextGroup(ctx)
	if err != nil {
		return err
	}

	res, err := api.svc.List(ctx.Request().Context(), grp.ID)
	if err != nil {
		return errors.Wrap(err, "querying resources")
	}
	if res == nil {
		res = []resource.Resource{}
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *resourceApi) create(ctx echo.Context) error {
	grp, err := getContextGroup(ctx)
	if err != nil {
		return err
	}

	var data resource.NewResource
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewResource")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	res, err := api.svc.Add(ctx.Request().Context(), grp.ID, ctxUsr.ID, ctxUsr.Name, data)
	if err != nil {
		return errors.Wrap(err, "adding resource")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *resourceApi) retrieve(ctx echo.Context) error {
	res, ok := ctx.Get("object").(resource.Resource)
	if !ok {
		return errors.Wrap(errResNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, res)
}

// destroy deletes the resource; sharer, organizer or admin only.
func (api *resourceApi) destroy(ctx echo.Context) error {
	res, ok := ctx.Get("object").(resource.Resource)
	if !ok {
		return errors.Wrap(errResNotFoundInCtx, "retrieving object from context")
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	mbr, _ := ctx.Get(contextMemberKey).(group.Member)
	if res.AddedBy != ctxUsr.ID && !mbr.CanOrganize() && !ctxUsr.IsAdmin() {
		return errHttpForbidden
	}

	if err := api.svc.Delete(ctx.Request().Context(), res.ID); err != nil {
		return errors.Wrap(err, "deleting resource")
	}
	return ctx.NoContent(http.StatusNoContent)
}
