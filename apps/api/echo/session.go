package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kikundi/core/group"
	"github.com/trezcool/kikundi/core/session"
	"github.com/trezcool/kikundi/core/user"
)

var errSessNotFoundInCtx = errors.New("session object not found in echo.Context")

type sessionApi struct {
	svc      *session.Service
	grpSvc   *group.Service
	usrSvc   *user.Service
	hub      *Hub
	validate *validator.Validate
}

func registerSessionAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := sessionApi{
		svc:      deps.SessionSvc,
		grpSvc:   deps.GroupSvc,
		usrSvc:   deps.UserSvc,
		hub:      deps.Hub,
		validate: deps.Validate,
	}

	// the authed user's calendar across all their groups
	g.GET("/sessions", api.calendar, jwt)

	// group-scoped endpoints
	gg := g.Group("/groups/:id/sessions", jwt, groupMiddleware(api.grpSvc, api.usrSvc), memberOnlyMiddleware(api.usrSvc))
	gg.GET("", api.query)
	gg.POST("", api.create, organizerMiddleware(api.usrSvc))

	// detail endpoints
	dg := g.Group("/sessions/:id", jwt, api.sessionMiddleware())
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, organizerMiddleware(api.usrSvc))
	dg.DELETE("", api.destroy, organizerMiddleware(api.usrSvc))
	dg.POST("/rsvp", api.rsvp)
}

// sessionMiddleware loads the session at :id and requires the authed user to
// be a member of its group (admins pass). The session, its group and the
// membership are stashed in the echo.Context.
func (api *sessionApi) sessionMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			reqCtx := ctx.Request().Context()

			sess, err := api.svc.GetByID(reqCtx, ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == session.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding session by ID")
			}

			grp, err := api.grpSvc.GetByID(reqCtx, sess.GroupID)
			if err != nil && errors.Cause(err) != group.ErrNotFound {
				return errors.Wrap(err, "finding group by ID")
			}

			ctxUsr, err := getContextUser(ctx, api.usrSvc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			mbr, err := api.grpSvc.GetMember(reqCtx, sess.GroupID, ctxUsr.ID)
			if err != nil {
				if errors.Cause(err) != group.ErrMemberNotFound {
					return errors.Wrap(err, "finding group member")
				}
				if !ctxUsr.IsAdmin() {
					return errHttpNotFound
				}
			}

			ctx.Set("object", sess)
			ctx.Set(contextGroupKey, grp)
			ctx.Set(contextMemberKey, mbr)
			return next(ctx)
		}
	}
}

// Handlers

func (api *sessionApi) calendar(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var query CalendarRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to CalendarRequest")
	}
	from := query.From
	if from.IsZero() {
		from = time.Now().UTC()
	}
	to := query.To
	if to.IsZero() {
		to = from.AddDate(0, 1, 0)
	}

	sessions, err := api.svc.Calendar(ctx.Request().Context(), ctxUsr.ID, from, to)
	if err != nil {
		return errors.Wrap(err, "querying calendar")
	}
	if sessions == nil {
		sessions = []session.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *sessionApi) query(ctx echo.Context) error {
	grp, err := getContextGroup(ctx)
	if err != nil {
		return err
	}

	filter := new(session.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.GroupID = grp.ID

	ordering := new(Ordering)
	ordering.Bind(ctx)

	sessions, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying sessions")
	}
	if sessions == nil {
		sessions = []session.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *sessionApi) create(ctx echo.Context) error {
	grp, err := getContextGroup(ctx)
	if err != nil {
		return err
	}

	var data session.NewSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	force := ctx.QueryParam("force") == "true"
	sess, report, err := api.svc.Create(ctx.Request().Context(), ctxUsr, grp, data, force)
	if err != nil {
		if errors.Cause(err) == session.ErrSchedulingConflict {
			return ctx.JSON(http.StatusConflict, ConflictResponse{
				Error:     err.Error(),
				Conflicts: report.Conflicts,
			})
		}
		return err
	}

	api.hub.NotifySessionCreated(sess)
	return ctx.JSON(http.StatusCreated, SessionResponse{Session: sess, Conflicts: report.Conflicts})
}

func (api *sessionApi) retrieve(ctx echo.Context) error {
	sess, ok := ctx.Get("object").(session.Session)
	if !ok {
		return errors.Wrap(errSessNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *sessionApi) update(ctx echo.Context) error {
	sess, ok := ctx.Get("object").(session.Session)
	if !ok {
		return errors.Wrap(errSessNotFoundInCtx, "retrieving object from context")
	}

	var data session.UpdateSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSession")
	}
	if err := data.Validate(sess, api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	force := ctx.QueryParam("force") == "true"
	sess, report, err := api.svc.Update(ctx.Request().Context(), ctxUsr, sess, data, force)
	if err != nil {
		if errors.Cause(err) == session.ErrSchedulingConflict {
			return ctx.JSON(http.StatusConflict, ConflictResponse{
				Error:     err.Error(),
				Conflicts: report.Conflicts,
			})
		}
		return err
	}

	api.hub.NotifySessionUpdated(sess)
	return ctx.JSON(http.StatusOK, SessionResponse{Session: sess, Conflicts: report.Conflicts})
}

func (api *sessionApi) destroy(ctx echo.Context) error {
	sess, ok := ctx.Get("object").(session.Session)
	if !ok {
		return errors.Wrap(errSessNotFoundInCtx, "retrieving object from context")
	}

	if err := api.svc.Delete(ctx.Request().Context(), sess.ID); err != nil {
		return errors.Wrap(err, "deleting session")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *sessionApi) rsvp(ctx echo.Context) error {
	sess, ok := ctx.Get("object").(session.Session)
	if !ok {
		return errors.Wrap(errSessNotFoundInCtx, "retrieving object from context")
	}

	var data RSVPRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RSVPRequest")
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err := api.svc.SetRSVP(ctx.Request().Context(), &sess, ctxUsr, session.Status(data.Status)); err != nil {
		return err
	}

	api.hub.NotifySessionRSVP(sess, ctxUsr.ID, data.Status)
	return ctx.JSON(http.StatusOK, sess)
}

type (
	CalendarRequest struct {
		From time.Time `query:"from"`
		To   time.Time `query:"to"`
	}

	RSVPRequest struct {
		Status string `json:"status"`
	}

	SessionResponse struct {
		Session   session.Session         `json:"session"`
		Conflicts []session.ConflictEntry `json:"conflicts"`
	}

	ConflictResponse struct {
		Error     string                  `json:"error"`
		Conflicts []session.ConflictEntry `json:"conflicts"`
	}
)
