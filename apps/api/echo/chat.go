package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kikundi/core/chat"
	"github.com/trezcool/kikundi/core/group"
	"github.com/trezcool/kikundi/core/user"
)

var errMsgNotFoundInCtx = errors.New("message object not found in echo.Context")

type chatApi struct {
	svc      *chat.Service
	grpSvc   *group.Service
	usrSvc   *user.Service
	hub      *Hub
	validate *validator.Validate
}

func registerChatAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := chatApi{
		svc:      deps.ChatSvc,
		grpSvc:   deps.GroupSvc,
		usrSvc:   deps.UserSvc,
		hub:      deps.Hub,
		validate: deps.Validate,
	}

	// group-scoped endpoints
	gg := g.Group("/groups/:id/messages", jwt, groupMiddleware(api.grpSvc, api.usrSvc), memberOnlyMiddleware(api.usrSvc))
	gg.GET("", api.query)
	gg.POST("", api.post)

	// detail endpoints
	dg := g.Group("/messages/:id", jwt, api.messageMiddleware())
	dg.POST("/reactions", api.toggleReaction)
	dg.POST("/pin", api.togglePin, organizerMiddleware(api.usrSvc))
	dg.DELETE("", api.destroy)
}

// messageMiddleware loads the message at :id and requires the authed user to
// be a member of its group (admins pass).
func (api *chatApi) messageMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			reqCtx := ctx.Request().Context()

			msg, err := api.svc.GetByID(reqCtx, ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == chat.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding message by ID")
			}

			ctxUsr, err := getContextUser(ctx, api.usrSvc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			mbr, err := api.grpSvc.GetMember(reqCtx, msg.GroupID, ctxUsr.ID)
			if err != nil {
				if errors.Cause(err) != group.ErrMemberNotFound {
					return errors.Wrap(err, "finding group member")
				}
				if !ctxUsr.IsAdmin() {
					return errHttpNotFound
				}
			}

			ctx.Set("object", msg)
			ctx.Set(contextMemberKey, mbr)
			return next(ctx)
		}
	}
}

// Handlers

func (api *chatApi) query(ctx echo.Context) error {
	grp, err := getContextGroup(ctx)
	if err != nil {
		return err
	}

	filter := new(chat.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.GroupID = grp.ID

	msgs, err := api.svc.List(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying messages")
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *chatApi) post(ctx echo.Context) error {
	grp, err := getContextGroup(ctx)
	if err != nil {
		return err
	}

	var data chat.NewMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	msg, err := api.svc.Post(ctx.Request().Context(), grp.ID, ctxUsr.ID, ctxUsr.Name, data)
	if err != nil {
		return errors.Wrap(err, "posting message")
	}

	api.hub.NotifyMessagePosted(msg)
	return ctx.JSON(http.StatusCreated, msg)
}

func (api *chatApi) toggleReaction(ctx echo.Context) error {
	msg, ok := ctx.Get("object").(chat.Message)
	if !ok {
		return errors.Wrap(errMsgNotFoundInCtx, "retrieving object from context")
	}

	var data ReactionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReactionRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err := api.svc.ToggleReaction(ctx.Request().Context(), &msg, data.Emoji, ctxUsr.ID); err != nil {
		return err
	}

	api.hub.NotifyReactionToggled(msg, data.Emoji, ctxUsr.ID)
	return ctx.JSON(http.StatusOK, msg)
}

func (api *chatApi) togglePin(ctx echo.Context) error {
	msg, ok := ctx.Get("object").(chat.Message)
	if !ok {
		return errors.Wrap(errMsgNotFoundInCtx, "retrieving object from context")
	}

	if err := api.svc.TogglePin(ctx.Request().Context(), &msg); err != nil {
		return err
	}

	api.hub.NotifyMessagePinned(msg)
	return ctx.JSON(http.StatusOK, msg)
}

// destroy deletes the message; author, organizer or admin only.
func (api *chatApi) destroy(ctx echo.Context) error {
	msg, ok := ctx.Get("object").(chat.Message)
	if !ok {
		return errors.Wrap(errMsgNotFoundInCtx, "retrieving object from context")
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	mbr, _ := ctx.Get(contextMemberKey).(group.Member)
	if msg.AuthorID != ctxUsr.ID && !mbr.CanOrganize() && !ctxUsr.IsAdmin() {
		return errHttpForbidden
	}

	if err := api.svc.Delete(ctx.Request().Context(), msg.ID); err != nil {
		return errors.Wrap(err, "deleting message")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type ReactionRequest struct {
	Emoji string `json:"emoji" validate:"required,max=32"`
}
