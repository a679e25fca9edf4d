package notification

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ashirxD/Hospital-App-sub000/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/notifications", h.List)
	api.GET("/notifications/unread-count", h.UnreadCount)
	api.PATCH("/notifications/read-all", h.MarkAllRead)
	api.PATCH("/notifications/:id/read", h.MarkRead)
}

type listResponse struct {
	Data   []*Notification `json:"data"`
	Unread int             `json:"unread"`
}

func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.UserIDFromContext(ctx)
	items, err := h.svc.List(ctx, userID)
	if err != nil {
		return err
	}
	unread, err := h.svc.UnreadCount(ctx, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listResponse{Data: items, Unread: unread})
}

func (h *Handler) UnreadCount(c echo.Context) error {
	ctx := c.Request().Context()
	n, err := h.svc.UnreadCount(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int{"unread": n})
}

func (h *Handler) MarkRead(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	n, err := h.svc.MarkRead(ctx, auth.UserIDFromContext(ctx), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) MarkAllRead(c echo.Context) error {
	ctx := c.Request().Context()
	n, err := h.svc.MarkAllRead(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int{"updated": n})
}
