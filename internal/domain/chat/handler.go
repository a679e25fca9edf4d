package chat

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ashirxD/Hospital-App-sub000/internal/platform/auth"
	"github.com/ashirxD/Hospital-App-sub000/internal/platform/blobstore"
	"github.com/ashirxD/Hospital-App-sub000/pkg/pagination"
)

const attachmentField = "attachment"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/chat/groups", h.ResolveGroup)
	api.GET("/chat/groups", h.ListGroups)
	api.GET("/chat/groups/:id/messages", h.ListMessages)
	api.PATCH("/chat/groups/:id/read", h.MarkRead)
	api.POST("/chat/messages", h.SendMessage)
}

func identityOf(c echo.Context) auth.Identity {
	id, _ := auth.IdentityFromContext(c.Request().Context())
	return id
}

type resolveRequest struct {
	RecipientID string `json:"recipientId"`
}

func (h *Handler) ResolveGroup(c echo.Context) error {
	var req resolveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	g, err := h.svc.ResolveGroup(c.Request().Context(), identityOf(c), req.RecipientID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, g)
}

func (h *Handler) ListGroups(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListGroups(c.Request().Context(), identityOf(c).UserID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListMessages(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListMessages(c.Request().Context(), identityOf(c).UserID, id, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) MarkRead(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	n, err := h.svc.MarkRead(c.Request().Context(), identityOf(c).UserID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int{"updated": n})
}

type sendRequest struct {
	RecipientID string `json:"recipientId" form:"recipientId"`
	ChatGroupID string `json:"chatGroupId" form:"chatGroupId"`
	Content     string `json:"content" form:"content"`
}

// SendMessage accepts JSON, or multipart form data carrying an optional file
// in the attachment field.
func (h *Handler) SendMessage(c echo.Context) error {
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	in := SendInput{RecipientID: req.RecipientID, ChatGroupID: req.ChatGroupID, Content: req.Content}

	if fh, err := c.FormFile(attachmentField); err == nil {
		f, err := fh.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "unreadable attachment")
		}
		defer f.Close()
		in.File = &blobstore.Upload{
			FileName:    fh.Filename,
			ContentType: fh.Header.Get(echo.HeaderContentType),
			Content:     f,
		}
	}

	msg, err := h.svc.Send(c.Request().Context(), identityOf(c), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, msg)
}
