package scheduling

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ashirxD/Hospital-App-sub000/internal/platform/auth"
	"github.com/ashirxD/Hospital-App-sub000/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Either role
	api.GET("/appointments", h.ListAppointments)
	api.GET("/appointments/:id", h.GetAppointment)
	api.GET("/doctors/:id/slots", h.AvailableSlots)
	api.GET("/doctors/:id/reviews", h.ListDoctorReviews)

	// Role checks sit on each route. A prefix-less group with middleware
	// would also catch unknown paths and answer them with 403.
	patientOnly := auth.RequireRole(auth.RolePatient)
	api.POST("/appointments", h.RequestAppointment, patientOnly)
	api.POST("/appointments/:id/review", h.AddReview, patientOnly)

	doctorOnly := auth.RequireRole(auth.RoleDoctor)
	api.PATCH("/appointments/:id/accept", h.AcceptAppointment, doctorOnly)
	api.PATCH("/appointments/:id/reject", h.RejectAppointment, doctorOnly)
	api.PATCH("/appointments/:id/status", h.UpdateStatus, doctorOnly)
	api.POST("/appointments/:id/prescriptions", h.AddPrescription, doctorOnly)
	api.GET("/patients/:id/appointments", h.PatientHistory, doctorOnly)
}

func identityOf(c echo.Context) auth.Identity {
	id, _ := auth.IdentityFromContext(c.Request().Context())
	return id
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) RequestAppointment(c echo.Context) error {
	var in RequestInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.RequestAppointment(c.Request().Context(), identityOf(c), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAppointments(c.Request().Context(), identityOf(c), c.QueryParam("status"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), identityOf(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) AcceptAppointment(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.AcceptAppointment(c.Request().Context(), identityOf(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) RejectAppointment(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.RejectAppointment(c.Request().Context(), identityOf(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.UpdateStatus(c.Request().Context(), identityOf(c), id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) AddPrescription(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var in PrescriptionInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.AddPrescription(c.Request().Context(), identityOf(c), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) PatientHistory(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.PatientHistory(c.Request().Context(), identityOf(c), id, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) AvailableSlots(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	date := c.QueryParam("date")
	if date == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date is required")
	}
	slots, err := h.svc.AvailableSlots(c.Request().Context(), id, date)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"date": date, "slots": slots})
}

func (h *Handler) AddReview(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var in ReviewInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	r, err := h.svc.AddReview(c.Request().Context(), identityOf(c), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) ListDoctorReviews(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDoctorReviews(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
