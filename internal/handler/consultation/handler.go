package consultation

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/telemed-api/internal/handler"
	"github.com/jwalitptl/telemed-api/internal/middleware"
	"github.com/jwalitptl/telemed-api/internal/model"
	"github.com/jwalitptl/telemed-api/internal/service/consultation"
	apperrors "github.com/jwalitptl/telemed-api/pkg/errors"
)

type Handler struct {
	service *consultation.Service
}

func NewHandler(service *consultation.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/consultations", h.Book)
	rg.GET("/consultations", h.List)
	rg.GET("/consultations/:id", h.Get)
	rg.PUT("/consultations/:id/status", h.UpdateStatus)
}

// Book creates a consultation for the authenticated patient. Matching
// and reservation happen server-side; the client never names a doctor.
func (h *Handler) Book(c *gin.Context) {
	session := middleware.Session(c)
	if session.Role != model.RolePatient {
		handler.Error(c, apperrors.Forbidden("only patients can book consultations"))
		return
	}

	var req model.BookConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindingError(c, err)
		return
	}

	result, err := h.service.Book(c.Request.Context(), session, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	message := "Consultation booked successfully"
	if result.Provisional {
		message = "Consultation request accepted; confirmation pending"
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":        message,
		"consultation":   result.Consultation,
		"consultationId": result.Consultation.ID,
	})
}

// List returns the caller's consultations: own bookings for patients,
// assigned consultations for doctors.
func (h *Handler) List(c *gin.Context) {
	session := middleware.Session(c)

	var (
		items []*model.Consultation
		err   error
	)
	switch session.Role {
	case model.RoleDoctor:
		items, err = h.service.ListForDoctor(c.Request.Context(), session.UserID)
	default:
		items, err = h.service.ListForPatient(c.Request.Context(), session.UserID)
	}
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"consultations": items})
}

func (h *Handler) Get(c *gin.Context) {
	session := middleware.Session(c)

	cons, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handler.Error(c, err)
		return
	}
	if cons.PatientID != session.UserID && cons.DoctorID != session.UserID {
		handler.Error(c, apperrors.Forbidden("access denied"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"consultation": cons})
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	session := middleware.Session(c)

	var req model.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindingError(c, err)
		return
	}

	cons, err := h.service.UpdateStatus(c.Request.Context(), session, c.Param("id"), req.Status)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      "Status updated successfully",
		"consultation": cons,
	})
}
