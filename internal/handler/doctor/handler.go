package doctor

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/telemed-api/internal/handler"
	"github.com/jwalitptl/telemed-api/internal/middleware"
	"github.com/jwalitptl/telemed-api/internal/model"
	"github.com/jwalitptl/telemed-api/internal/service/availability"
	"github.com/jwalitptl/telemed-api/internal/service/consultation"
)

// Handler serves the doctor-only surface: assigned consultations and
// availability management. All routes sit behind RequireRole(doctor).
type Handler struct {
	consultations *consultation.Service
	ledger        *availability.Service
}

func NewHandler(consultations *consultation.Service, ledger *availability.Service) *Handler {
	return &Handler{consultations: consultations, ledger: ledger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/consultations", h.ListConsultations)
	rg.GET("/availability", h.GetAvailability)
	rg.POST("/availability", h.PublishAvailability)
	rg.DELETE("/availability/slot", h.RemoveSlot)
	rg.POST("/availability/release", h.ReleaseSlot)
}

func (h *Handler) ListConsultations(c *gin.Context) {
	session := middleware.Session(c)
	items, err := h.consultations.ListForDoctor(c.Request.Context(), session.UserID)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"consultations": items})
}

// GetAvailability returns one date's slots when ?date= is given, the
// doctor's whole calendar otherwise.
func (h *Handler) GetAvailability(c *gin.Context) {
	session := middleware.Session(c)

	if date := c.Query("date"); date != "" {
		slots, err := h.ledger.DayAvailability(c.Request.Context(), session.UserID, date)
		if err != nil {
			handler.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"date": date, "slots": slots})
		return
	}

	all, err := h.ledger.AllAvailability(c.Request.Context(), session.UserID)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"availability": all})
}

// PublishAvailability replaces the doctor's slot set for a date.
func (h *Handler) PublishAvailability(c *gin.Context) {
	session := middleware.Session(c)

	var req model.PublishAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindingError(c, err)
		return
	}

	if err := h.ledger.Publish(c.Request.Context(), session.UserID, req.Date, req.Slots); err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Availability published successfully",
		"date":    req.Date,
		"slots":   len(req.Slots),
	})
}

func (h *Handler) RemoveSlot(c *gin.Context) {
	session := middleware.Session(c)

	var req model.SlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindingError(c, err)
		return
	}

	if err := h.ledger.RemoveSlot(c.Request.Context(), session.UserID, req.Date, req.Time); err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Slot removed successfully"})
}

// ReleaseSlot reopens a slot without touching any consultation record.
// Meant for undoing a mistaken publish or a no-show.
func (h *Handler) ReleaseSlot(c *gin.Context) {
	session := middleware.Session(c)

	var req model.SlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindingError(c, err)
		return
	}

	if err := h.ledger.Release(c.Request.Context(), session.UserID, req.Date, req.Time); err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Slot released successfully"})
}
