package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/salon-pos-api/internal/service"
	appErrors "github.com/noah-isme/salon-pos-api/pkg/errors"
	"github.com/noah-isme/salon-pos-api/pkg/response"
)

// AttendanceHandler wires manual check-in and check-out.
type AttendanceHandler struct {
	attendance *service.AttendanceService
}

// NewAttendanceHandler creates a new handler.
func NewAttendanceHandler(attendance *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

// CheckIn godoc
// @Summary Check in
// @Description Open an attendance session for the acting employee
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /attendance/check-in [post]
func (h *AttendanceHandler) CheckIn(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	record, err := h.attendance.CheckIn(c.Request.Context(), claims.EmployeeID, claims.StoreID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// CheckOut godoc
// @Summary Check out
// @Description Close the acting employee's open attendance session
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attendance/check-out [post]
func (h *AttendanceHandler) CheckOut(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	record, err := h.attendance.CheckOut(c.Request.Context(), claims.EmployeeID, claims.StoreID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}
