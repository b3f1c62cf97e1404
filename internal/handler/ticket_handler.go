package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/salon-pos-api/internal/models"
	"github.com/noah-isme/salon-pos-api/internal/service"
	appErrors "github.com/noah-isme/salon-pos-api/pkg/errors"
	"github.com/noah-isme/salon-pos-api/pkg/response"
)

// TicketHandler wires ticket closing, the approval workflow and ticket item
// endpoints. The acting employee and store always come from the token.
type TicketHandler struct {
	approval *service.ApprovalService
	tickets  *service.TicketService
}

// NewTicketHandler creates a new handler.
func NewTicketHandler(approval *service.ApprovalService, tickets *service.TicketService) *TicketHandler {
	return &TicketHandler{approval: approval, tickets: tickets}
}

// Get godoc
// @Summary Get ticket
// @Description Load a ticket with its service lines
// @Tags Tickets
// @Produce json
// @Security BearerAuth
// @Param id path string true "Ticket ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tickets/{id} [get]
func (h *TicketHandler) Get(c *gin.Context) {
	ticket, items, err := h.tickets.GetTicket(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"ticket": ticket, "items": items}, nil)
}

// Close godoc
// @Summary Close ticket
// @Description Close an open ticket and route it for approval
// @Tags Tickets
// @Produce json
// @Security BearerAuth
// @Param id path string true "Ticket ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tickets/{id}/close [post]
func (h *TicketHandler) Close(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	ticket, err := h.approval.CloseTicket(c.Request.Context(), c.Param("id"), claims.EmployeeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ticket, nil)
}

// Approve godoc
// @Summary Approve ticket
// @Description Approve a pending ticket as the acting employee
// @Tags Approvals
// @Produce json
// @Security BearerAuth
// @Param id path string true "Ticket ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tickets/{id}/approve [post]
func (h *TicketHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.approval.Approve(c.Request.Context(), c.Param("id"), claims.EmployeeID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Reject godoc
// @Summary Reject ticket
// @Description Reject a pending ticket with a mandatory reason
// @Tags Approvals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Ticket ID"
// @Param payload body object true "Rejection reason"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tickets/{id}/reject [post]
func (h *TicketHandler) Reject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "rejection reason is required"))
		return
	}

	if err := h.approval.Reject(c.Request.Context(), c.Param("id"), claims.EmployeeID, payload.Reason); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// PendingApprovals godoc
// @Summary List pending approvals
// @Description List the store's tickets awaiting approval, oldest deadline first
// @Tags Approvals
// @Produce json
// @Security BearerAuth
// @Param level query string false "Filter by required approval level"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /approvals/pending [get]
func (h *TicketHandler) PendingApprovals(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.PendingApprovalFilter{StoreID: claims.StoreID}
	if raw := c.Query("level"); raw != "" {
		level := models.ApprovalLevel(raw)
		filter.Level = &level
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "50"))

	rows, total, err := h.approval.GetPendingApprovals(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// AddItem godoc
// @Summary Add ticket item
// @Description Attach a service line to an open ticket
// @Tags Tickets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Ticket ID"
// @Param payload body service.AddItemRequest true "Service line"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tickets/{id}/items [post]
func (h *TicketHandler) AddItem(c *gin.Context) {
	var req service.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid ticket item payload"))
		return
	}
	req.TicketID = c.Param("id")

	item, err := h.tickets.AddItem(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// CompleteItem godoc
// @Summary Complete ticket item
// @Description Mark one service line done without closing the ticket
// @Tags Tickets
// @Produce json
// @Security BearerAuth
// @Param id path string true "Ticket ID"
// @Param itemId path string true "Item ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tickets/{id}/items/{itemId}/complete [post]
func (h *TicketHandler) CompleteItem(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.tickets.CompleteItem(c.Request.Context(), c.Param("id"), c.Param("itemId"), claims.EmployeeID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
