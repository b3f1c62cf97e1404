package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/salon-pos-api/internal/service"
	appErrors "github.com/noah-isme/salon-pos-api/pkg/errors"
	"github.com/noah-isme/salon-pos-api/pkg/response"
)

// QueueHandler wires the technician ready-queue endpoints.
type QueueHandler struct {
	queue *service.QueueService
}

// NewQueueHandler creates a new handler.
func NewQueueHandler(queue *service.QueueService) *QueueHandler {
	return &QueueHandler{queue: queue}
}

// Join godoc
// @Summary Join ready queue
// @Description Put the acting employee at the back of the store's ready queue
// @Tags Queue
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /queue/ready [post]
func (h *QueueHandler) Join(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	entry, err := h.queue.JoinReady(c.Request.Context(), claims.EmployeeID, claims.StoreID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Leave godoc
// @Summary Leave ready queue
// @Description Remove the acting employee from the ready queue
// @Tags Queue
// @Produce json
// @Security BearerAuth
// @Success 204 {object} response.Envelope
// @Router /queue/ready [delete]
func (h *QueueHandler) Leave(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.queue.LeaveReady(c.Request.Context(), claims.EmployeeID, claims.StoreID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Status godoc
// @Summary My queue status
// @Description Report the acting employee's derived floor status
// @Tags Queue
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /queue/status [get]
func (h *QueueHandler) Status(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	status, err := h.queue.CheckStatus(c.Request.Context(), claims.EmployeeID, claims.StoreID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"status": status}, nil)
}

// View godoc
// @Summary Ordered floor view
// @Description Every eligible technician at the store: ready in FIFO order, then neutral, then busy
// @Tags Queue
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /queue/view [get]
func (h *QueueHandler) View(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	view, err := h.queue.OrderedView(c.Request.Context(), claims.StoreID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Clear godoc
// @Summary Clear store queue
// @Description Empty the store's ready queue (admin only)
// @Tags Queue
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /queue [delete]
func (h *QueueHandler) Clear(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	removed, err := h.queue.ClearStoreQueue(c.Request.Context(), claims.StoreID, claims.EmployeeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"removed": removed}, nil)
}
