package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dispatch-service/internal/http/middleware"
	"dispatch-service/internal/model"
	"dispatch-service/internal/service"
)

type Handler struct {
	dispatcher   *service.DispatchService
	coordinator  *service.ReassignmentService
	reaper       *service.TimeoutReaper
	assignments  *service.AssignmentService
	sweepTimeout time.Duration
	log          zerolog.Logger
}

func NewHandler(
	dispatcher *service.DispatchService,
	coordinator *service.ReassignmentService,
	reaper *service.TimeoutReaper,
	assignments *service.AssignmentService,
	sweepTimeout time.Duration,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		dispatcher:   dispatcher,
		coordinator:  coordinator,
		reaper:       reaper,
		assignments:  assignments,
		sweepTimeout: sweepTimeout,
		log:          log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware, internalMiddleware gin.HandlerFunc) {
	internal := r.Group("/internal")
	internal.Use(internalMiddleware)
	{
		internal.POST("/dispatch", h.dispatch)
		internal.POST("/reassign", h.reassign)
		internal.POST("/sweep-timeouts", h.sweepTimeouts)
		internal.GET("/orders/:id/assignments", h.listOrderAssignments)
	}

	driver := r.Group("/driver")
	driver.Use(authMiddleware, middleware.RequireDriver())
	{
		driver.PUT("/status", h.updateDriverStatus)
		driver.GET("/assignments", h.listMyAssignments)
		driver.PUT("/assignments/:id/accept", h.acceptAssignment)
		driver.PUT("/assignments/:id/reject", h.rejectAssignment)
		driver.PUT("/assignments/:id/pick-up", h.pickUpAssignment)
		driver.PUT("/assignments/:id/deliver", h.deliverAssignment)
	}
}

type dispatchRequest struct {
	OrderID string `json:"orderId" binding:"required"`
}

type reassignRequest struct {
	OrderID         string `json:"orderId" binding:"required"`
	Reason          string `json:"reason"`
	CurrentDriverID string `json:"currentDriverId"`
}

type sweepRequest struct {
	TimeoutSeconds *int `json:"timeoutSeconds"`
}

type dispatchResponse struct {
	Success      bool    `json:"success"`
	Message      string  `json:"message"`
	Status       string  `json:"status"`
	DriverID     *string `json:"driverId,omitempty"`
	AssignmentID *string `json:"assignmentId,omitempty"`
}

type sweepResponse struct {
	Message    string `json:"message"`
	Processed  int    `json:"processed"`
	Reassigned int    `json:"reassigned"`
}

func (h *Handler) dispatch(c *gin.Context) {
	var req dispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("orderId is required"))
		return
	}
	orderID, err := uuid.Parse(strings.TrimSpace(req.OrderID))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid orderId"))
		return
	}

	result, err := h.dispatcher.Dispatch(c.Request.Context(), orderID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, toDispatchResponse(result))
}

func (h *Handler) reassign(c *gin.Context) {
	var req reassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("orderId is required"))
		return
	}
	orderID, err := uuid.Parse(strings.TrimSpace(req.OrderID))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid orderId"))
		return
	}

	input := service.ReassignInput{OrderID: orderID, Reason: req.Reason}
	if raw := strings.TrimSpace(req.CurrentDriverID); raw != "" {
		driverID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("invalid currentDriverId"))
			return
		}
		input.DriverID = &driverID
	}

	result, err := h.coordinator.Reassign(c.Request.Context(), input)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, toDispatchResponse(result))
}

func (h *Handler) sweepTimeouts(c *gin.Context) {
	var req sweepRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid request body"))
		return
	}

	timeout := h.sweepTimeout
	if req.TimeoutSeconds != nil {
		if *req.TimeoutSeconds <= 0 {
			c.JSON(http.StatusBadRequest, errorResponse("timeoutSeconds must be positive"))
			return
		}
		timeout = time.Duration(*req.TimeoutSeconds) * time.Second
	}

	result, err := h.reaper.Sweep(c.Request.Context(), timeout)
	if err != nil {
		if result.Expired == 0 {
			h.handleError(c, err)
			return
		}
		// some items went through; report them and keep the failure in the log
		h.log.Error().Err(err).Int("expired", result.Expired).Msg("sweep finished with errors")
	}

	c.JSON(http.StatusOK, sweepResponse{
		Message:    "timeout sweep completed",
		Processed:  result.Expired,
		Reassigned: result.Reassigned,
	})
}

func (h *Handler) listOrderAssignments(c *gin.Context) {
	orderID, ok := parseID(c, "invalid order id")
	if !ok {
		return
	}

	assignments, err := h.assignments.ListForOrder(c.Request.Context(), orderID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(assignments))
}

func (h *Handler) updateDriverStatus(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	var req struct {
		IsOnline *bool  `json:"isOnline" binding:"required"`
		RegionID string `json:"regionId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("isOnline is required"))
		return
	}

	input := service.UpdateAvailabilityInput{IsOnline: *req.IsOnline}
	if raw := strings.TrimSpace(req.RegionID); raw != "" {
		regionID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("invalid regionId"))
			return
		}
		input.RegionID = &regionID
	}

	status, err := h.assignments.SetAvailability(c.Request.Context(), principal, input)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(status))
}

func (h *Handler) listMyAssignments(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	assignments, err := h.assignments.ListMine(c.Request.Context(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(assignments))
}

func (h *Handler) acceptAssignment(c *gin.Context) {
	h.advanceAssignment(c, h.assignments.Accept)
}

func (h *Handler) pickUpAssignment(c *gin.Context) {
	h.advanceAssignment(c, h.assignments.PickUp)
}

func (h *Handler) deliverAssignment(c *gin.Context) {
	h.advanceAssignment(c, h.assignments.Deliver)
}

func (h *Handler) rejectAssignment(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}
	id, ok := parseID(c, "invalid assignment id")
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := bindOptionalJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid request body"))
		return
	}

	result, err := h.assignments.Reject(c.Request.Context(), principal, id, req.Reason)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{
		"message":     "assignment rejected",
		"orderStatus": result.OrderStatus,
	}))
}

func (h *Handler) advanceAssignment(
	c *gin.Context,
	action func(context.Context, model.Principal, uuid.UUID) (*model.DriverAssignment, error),
) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}
	id, ok := parseID(c, "invalid assignment id")
	if !ok {
		return
	}

	assignment, err := action(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(assignment))
}

func toDispatchResponse(result *service.DispatchResult) dispatchResponse {
	resp := dispatchResponse{Status: string(result.OrderStatus)}
	if !result.Assigned() {
		resp.Message = "No driver available, order is waiting for a driver"
		return resp
	}

	resp.Success = true
	resp.Message = "Driver assigned"
	if result.Existing {
		resp.Message = "Order already has an active assignment"
	}
	if result.DriverID != nil {
		driverID := result.DriverID.String()
		resp.DriverID = &driverID
	}
	if result.Assignment != nil {
		assignmentID := result.Assignment.ID.String()
		resp.AssignmentID = &assignmentID
	}
	return resp
}

// bindOptionalJSON binds the body if one was sent; an empty body leaves out untouched.
func bindOptionalJSON(c *gin.Context, out interface{}) error {
	if err := c.ShouldBindJSON(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func parseID(c *gin.Context, message string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(message))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}
