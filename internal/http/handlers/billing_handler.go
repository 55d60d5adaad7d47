// Billing HTTP handlers.
//
//   - POST /music            create a payment order (Idempotency-Key aware)
//   - POST /music/capture    capture an approved order into a subscription
//   - GET  /subscription     caller's current subscription, or null
//   - POST /subscription     cancel the current subscription
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/genai-studio/internal/http/middleware"
	"github.com/tbourn/genai-studio/internal/services"
)

// headerIdempotentReplay marks a response served from a stored key.
const headerIdempotentReplay = "Idempotent-Replay"

// OrderResponse is returned by the order-creation route.
type OrderResponse struct {
	Success     bool   `json:"success"     example:"true"`
	OrderID     string `json:"orderId"     example:"5O190127TN364715T"`
	ApprovalURL string `json:"approvalUrl" example:"https://www.sandbox.paypal.com/checkoutnow?token=5O190127TN364715T"`
}

// CaptureRequest is the body of the capture route.
type CaptureRequest struct {
	OrderID string `json:"orderId" example:"5O190127TN364715T"`
}

// StatusResponse is a generic success acknowledgement.
type StatusResponse struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message" example:"subscription cancelled"`
}

// CreateOrder godoc
// @ID          createPaymentOrder
// @Summary     Create a payment order for a plan
// @Description Creates an order at the payment provider. Retrying with the same Idempotency-Key returns the original order.
// @Tags        Billing
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header    string                 false  "Idempotency key"
// @Param       body             body      services.OrderRequest  true   "Plan and amount"
// @Success     200              {object}  handlers.OrderResponse
// @Header      200              {string}  Idempotent-Replay  "true when served from a stored key"
// @Failure     400              {object}  handlers.ErrorResponse  "planId or amount missing"
// @Failure     401              {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     404              {object}  handlers.ErrorResponse  "User not found"
// @Failure     500              {object}  handlers.ErrorResponse  "Payment provider failure"
// @Router      /music [post]
func (h *Handlers) CreateOrder(c *gin.Context) {
	var req services.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	key, _ := middleware.GetIdempotencyKey(c)
	res, err := h.billing.CreateOrder(c.Request.Context(), middleware.IdentityFrom(c), req, key)
	if err != nil {
		failFromErr(c, err)
		return
	}
	// The validator flags keys it has already seen; the service flags keys
	// that matched a stored order.
	if res.Replayed || middleware.IsReplay(c) {
		c.Header(headerIdempotentReplay, "true")
	}
	ok(c, http.StatusOK, OrderResponse{Success: true, OrderID: res.OrderID, ApprovalURL: res.ApprovalURL})
}

// CaptureOrder godoc
// @ID          capturePaymentOrder
// @Summary     Capture an approved order
// @Description Captures the order at the provider and activates the plan it was created for.
// @Tags        Billing
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.CaptureRequest  true  "Order to capture"
// @Success     200   {object}  domain.Subscription
// @Failure     400   {object}  handlers.ErrorResponse  "orderId missing"
// @Failure     401   {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     404   {object}  handlers.ErrorResponse  "User or order not found"
// @Failure     500   {object}  handlers.ErrorResponse  "Payment provider failure"
// @Router      /music/capture [post]
func (h *Handlers) CaptureOrder(c *gin.Context) {
	var req CaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	sub, err := h.billing.CaptureOrder(c.Request.Context(), middleware.IdentityFrom(c), req.OrderID)
	if err != nil {
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusOK, sub)
}

// GetSubscription godoc
// @ID          getSubscription
// @Summary     Current subscription
// @Description Returns the caller's most recent subscription, or null when there is none.
// @Tags        Billing
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  domain.Subscription
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     404  {object}  handlers.ErrorResponse  "User not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /subscription [get]
func (h *Handlers) GetSubscription(c *gin.Context) {
	sub, err := h.billing.CurrentSubscription(c.Request.Context(), middleware.IdentityFrom(c))
	if err != nil {
		failFromErr(c, err)
		return
	}
	if sub == nil {
		c.JSON(http.StatusOK, nil)
		return
	}
	ok(c, http.StatusOK, sub)
}

// CancelSubscription godoc
// @ID          cancelSubscription
// @Summary     Cancel the current subscription
// @Description Cancelling an already-cancelled subscription succeeds and keeps the original end time.
// @Tags        Billing
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.StatusResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     404  {object}  handlers.ErrorResponse  "User or subscription not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /subscription [post]
func (h *Handlers) CancelSubscription(c *gin.Context) {
	if _, err := h.billing.CancelSubscription(c.Request.Context(), middleware.IdentityFrom(c)); err != nil {
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusOK, StatusResponse{Success: true, Message: "subscription cancelled"})
}
