package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/genai-studio/internal/http/middleware"
	"github.com/tbourn/genai-studio/internal/services"
)

// ContactResponse acknowledges a contact-form submission. Data echoes the
// normalised fields.
type ContactResponse struct {
	Success bool                    `json:"success" example:"true"`
	Message string                  `json:"message" example:"message received"`
	Data    services.ContactRequest `json:"data"`
}

// Contact godoc
// @ID          submitContact
// @Summary     Submit the contact form
// @Description Public. The message is stored first and then forwarded by email; a delivery failure alone does not fail the request.
// @Tags        Contact
// @Accept      json
// @Produce     json
// @Param       body  body      services.ContactRequest  true  "Contact form"
// @Success     200   {object}  handlers.ContactResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Missing or invalid fields"
// @Failure     500   {object}  handlers.ErrorResponse  "Message could not be stored or sent"
// @Router      /email/contact [post]
func (h *Handlers) Contact(c *gin.Context) {
	var req services.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	res, err := h.contact.Submit(c.Request.Context(), middleware.IdentityFrom(c), req)
	if err != nil {
		failFromErr(c, err)
		return
	}
	msg := "message received"
	if !res.Delivered {
		msg = "message stored, email delivery pending"
	}
	ok(c, http.StatusOK, ContactResponse{Success: true, Message: msg, Data: res.Message})
}
