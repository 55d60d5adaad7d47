// Generation HTTP handlers.
//
//   - POST /code                text generation answering in code snippets
//   - POST /conversation        free conversation
//   - POST /gemini/image        image generation
//   - POST /video               video generation
//   - GET  /video/user-videos   caller's stored videos (ETag support)
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/genai-studio/internal/domain"
	"github.com/tbourn/genai-studio/internal/http/middleware"
	"github.com/tbourn/genai-studio/internal/imagegen"
	"github.com/tbourn/genai-studio/internal/services"
	"github.com/tbourn/genai-studio/internal/utils"
)

// VideoRecord is one stored video as returned by the listing route.
type VideoRecord struct {
	ID        string    `json:"id"        example:"6f1c2c8e-1d7a-4c1b-9a53-0b8f7f7f2c11"`
	Prompt    string    `json:"prompt"    example:"waves at sunset"`
	URL       string    `json:"url"       example:"https://cdn.example.com/videos/6f1c.mp4"`
	CreatedAt time.Time `json:"createdAt"`
}

func toVideoRecords(items []domain.Generation) []VideoRecord {
	out := make([]VideoRecord, 0, len(items))
	for _, g := range items {
		var v imagegen.Video
		_ = json.Unmarshal(g.Output, &v)
		out = append(out, VideoRecord{ID: g.ID, Prompt: g.Prompt, URL: v.URL, CreatedAt: g.CreatedAt})
	}
	return out
}

// Code godoc
// @ID          generateCode
// @Summary     Generate code
// @Description Answers the conversation with markdown code snippets only.
// @Tags        Generation
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      services.TextRequest  true  "Conversation so far"
// @Success     200   {object}  services.TextReply
// @Failure     400   {object}  handlers.ErrorResponse  "messages missing or invalid"
// @Failure     401   {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     500   {object}  handlers.ErrorResponse  "Capability failure"
// @Router      /code [post]
func (h *Handlers) Code(c *gin.Context) {
	var req services.TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	reply, err := h.gen.Code(c.Request.Context(), middleware.IdentityFrom(c), req)
	if err != nil {
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusOK, reply)
}

// Conversation godoc
// @ID          converse
// @Summary     Continue a conversation
// @Tags        Generation
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      services.TextRequest  true  "Conversation so far"
// @Success     200   {object}  services.TextReply
// @Failure     400   {object}  handlers.ErrorResponse  "messages missing or invalid"
// @Failure     401   {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     500   {object}  handlers.ErrorResponse  "Capability failure"
// @Router      /conversation [post]
func (h *Handlers) Conversation(c *gin.Context) {
	var req services.TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	reply, err := h.gen.Conversation(c.Request.Context(), middleware.IdentityFrom(c), req)
	if err != nil {
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusOK, reply)
}

// Image godoc
// @ID          generateImages
// @Summary     Generate images
// @Description Returns amount (default 1) image URLs for the prompt. Amounts above the configured maximum are clamped.
// @Tags        Generation
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      services.ImageRequest  true  "Prompt and options"
// @Success     200   {array}   imagegen.Image
// @Failure     400   {object}  handlers.ErrorResponse  "prompt missing or amount negative"
// @Failure     401   {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     500   {object}  handlers.ErrorResponse  "Capability failure"
// @Router      /gemini/image [post]
func (h *Handlers) Image(c *gin.Context) {
	var req services.ImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	imgs, err := h.gen.Images(c.Request.Context(), middleware.IdentityFrom(c), req)
	if err != nil {
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusOK, imgs)
}

// Video godoc
// @ID          generateVideo
// @Summary     Generate a video
// @Tags        Generation
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      services.VideoRequest  true  "Prompt"
// @Success     200   {object}  imagegen.Video
// @Failure     400   {object}  handlers.ErrorResponse  "prompt missing"
// @Failure     401   {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     500   {object}  handlers.ErrorResponse  "Capability failure"
// @Router      /video [post]
func (h *Handlers) Video(c *gin.Context) {
	var req services.VideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	v, err := h.gen.Video(c.Request.Context(), middleware.IdentityFrom(c), req)
	if err != nil {
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusOK, v)
}

// ListVideos godoc
// @ID          listUserVideos
// @Summary     List the caller's videos
// @Description Newest first. Returns every stored video unless limit is set. Storage failures yield an empty list, never an error. Supports a weak ETag via If-None-Match.
// @Tags        Generation
// @Produce     json
// @Security    BearerAuth
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       limit          query   int     false  "Max items; omit or 0 for all"  minimum(0)
// @Success     200  {array}   handlers.VideoRecord
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Router      /video/user-videos [get]
func (h *Handlers) ListVideos(c *gin.Context) {
	ctx := c.Request.Context()
	id := middleware.IdentityFrom(c)
	// 0 lists everything.
	limit := max(utils.AtoiDefault(c.Query("limit"), 0), 0)

	// ETag pre-check (best effort).
	if count, latest, err := h.gen.VideosStats(ctx, id); err == nil {
		var ts int64
		if latest != nil {
			ts = latest.UnixNano()
		}
		etag := utils.WeakETag("videos", count, ts, limit)
		c.Header("ETag", etag)
		if utils.ETagMatches(c.GetHeader("If-None-Match"), etag) {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, err := h.gen.ListVideos(ctx, id, limit)
	if err != nil {
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusOK, toVideoRecords(items))
}
