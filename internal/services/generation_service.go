// Package services – GenerationService
//
// GenerationService wires the code, conversation, image and video
// capabilities into the generic Pipeline and serves the stored video list.
//
// Observability: pipeline runs and listing are OpenTelemetry-instrumented
// and persistence failures are counted, never surfaced.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/genai-studio/internal/auth"
	"github.com/tbourn/genai-studio/internal/domain"
	"github.com/tbourn/genai-studio/internal/imagegen"
	"github.com/tbourn/genai-studio/internal/repo"
	"github.com/tbourn/genai-studio/internal/utils"
)

const (
	roleUser      = "user"
	roleAssistant = "assistant"
	roleSystem    = "system"

	codeInstruction = "You are a code generator. You must answer only in markdown code snippets. Use code comments for explanations."
)

// TextGenerator is the text-completion collaborator.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// ImageGenerator is the image-provider collaborator.
type ImageGenerator interface {
	GenerateImages(ctx context.Context, prompt string, count int, style string) ([]imagegen.Image, error)
}

// VideoGenerator is the video-provider collaborator.
type VideoGenerator interface {
	GenerateVideo(ctx context.Context, prompt string) (imagegen.Video, error)
}

// AssetMirror copies a generated asset to owned storage and returns the URL
// to hand out. Implementations return src unchanged on failure.
type AssetMirror interface {
	MirrorURL(ctx context.Context, src string) string
}

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TextRequest is the body of the code and conversation routes.
type TextRequest struct {
	Messages []ChatMessage `json:"messages"`
}

// TextReply is the assistant turn returned by the text routes.
type TextReply struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ImageRequest is the body of the image route. Amount defaults to 1.
type ImageRequest struct {
	Prompt string `json:"prompt"`
	Amount int    `json:"amount,omitempty"`
	Style  string `json:"style,omitempty"`
}

// VideoRequest is the body of the video route.
type VideoRequest struct {
	Prompt string `json:"prompt"`
}

// GenerationStore saves generation records, resolving the owning user
// lazily. It implements RecordStore.
type GenerationStore struct {
	DB    *gorm.DB
	Users *UserService
}

// SaveGeneration resolves (or creates) the user for id and inserts g.
func (s *GenerationStore) SaveGeneration(ctx context.Context, id auth.Identity, g *domain.Generation) error {
	uid, err := s.Users.Resolve(ctx, id)
	if err != nil {
		return fmt.Errorf("resolve user: %w", err)
	}
	g.UserID = uid
	return repo.CreateGeneration(ctx, s.DB, g)
}

// GenerationService exposes one method per generation route.
type GenerationService struct {
	DB    *gorm.DB
	Users *UserService

	code         *Pipeline[TextRequest, string, TextReply]
	conversation *Pipeline[TextRequest, string, TextReply]
	image        *Pipeline[ImageRequest, []imagegen.Image, []imagegen.Image]
	video        *Pipeline[VideoRequest, imagegen.Video, imagegen.Video]
}

// GenerationDeps groups the collaborators of GenerationService.
type GenerationDeps struct {
	DB    *gorm.DB
	Users *UserService
	Store RecordStore // defaults to a GenerationStore over DB/Users

	Text   TextGenerator
	Images ImageGenerator
	Videos VideoGenerator
	Mirror AssetMirror // optional

	Model          string
	ImageMaxAmount int
}

// NewGenerationService builds the four capability pipelines.
func NewGenerationService(d GenerationDeps) *GenerationService {
	store := d.Store
	if store == nil {
		store = &GenerationStore{DB: d.DB, Users: d.Users}
	}
	if d.ImageMaxAmount <= 0 {
		d.ImageMaxAmount = 4
	}
	return &GenerationService{
		DB:           d.DB,
		Users:        d.Users,
		code:         NewPipeline(textCapability(domain.CapabilityCode, codeInstruction, d.Text, d.Model), store),
		conversation: NewPipeline(textCapability(domain.CapabilityConversation, "", d.Text, d.Model), store),
		image:        NewPipeline(imageCapability(d.Images, d.Mirror, d.ImageMaxAmount), store),
		video:        NewPipeline(videoCapability(d.Videos, d.Mirror), store),
	}
}

// Code answers with markdown code snippets.
func (s *GenerationService) Code(ctx context.Context, id auth.Identity, req TextRequest) (TextReply, error) {
	return s.code.Run(ctx, id, req)
}

// Conversation answers the last user turn in context.
func (s *GenerationService) Conversation(ctx context.Context, id auth.Identity, req TextRequest) (TextReply, error) {
	return s.conversation.Run(ctx, id, req)
}

// Images generates req.Amount images.
func (s *GenerationService) Images(ctx context.Context, id auth.Identity, req ImageRequest) ([]imagegen.Image, error) {
	return s.image.Run(ctx, id, req)
}

// Video generates one clip.
func (s *GenerationService) Video(ctx context.Context, id auth.Identity, req VideoRequest) (imagegen.Video, error) {
	return s.video.Run(ctx, id, req)
}

// ListVideos returns the caller's stored video records, newest first.
// Lookup or database failures are logged and yield an empty list.
func (s *GenerationService) ListVideos(ctx context.Context, id auth.Identity, limit int) ([]domain.Generation, error) {
	tr := otel.Tracer("services/GenerationService")
	ctx, span := tr.Start(ctx, "ListVideos",
		trace.WithAttributes(attribute.Int("limit", limit)),
	)
	defer span.End()

	if id.Subject == "" {
		return nil, ErrUnauthorized
	}
	empty := []domain.Generation{}

	uid, err := s.Users.Find(ctx, id.Subject)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("video listing: user lookup failed; returning empty list")
		}
		return empty, nil
	}
	items, err := repo.ListGenerations(ctx, s.DB, uid, domain.CapabilityVideo, limit)
	if err != nil {
		span.RecordError(err)
		zerolog.Ctx(ctx).Warn().Err(err).Uint("user_id", uid).Msg("video listing failed; returning empty list")
		return empty, nil
	}
	if items == nil {
		return empty, nil
	}
	return items, nil
}

// VideosStats returns count and newest timestamp of the caller's videos for
// conditional GETs. An unknown user has zero videos.
func (s *GenerationService) VideosStats(ctx context.Context, id auth.Identity) (int64, *time.Time, error) {
	uid, err := s.Users.Find(ctx, id.Subject)
	if errors.Is(err, ErrUserNotFound) {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, err
	}
	return repo.GenerationsStats(ctx, s.DB, uid, domain.CapabilityVideo)
}

// ---- capability descriptors ----

func textCapability(c domain.Capability, instruction string, gen TextGenerator, model string) Capability[TextRequest, string, TextReply] {
	return Capability[TextRequest, string, TextReply]{
		Name:     string(c),
		Validate: validateMessages,
		Invoke: func(ctx context.Context, req TextRequest) (string, error) {
			return gen.GenerateText(ctx, buildPrompt(instruction, req.Messages))
		},
		Record: func(req TextRequest, out string) *domain.Generation {
			reply := TextReply{Role: roleAssistant, Content: out}
			return &domain.Generation{
				Capability: c,
				Prompt:     lastUserContent(req.Messages),
				Input:      mustJSON(req),
				Output:     mustJSON(reply),
				Metadata:   mustJSON(map[string]any{"model": model, "history": req.Messages}),
			}
		},
		Shape: func(_ TextRequest, out string) TextReply {
			return TextReply{Role: roleAssistant, Content: out}
		},
	}
}

func imageCapability(gen ImageGenerator, mirror AssetMirror, maxAmount int) Capability[ImageRequest, []imagegen.Image, []imagegen.Image] {
	return Capability[ImageRequest, []imagegen.Image, []imagegen.Image]{
		Name: string(domain.CapabilityImage),
		Validate: func(req *ImageRequest) error {
			req.Prompt = strings.TrimSpace(req.Prompt)
			if req.Prompt == "" {
				return fmt.Errorf("%w: prompt is required", ErrBadRequest)
			}
			if req.Amount < 0 {
				return fmt.Errorf("%w: amount must be positive", ErrBadRequest)
			}
			if req.Amount == 0 {
				req.Amount = 1
			}
			req.Amount = utils.ClampInt(req.Amount, 1, maxAmount)
			req.Style = strings.TrimSpace(req.Style)
			return nil
		},
		Invoke: func(ctx context.Context, req ImageRequest) ([]imagegen.Image, error) {
			imgs, err := gen.GenerateImages(ctx, req.Prompt, req.Amount, req.Style)
			if err != nil {
				return nil, err
			}
			if mirror != nil {
				for i := range imgs {
					imgs[i].URL = mirror.MirrorURL(ctx, imgs[i].URL)
				}
			}
			return imgs, nil
		},
		Record: func(req ImageRequest, out []imagegen.Image) *domain.Generation {
			return &domain.Generation{
				Capability: domain.CapabilityImage,
				Prompt:     req.Prompt,
				Input:      mustJSON(req),
				Output:     mustJSON(out),
				Metadata:   mustJSON(map[string]any{"style": req.Style, "amount": req.Amount}),
			}
		},
		Shape: func(_ ImageRequest, out []imagegen.Image) []imagegen.Image { return out },
	}
}

func videoCapability(gen VideoGenerator, mirror AssetMirror) Capability[VideoRequest, imagegen.Video, imagegen.Video] {
	return Capability[VideoRequest, imagegen.Video, imagegen.Video]{
		Name: string(domain.CapabilityVideo),
		Validate: func(req *VideoRequest) error {
			req.Prompt = strings.TrimSpace(req.Prompt)
			if req.Prompt == "" {
				return fmt.Errorf("%w: prompt is required", ErrBadRequest)
			}
			return nil
		},
		Invoke: func(ctx context.Context, req VideoRequest) (imagegen.Video, error) {
			v, err := gen.GenerateVideo(ctx, req.Prompt)
			if err != nil {
				return imagegen.Video{}, err
			}
			if mirror != nil {
				v.URL = mirror.MirrorURL(ctx, v.URL)
			}
			return v, nil
		},
		Record: func(req VideoRequest, out imagegen.Video) *domain.Generation {
			return &domain.Generation{
				Capability: domain.CapabilityVideo,
				Prompt:     req.Prompt,
				Input:      mustJSON(req),
				Output:     mustJSON(out),
			}
		},
		Shape: func(_ VideoRequest, out imagegen.Video) imagegen.Video { return out },
	}
}

// validateMessages requires a non-empty list of turns with known roles and
// non-blank content. Roles are lower-cased; a missing role means user.
func validateMessages(req *TextRequest) error {
	if len(req.Messages) == 0 {
		return fmt.Errorf("%w: messages are required", ErrBadRequest)
	}
	hasUser := false
	for i := range req.Messages {
		m := &req.Messages[i]
		m.Role = strings.ToLower(strings.TrimSpace(m.Role))
		if m.Role == "" {
			m.Role = roleUser
		}
		switch m.Role {
		case roleUser:
			hasUser = true
		case roleAssistant, roleSystem:
		default:
			return fmt.Errorf("%w: messages[%d].role %q is not supported", ErrBadRequest, i, m.Role)
		}
		if strings.TrimSpace(m.Content) == "" {
			return fmt.Errorf("%w: messages[%d].content is required", ErrBadRequest, i)
		}
	}
	if !hasUser {
		return fmt.Errorf("%w: messages need at least one user turn", ErrBadRequest)
	}
	return nil
}

// buildPrompt flattens an optional instruction plus the transcript into one
// prompt, one "role: content" line per turn.
func buildPrompt(instruction string, msgs []ChatMessage) string {
	var b strings.Builder
	if instruction != "" {
		b.WriteString(roleSystem)
		b.WriteString(": ")
		b.WriteString(instruction)
		b.WriteString("\n\n")
	}
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(strings.TrimSpace(m.Content))
	}
	b.WriteString("\n")
	b.WriteString(roleAssistant)
	b.WriteString(":")
	return b.String()
}

func lastUserContent(msgs []ChatMessage) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == roleUser {
			return msgs[i].Content
		}
	}
	return ""
}

func mustJSON(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(b)
}
