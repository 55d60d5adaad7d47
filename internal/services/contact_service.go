// Package services – ContactService
//
// ContactService handles the public contact form. Unlike the generation
// routes it stores the message before calling the collaborator, and a
// delivery failure is logged without failing the request.
package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/genai-studio/internal/auth"
	"github.com/tbourn/genai-studio/internal/domain"
	"github.com/tbourn/genai-studio/internal/mailer"
	"github.com/tbourn/genai-studio/internal/observability"
	"github.com/tbourn/genai-studio/internal/repo"
)

const contactCapability = "contact"

// emailRE accepts local@domain.tld: no whitespace, one @, a dot in the domain.
var emailRE = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Mailer is the outbound email collaborator.
type Mailer interface {
	Send(ctx context.Context, m mailer.Mail) error
}

// ContactRequest is the contact-form body.
type ContactRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Message   string `json:"message"`
}

// ContactResult reports what happened to a submission.
type ContactResult struct {
	Message   ContactRequest
	ID        string
	Stored    bool
	Delivered bool
}

// ContactService validates, stores and forwards contact messages.
type ContactService struct {
	DB        *gorm.DB
	Users     *UserService
	Mailer    Mailer
	Recipient string

	MaxNameRunes    int
	MaxMessageRunes int
	TitleLocale     language.Tag
}

// NewContactService constructs a ContactService with default limits.
func NewContactService(db *gorm.DB, users *UserService, m Mailer, recipient string) *ContactService {
	return &ContactService{
		DB:              db,
		Users:           users,
		Mailer:          m,
		Recipient:       recipient,
		MaxNameRunes:    100,
		MaxMessageRunes: 5000,
		TitleLocale:     language.Und,
	}
}

// Submit handles one contact form. id may be empty: the route is public.
//
// Errors:
//   - ErrBadRequest (wrapped) for missing or malformed fields.
//   - ErrContactFailed when the message was neither stored nor delivered.
func (s *ContactService) Submit(ctx context.Context, id auth.Identity, req ContactRequest) (ContactResult, error) {
	tr := otel.Tracer("services/ContactService")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(attribute.Bool("authenticated", id.Subject != "")),
	)
	defer span.End()

	req, err := s.validate(req)
	if err != nil {
		observability.ObserveCapability(contactCapability, observability.OutcomeBadRequest, 0)
		return ContactResult{}, err
	}
	lg := zerolog.Ctx(ctx)
	res := ContactResult{Message: req}

	msg := &domain.ContactMessage{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Message:   req.Message,
	}
	if id.Subject != "" && s.Users != nil {
		if uid, err := s.Users.Resolve(ctx, id); err == nil {
			msg.UserID = &uid
		} else {
			lg.Warn().Err(err).Msg("contact: could not resolve sender; storing without user")
		}
	}

	storeErr := repo.CreateContactMessage(ctx, s.DB, msg)
	if storeErr != nil {
		observability.PersistenceFailures.WithLabelValues(contactCapability).Inc()
		lg.Error().Err(storeErr).Msg("contact message not stored")
	} else {
		res.Stored = true
		res.ID = msg.ID
	}

	sendErr := s.Mailer.Send(ctx, mailer.Mail{
		To:      s.Recipient,
		ReplyTo: req.Email,
		Subject: fmt.Sprintf("Contact form: %s %s", req.FirstName, req.LastName),
		Body:    contactBody(req),
	})
	if sendErr != nil {
		span.RecordError(sendErr)
		lg.Error().Err(sendErr).Str("contact_id", res.ID).Msg("contact email delivery failed")
	} else {
		res.Delivered = true
		if res.Stored {
			if err := repo.MarkContactDelivered(ctx, s.DB, msg.ID); err != nil {
				lg.Warn().Err(err).Str("contact_id", msg.ID).Msg("could not flag contact message as delivered")
			}
		}
	}

	if !res.Stored && !res.Delivered {
		observability.ObserveCapability(contactCapability, observability.OutcomeFailed, 0)
		return res, fmt.Errorf("%w: store: %v; send: %v", ErrContactFailed, storeErr, sendErr)
	}
	observability.ObserveCapability(contactCapability, observability.OutcomeOK, 0)
	return res, nil
}

func (s *ContactService) validate(req ContactRequest) (ContactRequest, error) {
	title := cases.Title(s.TitleLocale, cases.NoLower)
	req.FirstName = title.String(strings.TrimSpace(req.FirstName))
	req.LastName = title.String(strings.TrimSpace(req.LastName))
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Message = strings.TrimSpace(req.Message)

	switch {
	case req.FirstName == "":
		return req, fmt.Errorf("%w: firstName is required", ErrBadRequest)
	case req.LastName == "":
		return req, fmt.Errorf("%w: lastName is required", ErrBadRequest)
	case req.Email == "":
		return req, fmt.Errorf("%w: email is required", ErrBadRequest)
	case !emailRE.MatchString(req.Email):
		return req, fmt.Errorf("%w: email is invalid", ErrBadRequest)
	case req.Message == "":
		return req, fmt.Errorf("%w: message is required", ErrBadRequest)
	}
	if s.MaxNameRunes > 0 && (utf8.RuneCountInString(req.FirstName) > s.MaxNameRunes || utf8.RuneCountInString(req.LastName) > s.MaxNameRunes) {
		return req, fmt.Errorf("%w: name is too long", ErrBadRequest)
	}
	if s.MaxMessageRunes > 0 && utf8.RuneCountInString(req.Message) > s.MaxMessageRunes {
		return req, fmt.Errorf("%w: message is too long", ErrBadRequest)
	}
	return req, nil
}

func contactBody(r ContactRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s %s\n", r.FirstName, r.LastName)
	fmt.Fprintf(&b, "Email: %s\n", r.Email)
	if r.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", r.Phone)
	}
	b.WriteString("\n")
	b.WriteString(r.Message)
	b.WriteString("\n")
	return b.String()
}
