package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/ceramiquejlepage/contact-api/internal/config"
	"github.com/ceramiquejlepage/contact-api/internal/intake"
	"github.com/ceramiquejlepage/contact-api/internal/notify"
	"github.com/ceramiquejlepage/contact-api/internal/pkg/httputil"
	"github.com/ceramiquejlepage/contact-api/internal/pkg/logger"
	"github.com/ceramiquejlepage/contact-api/internal/recaptcha"
	"github.com/ceramiquejlepage/contact-api/internal/resend"
)

// Verifier gates submissions on bot risk.
type Verifier interface {
	Assess(ctx context.Context, token string) (*recaptcha.Outcome, error)
}

// Deliverer sends outbound email.
type Deliverer interface {
	Send(ctx context.Context, email *resend.Email) (string, error)
}

// ContactHandlers runs the submission pipeline:
// ingest -> bot gate -> validate -> compose -> deliver, with the spool
// reaped on every exit path.
type ContactHandlers struct {
	cfg       *config.Config
	verifier  Verifier
	deliverer Deliverer
	composer  *notify.Composer
}

// NewContactHandlers wires the pipeline stages together.
func NewContactHandlers(cfg *config.Config, verifier Verifier, deliverer Deliverer, composer *notify.Composer) *ContactHandlers {
	return &ContactHandlers{
		cfg:       cfg,
		verifier:  verifier,
		deliverer: deliverer,
		composer:  composer,
	}
}

// HandleSubmit processes one contact-form submission.
//
//	POST /api/contact (multipart/form-data)
func (h *ContactHandlers) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	opts := intake.Options{
		MaxFileBytes: h.cfg.Intake.MaxFileBytes(),
		MaxFiles:     h.cfg.Intake.MaxFileCount,
		SpoolDir:     h.cfg.Intake.SpoolDir,
	}

	// Aggregate body cap: the per-file limit for every allowed file
	// plus 1MiB of text fields and part framing.
	r.Body = http.MaxBytesReader(w, r.Body, opts.MaxFileBytes*int64(opts.MaxFiles)+(1<<20))

	sub, err := intake.Ingest(r, opts)
	if sub != nil {
		// Single cleanup point covering every exit below, including
		// panics (which the router's recoverer turns into a 500).
		defer intake.Reap(sub.Paths())
	}
	if err != nil {
		if errors.Is(err, intake.ErrPayloadTooLarge) {
			httputil.Fail(w, http.StatusRequestEntityTooLarge, "Un fichier dépasse la taille maximale autorisée")
			return
		}
		logger.Warn("unparseable submission body", "error", err)
		httputil.Fail(w, http.StatusBadRequest, "Requête invalide")
		return
	}

	token := sub.Token()
	if token == "" {
		// Fail closed without spending a call on the assessment API.
		httputil.Fail(w, http.StatusBadRequest, "Vérification anti-robot manquante")
		return
	}

	outcome, err := h.verifier.Assess(ctx, token)
	if err != nil {
		logger.Error("bot verification unavailable", "error", err)
		httputil.Fail(w, http.StatusInternalServerError, "Service de vérification indisponible")
		return
	}
	if !outcome.Accepted(h.cfg.Recaptcha.ScoreThreshold) {
		logger.Warn("submission rejected by bot gate",
			"valid", outcome.Valid,
			"score", outcome.Score,
			"reason", outcome.Reason)
		httputil.Fail(w, http.StatusBadRequest, "Échec de la vérification anti-robot")
		return
	}

	if missing := sub.MissingFields(); len(missing) > 0 {
		httputil.FailWithDetails(w, http.StatusBadRequest, "Champs requis manquants", missing)
		return
	}

	business, err := h.composer.ComposeBusiness(sub)
	if err != nil {
		logger.Error("composing business notification failed", "error", err)
		httputil.Fail(w, http.StatusInternalServerError, "Erreur interne du serveur")
		return
	}

	// Replies to the notification go straight back to the submitter.
	deliveryID, err := h.deliverer.Send(ctx, &resend.Email{
		From:        h.cfg.Resend.FromEmail,
		To:          []string{h.cfg.Resend.BusinessEmail},
		Subject:     business.Subject,
		HTML:        business.HTML,
		ReplyTo:     sub.Get(intake.FieldEmail),
		Attachments: toResendAttachments(business.Attachments),
	})
	if err != nil {
		if errors.Is(err, resend.ErrMissingAPIKey) {
			logger.Error("delivery service not configured")
			httputil.Fail(w, http.StatusInternalServerError, "Configuration manquante")
			return
		}
		logger.Error("business notification delivery failed", "error", err)
		httputil.Fail(w, http.StatusInternalServerError, "Erreur lors de l'envoi de l'email")
		return
	}

	logger.Info("submission delivered",
		"delivery_id", deliveryID,
		"submitter_email", sub.Get(intake.FieldEmail),
		"attachments", len(business.Attachments))

	h.sendConfirmation(ctx, sub)

	httputil.OK(w,
		"Votre demande a été envoyée avec succès! Nous vous contacterons sous peu.",
		map[string]string{"deliveryId": deliveryID})
}

// sendConfirmation sends the courtesy confirmation to the submitter.
// Best-effort: failure is logged and discarded so it can never affect
// the HTTP outcome. Replies to the confirmation route to the business
// inbox.
func (h *ContactHandlers) sendConfirmation(ctx context.Context, sub *intake.Submission) {
	conf, err := h.composer.ComposeConfirmation(sub)
	if err != nil {
		logger.Warn("composing confirmation failed", "error", err)
		return
	}
	_, err = h.deliverer.Send(ctx, &resend.Email{
		From:    h.cfg.Resend.FromEmail,
		To:      []string{sub.Get(intake.FieldEmail)},
		Subject: conf.Subject,
		HTML:    conf.HTML,
		ReplyTo: h.cfg.Resend.BusinessEmail,
	})
	if err != nil {
		logger.Warn("confirmation email failed",
			"submitter_email", sub.Get(intake.FieldEmail),
			"error", err)
	}
}

func toResendAttachments(payloads []notify.Payload) []resend.Attachment {
	if len(payloads) == 0 {
		return nil
	}
	attachments := make([]resend.Attachment, 0, len(payloads))
	for _, p := range payloads {
		attachments = append(attachments, resend.Attachment{
			Filename: p.Filename,
			Content:  p.Content,
		})
	}
	return attachments
}
