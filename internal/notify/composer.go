// Package notify renders the business notification and submitter
// confirmation emails for a validated submission.
package notify

import (
	"embed"
	"fmt"
	"html"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/osteele/liquid"

	"github.com/ceramiquejlepage/contact-api/internal/intake"
	"github.com/ceramiquejlepage/contact-api/internal/pkg/logger"
)

//go:embed templates/*.liquid
var templateFS embed.FS

// Message is a rendered email body plus its attachment payloads, ready
// for the delivery client.
type Message struct {
	Subject     string
	HTML        string
	Attachments []Payload
}

// Payload is one attachment read from the spool.
type Payload struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Composer renders email bodies from Liquid templates.
type Composer struct {
	businessTpl     *liquid.Template
	confirmationTpl *liquid.Template
}

// NewComposer parses the embedded templates. Template errors are
// programming errors and fail startup.
func NewComposer() (*Composer, error) {
	engine := liquid.NewEngine()

	// Newlines in the free-text message become <br> in the HTML body.
	// Escaping happens here too so the template can apply a single
	// filter to untrusted text.
	engine.RegisterFilter("nl2br", func(s string) string {
		return strings.ReplaceAll(html.EscapeString(s), "\n", "<br>")
	})

	businessTpl, err := parseTemplate(engine, "templates/business.html.liquid")
	if err != nil {
		return nil, err
	}
	confirmationTpl, err := parseTemplate(engine, "templates/confirmation.html.liquid")
	if err != nil {
		return nil, err
	}

	return &Composer{
		businessTpl:     businessTpl,
		confirmationTpl: confirmationTpl,
	}, nil
}

func parseTemplate(engine *liquid.Engine, name string) (*liquid.Template, error) {
	src, err := templateFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading template %s: %w", name, err)
	}
	tpl, err := engine.ParseTemplate(src)
	if err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", name, err)
	}
	return tpl, nil
}

// ComposeBusiness renders the notification for the business inbox,
// including every populated optional field and the attachment payloads
// read from the spool. An unreadable attachment is logged and skipped,
// never fatal.
func (c *Composer) ComposeBusiness(sub *intake.Submission) (*Message, error) {
	attachments := c.readAttachments(sub)

	bindings := liquid.Bindings{
		"first_name": sub.Get(intake.FieldFirstName),
		"last_name":  sub.Get(intake.FieldLastName),
		"full_name":  fullName(sub),
		"email":      sub.Get(intake.FieldEmail),
		"message":    sub.Get(intake.FieldMessage),
		"received":   montrealNow().Format("2006-01-02 15:04"),
	}
	// Optional fields are bound only when populated so the template's
	// {% if %} blocks omit the row entirely instead of rendering an
	// empty placeholder.
	bindOptional(bindings, "phone", sub.Get(intake.FieldPhone))
	bindOptional(bindings, "project_type", sub.Get(intake.FieldProjectType))
	bindOptional(bindings, "tile_type", sub.Get(intake.FieldTileType))
	bindOptional(bindings, "area", sub.Get(intake.FieldArea))
	if len(attachments) > 0 {
		bindings["attachment_count"] = len(attachments)
	}

	body, err := c.businessTpl.RenderString(bindings)
	if err != nil {
		return nil, fmt.Errorf("rendering business notification: %w", err)
	}

	projectType := sub.Get(intake.FieldProjectType)
	if projectType == "" {
		projectType = "Non spécifié"
	}

	return &Message{
		Subject:     fmt.Sprintf("Nouvelle soumission - %s (%s)", fullName(sub), projectType),
		HTML:        body,
		Attachments: attachments,
	}, nil
}

// ComposeConfirmation renders the courtesy confirmation sent back to
// the submitter. It never carries attachments.
func (c *Composer) ComposeConfirmation(sub *intake.Submission) (*Message, error) {
	body, err := c.confirmationTpl.RenderString(liquid.Bindings{
		"first_name": sub.Get(intake.FieldFirstName),
	})
	if err != nil {
		return nil, fmt.Errorf("rendering confirmation: %w", err)
	}

	return &Message{
		Subject: "Confirmation de votre demande de soumission - Céramique JLepage",
		HTML:    body,
	}, nil
}

func (c *Composer) readAttachments(sub *intake.Submission) []Payload {
	var payloads []Payload
	for _, att := range sub.Attachments {
		content, err := os.ReadFile(att.Path)
		if err != nil {
			logger.Warn("attachment unreadable, excluded from notification",
				"filename", att.OriginalName,
				"path", att.Path,
				"error", err)
			continue
		}
		payloads = append(payloads, Payload{
			Filename:    SanitizeFilename(att.OriginalName),
			ContentType: att.ContentType,
			Content:     content,
		})
	}
	return payloads
}

func bindOptional(bindings liquid.Bindings, key, value string) {
	if value != "" {
		bindings[key] = value
	}
}

func fullName(sub *intake.Submission) string {
	return strings.TrimSpace(sub.Get(intake.FieldFirstName) + " " + sub.Get(intake.FieldLastName))
}

func montrealNow() time.Time {
	loc, err := time.LoadLocation("America/Montreal")
	if err != nil {
		return time.Now().UTC()
	}
	return time.Now().In(loc)
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeFilename restricts a recipient-visible filename to a safe
// character set. Names with no salvageable stem are synthesized from a
// timestamp plus the original extension.
func SanitizeFilename(name string) string {
	ext := ""
	stem := name
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		candidate := strings.ToLower(name[idx:])
		if len(candidate) >= 2 && len(candidate) <= 8 && !unsafeFilenameChars.MatchString(candidate[1:]) {
			stem, ext = name[:idx], candidate
		}
	}
	stem = unsafeFilenameChars.ReplaceAllString(stem, "-")
	stem = strings.Trim(stem, "-.")
	if stem == "" {
		return fmt.Sprintf("piece-jointe-%d%s", time.Now().Unix(), ext)
	}
	return stem + ext
}
