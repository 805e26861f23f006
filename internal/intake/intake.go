// Package intake parses multipart contact-form submissions and manages
// their request-scoped spool files.
package intake

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ceramiquejlepage/contact-api/internal/pkg/logger"
)

// Form field names accepted by the contact endpoint.
const (
	FieldFirstName   = "first-name"
	FieldLastName    = "last-name"
	FieldEmail       = "email"
	FieldPhone       = "phone"
	FieldProjectType = "project-type"
	FieldTileType    = "tile-type"
	FieldArea        = "area"
	FieldMessage     = "message"
	FieldToken       = "verification-token"
)

// File parts are accepted under both the singular and plural name;
// some form builders pluralize the field when multiple files are
// selected.
var fileFields = map[string]bool{
	"image":  true,
	"images": true,
}

var requiredFields = []string{FieldFirstName, FieldLastName, FieldEmail, FieldMessage}

var (
	// ErrMalformedBody means the request body could not be parsed as
	// multipart form data.
	ErrMalformedBody = errors.New("malformed multipart body")

	// ErrPayloadTooLarge means a file (or the aggregate body) exceeded
	// the configured size cap.
	ErrPayloadTooLarge = errors.New("payload too large")
)

// maxFieldBytes bounds a single text field value.
const maxFieldBytes = 1 << 20

// Options configure multipart ingestion.
type Options struct {
	MaxFileBytes int64
	MaxFiles     int
	SpoolDir     string
}

// Attachment is a reference to a spooled upload. The spool file is
// owned by the Submission and reclaimed by Reap; nothing else deletes
// it.
type Attachment struct {
	OriginalName string
	ContentType  string
	Size         int64
	Path         string
}

// Submission is a parsed contact-form request: normalized text fields
// plus the ordered attachments spooled from the body. Immutable after
// Ingest returns.
type Submission struct {
	Fields      map[string]string
	Attachments []Attachment
}

// Ingest streams the multipart body into a Submission. Text fields
// normalize to a single value (first value wins); file parts are
// spooled to unique files under opts.SpoolDir with the per-file cap
// enforced during the copy, so an oversized upload is rejected before
// it fills the spool.
//
// On error the returned Submission (when non-nil) still lists every
// attachment spooled so far, so the caller can reap them. Callers
// should bound the aggregate body with http.MaxBytesReader before
// ingesting; the resulting limit error surfaces here as
// ErrPayloadTooLarge.
func Ingest(r *http.Request, opts Options) (*Submission, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}

	sub := &Submission{Fields: make(map[string]string)}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return sub, nil
		}
		if err != nil {
			if isBodyLimit(err) {
				return sub, ErrPayloadTooLarge
			}
			return sub, fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}

		name := part.FormName()
		if name == "" {
			part.Close()
			continue
		}

		if part.FileName() == "" && !fileFields[name] {
			val, err := readFieldValue(part)
			part.Close()
			if err != nil {
				if isBodyLimit(err) || errors.Is(err, ErrPayloadTooLarge) {
					return sub, ErrPayloadTooLarge
				}
				return sub, fmt.Errorf("%w: %v", ErrMalformedBody, err)
			}
			// First value wins for repeated fields.
			if _, seen := sub.Fields[name]; !seen {
				sub.Fields[name] = strings.TrimSpace(val)
			}
			continue
		}

		// File part. Parts without a usable filename are dropped
		// silently, as are parts under unexpected field names.
		if !fileFields[name] || part.FileName() == "" {
			drain(part)
			continue
		}

		if len(sub.Attachments) >= opts.MaxFiles {
			logger.Warn("attachment limit reached, dropping file",
				"limit", opts.MaxFiles,
				"filename", part.FileName())
			drain(part)
			continue
		}

		att, err := spoolPart(part, opts)
		part.Close()
		if err != nil {
			if isBodyLimit(err) || errors.Is(err, ErrPayloadTooLarge) {
				return sub, ErrPayloadTooLarge
			}
			return sub, fmt.Errorf("spooling %q: %w", part.FileName(), err)
		}
		sub.Attachments = append(sub.Attachments, att)
	}
}

// spoolPart copies one file part to a unique spool file, enforcing the
// per-file cap during the copy. A partial file left by a failed or
// oversized copy is removed before returning.
func spoolPart(part *multipart.Part, opts Options) (Attachment, error) {
	path := filepath.Join(opts.SpoolDir, uuid.New().String()+safeExt(part.FileName()))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return Attachment{}, fmt.Errorf("creating spool file: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(part, opts.MaxFileBytes+1))
	closeErr := f.Close()
	if err != nil {
		os.Remove(path)
		return Attachment{}, err
	}
	if closeErr != nil {
		os.Remove(path)
		return Attachment{}, closeErr
	}
	if n > opts.MaxFileBytes {
		os.Remove(path)
		logger.Warn("upload exceeds per-file cap",
			"filename", part.FileName(),
			"cap_bytes", opts.MaxFileBytes)
		return Attachment{}, ErrPayloadTooLarge
	}

	contentType := part.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return Attachment{
		OriginalName: part.FileName(),
		ContentType:  contentType,
		Size:         n,
		Path:         path,
	}, nil
}

func readFieldValue(part *multipart.Part) (string, error) {
	b, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
	if err != nil {
		return "", err
	}
	if len(b) > maxFieldBytes {
		logger.Warn("text field exceeds size cap",
			"field", part.FormName(),
			"cap_bytes", maxFieldBytes)
		return "", ErrPayloadTooLarge
	}
	return string(b), nil
}

func drain(part *multipart.Part) {
	io.Copy(io.Discard, part)
	part.Close()
}

// isBodyLimit reports whether err came from http.MaxBytesReader
// tripping the aggregate body cap.
func isBodyLimit(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

// safeExt returns a lowercase, sanitized extension for spool file
// names, or "" when the original has none worth keeping.
func safeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) < 2 || len(ext) > 8 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}

// Get returns the normalized value of a text field.
func (s *Submission) Get(name string) string {
	return s.Fields[name]
}

// Token returns the client-supplied bot-verification token.
func (s *Submission) Token() string {
	return s.Fields[FieldToken]
}

// MissingFields returns the mandatory fields that are empty after
// trimming, in declaration order. An empty result means the submission
// is valid.
func (s *Submission) MissingFields() []string {
	var missing []string
	for _, name := range requiredFields {
		if strings.TrimSpace(s.Fields[name]) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// Paths returns the spool paths of every attachment, for the reaper.
func (s *Submission) Paths() []string {
	paths := make([]string, 0, len(s.Attachments))
	for _, att := range s.Attachments {
		paths = append(paths, att.Path)
	}
	return paths
}
