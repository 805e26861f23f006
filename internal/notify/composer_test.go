package notify

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceramiquejlepage/contact-api/internal/intake"
)

func newTestComposer(t *testing.T) *Composer {
	t.Helper()
	c, err := NewComposer()
	require.NoError(t, err)
	return c
}

func baseSubmission() *intake.Submission {
	return &intake.Submission{Fields: map[string]string{
		intake.FieldFirstName: "Alice",
		intake.FieldLastName:  "Doe",
		intake.FieldEmail:     "alice@example.com",
		intake.FieldMessage:   "J'aimerais une soumission",
	}}
}

func TestComposeBusinessIncludesPopulatedOptionalFields(t *testing.T) {
	c := newTestComposer(t)
	sub := baseSubmission()
	sub.Fields[intake.FieldPhone] = "(514) 555-0199"
	sub.Fields[intake.FieldProjectType] = "Salle de bain"
	sub.Fields[intake.FieldTileType] = "Porcelaine"
	sub.Fields[intake.FieldArea] = "120 pi2"

	msg, err := c.ComposeBusiness(sub)
	require.NoError(t, err)

	assert.Equal(t, "Nouvelle soumission - Alice Doe (Salle de bain)", msg.Subject)
	assert.Contains(t, msg.HTML, "Alice Doe")
	assert.Contains(t, msg.HTML, "alice@example.com")
	assert.Contains(t, msg.HTML, "(514) 555-0199")
	assert.Contains(t, msg.HTML, "Porcelaine")
	assert.Contains(t, msg.HTML, "120 pi2")
}

func TestComposeBusinessOmitsAbsentOptionalFields(t *testing.T) {
	c := newTestComposer(t)

	msg, err := c.ComposeBusiness(baseSubmission())
	require.NoError(t, err)

	assert.Equal(t, "Nouvelle soumission - Alice Doe (Non spécifié)", msg.Subject)
	// Absent fields leave no empty placeholder rows behind.
	assert.NotContains(t, msg.HTML, "Téléphone")
	assert.NotContains(t, msg.HTML, "Type de projet")
	assert.NotContains(t, msg.HTML, "Photos jointes")
}

func TestComposeBusinessEscapesUserContent(t *testing.T) {
	c := newTestComposer(t)
	sub := baseSubmission()
	sub.Fields[intake.FieldMessage] = "ligne un\nligne deux <script>alert(1)</script>"

	msg, err := c.ComposeBusiness(sub)
	require.NoError(t, err)

	assert.Contains(t, msg.HTML, "ligne un<br>ligne deux")
	assert.Contains(t, msg.HTML, "&lt;script&gt;")
	assert.NotContains(t, msg.HTML, "<script>alert")
}

func TestComposeBusinessReadsAttachments(t *testing.T) {
	c := newTestComposer(t)
	dir := t.TempDir()

	good := filepath.Join(dir, "spool-1.jpg")
	require.NoError(t, os.WriteFile(good, []byte("jpegdata"), 0o600))

	sub := baseSubmission()
	sub.Attachments = []intake.Attachment{
		{OriginalName: "ma cuisine!.jpg", ContentType: "image/jpeg", Size: 8, Path: good},
		{OriginalName: "perdu.png", ContentType: "image/png", Size: 4, Path: filepath.Join(dir, "gone.png")},
	}

	msg, err := c.ComposeBusiness(sub)
	require.NoError(t, err, "an unreadable attachment is skipped, not fatal")

	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "ma-cuisine.jpg", msg.Attachments[0].Filename)
	assert.Equal(t, []byte("jpegdata"), msg.Attachments[0].Content)
	assert.Contains(t, msg.HTML, "Photos jointes")
}

func TestComposeConfirmation(t *testing.T) {
	c := newTestComposer(t)

	msg, err := c.ComposeConfirmation(baseSubmission())
	require.NoError(t, err)

	assert.Equal(t, "Confirmation de votre demande de soumission - Céramique JLepage", msg.Subject)
	assert.Contains(t, msg.HTML, "Bonjour Alice")
	assert.Empty(t, msg.Attachments)
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"photo.jpg", "photo.jpg"},
		{"ma cuisine été.JPG", "ma-cuisine-t.jpg"},
		{"../../etc/passwd", "etc-passwd"},
		{"plan_v2.final.png", "plan_v2.final.png"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SanitizeFilename(tc.in), "SanitizeFilename(%q)", tc.in)
	}

	// Nothing salvageable: synthesized from timestamp plus extension.
	got := SanitizeFilename("???.jpg")
	assert.True(t, strings.HasPrefix(got, "piece-jointe-"), got)
	assert.True(t, strings.HasSuffix(got, ".jpg"), got)
}
