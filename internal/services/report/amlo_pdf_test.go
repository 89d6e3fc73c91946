package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/siamfx/backoffice/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFormTemplate builds a minimal single-page AcroForm document with the
// two text widgets the filler writes in every form: a customer-name box and
// the grouped report-number box. Cross-reference offsets are computed while
// assembling so the file is a valid PDF.
func writeFormTemplate(t *testing.T, path string) {
	t.Helper()
	objects := []string{
		"<</Type /Catalog /Pages 2 0 R /AcroForm <</Fields [4 0 R 5 0 R] /NeedAppearances true /DA (/Helv 10 Tf 0 g) /DR <</Font <</Helv 6 0 R>>>>>>>>",
		"<</Type /Pages /Kids [3 0 R] /Count 1>>",
		"<</Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Resources <</Font <</Helv 6 0 R>>>> /Annots [4 0 R 5 0 R]>>",
		"<</Type /Annot /Subtype /Widget /FT /Tx /T (customer_name) /Rect [50 700 300 720] /P 3 0 R /F 4 /DA (/Helv 10 Tf 0 g)>>",
		"<</Type /Annot /Subtype /Widget /FT /Tx /T (fill_52) /Rect [350 780 545 800] /P 3 0 R /F 4 /DA (/Helv 10 Tf 0 g)>>",
		"<</Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding>>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xrefPos := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<</Size %d /Root 1 0 R>>\nstartxref\n%d\n%%%%EOF\n",
		len(objects)+1, xrefPos)

	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func newTestFiller(t *testing.T) (*PDFFiller, string) {
	t.Helper()
	db := newTestDB(t)
	dir := t.TempDir()
	filler := NewPDFFiller(db, NewRegistry(db, dir), NewFontSelector(filepath.Join(dir, "fonts")), dir)
	return filler, dir
}

func TestFormWidgetsGeometry(t *testing.T) {
	dir := t.TempDir()
	template := filepath.Join(dir, "form.pdf")
	writeFormTemplate(t, template)

	widgets, err := formWidgets(template)
	require.NoError(t, err)
	require.Len(t, widgets, 2)

	name := widgets["customer_name"]
	assert.Equal(t, 1, name.page)
	assert.Equal(t, [4]float64{50, 700, 300, 720}, name.rect)

	reportNo := widgets["fill_52"]
	assert.Equal(t, 1, reportNo.page)
	assert.Equal(t, [4]float64{350, 780, 545, 800}, reportNo.rect)
}

func TestFillWritesFieldValues(t *testing.T) {
	filler, dir := newTestFiller(t)
	template := filepath.Join(dir, "form.pdf")
	writeFormTemplate(t, template)

	out := filepath.Join(dir, "filled.pdf")
	payload := map[string]interface{}{
		"customer_name": "Somchai Jaidee",
		"fill_52":       "007-001-26-000001",
	}
	require.NoError(t, filler.fill(template, out, payload, false))
	require.NoError(t, api.ValidateFile(out, nil))

	// The filled document stays an editable form with the values stored
	// in the field dictionaries.
	exported := filepath.Join(dir, "fields.json")
	require.NoError(t, api.ExportFormFile(out, exported, nil))
	raw, err := os.ReadFile(exported)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Somchai Jaidee")
	assert.Contains(t, string(raw), "007-001-26-000001")

	widgets, err := formWidgets(out)
	require.NoError(t, err)
	assert.Len(t, widgets, 2)
}

func TestFillFlattenRemovesWidgets(t *testing.T) {
	filler, dir := newTestFiller(t)
	template := filepath.Join(dir, "form.pdf")
	writeFormTemplate(t, template)

	out := filepath.Join(dir, "flattened.pdf")
	payload := map[string]interface{}{
		"customer_name": "Somchai Jaidee",
		"fill_52":       "007-001-26-000001",
	}
	require.NoError(t, filler.fill(template, out, payload, true))
	require.NoError(t, api.ValidateFile(out, nil))

	// The values were repainted into the page content, so no widgets
	// survive flattening.
	widgets, err := formWidgets(out)
	require.NoError(t, err)
	assert.Empty(t, widgets)
}

func TestGenerateTemplateMissing(t *testing.T) {
	filler, _ := newTestFiller(t)

	reservation := &models.Reservation{
		ReservationNo: "007-001-26-000001",
		ReportType:    models.ReportTypeAMLO101,
	}
	_, err := filler.Generate(reservation, false)
	require.ErrorIs(t, err, ErrTemplateMissing)
}

func TestCachedArtifactSemantics(t *testing.T) {
	filler, dir := newTestFiller(t)

	pdfPath := filepath.Join(dir, "amlo_1_01_007-001-26-000001.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4"), 0o644))
	require.NoError(t, filler.db.Create(&models.AMLOReport{
		ReportNo:      "007-001-26-000001",
		ReportType:    models.ReportTypeAMLO101,
		ReservationID: 9,
		PDFFilename:   filepath.Base(pdfPath),
		PDFPath:       pdfPath,
		Flattened:     false,
	}).Error)

	artifact, ok := filler.Cached(9, false)
	require.True(t, ok)
	assert.Equal(t, pdfPath, artifact.PDFPath)

	// A flatten mismatch or a vanished file both force regeneration.
	_, ok = filler.Cached(9, true)
	assert.False(t, ok)

	require.NoError(t, os.Remove(pdfPath))
	_, ok = filler.Cached(9, false)
	assert.False(t, ok)
}
