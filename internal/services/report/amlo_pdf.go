// Package report produces the regulator-prescribed artifacts: AMLO form
// PDFs, BOT monthly Excel workbooks, and the report-number registry behind
// both.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/siamfx/backoffice/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrTemplateMissing marks a fatal configuration problem: the endpoint for
// the affected form refuses to serve while others keep working.
var ErrTemplateMissing = errors.New("amlo template missing")

// reportNoField is the named widget holding the grouped report number.
const reportNoField = "fill_52"

// templateFiles maps each AMLO form type to its official template.
var templateFiles = map[models.ReportType]string{
	models.ReportTypeAMLO101: "amlo_1_01.pdf",
	models.ReportTypeAMLO102: "amlo_1_02.pdf",
	models.ReportTypeAMLO103: "amlo_1_03.pdf",
}

// PDFFiller renders AMLO reservations into the official form templates.
type PDFFiller struct {
	db          *gorm.DB
	registry    *Registry
	fonts       *FontSelector
	templateDir string
	log         *logrus.Entry
}

// NewPDFFiller creates the AMLO PDF generator.
func NewPDFFiller(db *gorm.DB, registry *Registry, fonts *FontSelector, templateDir string) *PDFFiller {
	return &PDFFiller{
		db:          db,
		registry:    registry,
		fonts:       fonts,
		templateDir: templateDir,
		log:         logrus.WithField("component", "amlo_pdf"),
	}
}

// pdfcpu form-fill JSON contract.
type fillTextField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type fillCheckBox struct {
	Name  string `json:"name"`
	Value bool   `json:"value"`
}

type fillForm struct {
	TextFields []fillTextField `json:"textfield,omitempty"`
	CheckBoxes []fillCheckBox  `json:"checkbox,omitempty"`
}

type fillDocument struct {
	Forms []fillForm `json:"forms"`
}

// Generate materializes the reservation's PDF, overwriting any previous
// artifact, and records the path in a short follow-up transaction.
func (p *PDFFiller) Generate(reservation *models.Reservation, flatten bool) (*models.AMLOReport, error) {
	templateName, ok := templateFiles[reservation.ReportType]
	if !ok {
		return nil, fmt.Errorf("report type %s has no PDF template", reservation.ReportType)
	}
	templatePath := filepath.Join(p.templateDir, templateName)
	if _, err := os.Stat(templatePath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTemplateMissing, templatePath)
	}
	if err := p.fonts.EnsureInstalled(); err != nil {
		return nil, err
	}

	now := time.Now()
	outDir := p.registry.MonthDir(now)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating artifact directory: %w", err)
	}

	filename := PDFFilename(reservation.ReportType, reservation.ReservationNo)
	outPath := filepath.Join(outDir, filename)
	p.removeSiblings(outDir, reservation.ReservationNo)

	payload := p.payload(reservation)
	if err := p.fill(templatePath, outPath, payload, flatten); err != nil {
		return nil, err
	}

	artifact := models.AMLOReport{
		ReportNo:      reservation.ReservationNo,
		ReportType:    reservation.ReportType,
		ReservationID: reservation.ID,
		PDFFilename:   filename,
		PDFPath:       outPath,
		Flattened:     flatten,
	}
	err := p.db.Transaction(func(tx *gorm.DB) error {
		// Regeneration replaces the prior record.
		if err := tx.Where("reservation_id = ?", reservation.ID).
			Delete(&models.AMLOReport{}).Error; err != nil {
			return err
		}
		return tx.Create(&artifact).Error
	})
	if err != nil {
		return nil, fmt.Errorf("error recording artifact: %w", err)
	}
	return &artifact, nil
}

// Cached returns the existing artifact when its file is still on disk and
// the flatten mode matches.
func (p *PDFFiller) Cached(reservationID uint, flatten bool) (*models.AMLOReport, bool) {
	var artifact models.AMLOReport
	err := p.db.Where("reservation_id = ?", reservationID).First(&artifact).Error
	if err != nil {
		return nil, false
	}
	if artifact.Flattened != flatten {
		return nil, false
	}
	if _, err := os.Stat(artifact.PDFPath); err != nil {
		return nil, false
	}
	return &artifact, true
}

// payload merges the reservation's form blob with the standard widget
// values. Form data wins on conflicts; the report number always lands in
// its dedicated widget.
func (p *PDFFiller) payload(reservation *models.Reservation) map[string]interface{} {
	payload := map[string]interface{}{
		"customer_name":    reservation.CustomerName,
		"customer_id_no":   reservation.CustomerID,
		"customer_country": reservation.CustomerCountry,
		"transaction_date": reservation.CreatedAt.Format("2006-01-02"),
		"local_amount":     reservation.LocalAmount.StringFixed(2),
		"foreign_amount":   reservation.Amount.StringFixed(2),
		"exchange_rate":    reservation.Rate.String(),
	}
	for k, v := range reservation.FormData {
		payload[k] = v
	}
	payload[reportNoField] = reservation.ReservationNo
	return payload
}

// fill writes the named widgets and, for flatten, repaints every value into
// the page content before stripping the form.
func (p *PDFFiller) fill(templatePath, outPath string, payload map[string]interface{}, flatten bool) error {
	doc := fillDocument{Forms: []fillForm{{}}}
	form := &doc.Forms[0]
	for name, raw := range payload {
		switch v := raw.(type) {
		case bool:
			form.CheckBoxes = append(form.CheckBoxes, fillCheckBox{Name: name, Value: v})
		default:
			text := fmt.Sprint(v)
			if _, fontName := p.fonts.FontFor(text); fontName == "Helvetica" && text != "" {
				p.log.WithField("field", name).Warn("falling back to Helvetica for field value")
			}
			form.TextFields = append(form.TextFields, fillTextField{Name: name, Value: text})
		}
	}

	spec, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("error building fill spec: %w", err)
	}
	specFile, err := os.CreateTemp("", "amlo-fill-*.json")
	if err != nil {
		return fmt.Errorf("error creating fill spec file: %w", err)
	}
	defer os.Remove(specFile.Name())
	if _, err := specFile.Write(spec); err != nil {
		specFile.Close()
		return fmt.Errorf("error writing fill spec: %w", err)
	}
	specFile.Close()

	conf := model.NewDefaultConfiguration()
	if err := api.FillFormFile(templatePath, specFile.Name(), outPath, conf); err != nil {
		return fmt.Errorf("error filling form: %w", err)
	}

	if !flatten {
		return nil
	}
	return p.flatten(outPath, payload, conf)
}

// flatten paints every filled value into the page content stream at its
// widget's rect, then removes the widgets so the document is no longer a
// form. Saving keeps embedded fonts.
func (p *PDFFiller) flatten(outPath string, payload map[string]interface{}, conf *model.Configuration) error {
	widgets, err := formWidgets(outPath)
	if err != nil || len(widgets) == 0 {
		// Without widget geometry the values would vanish with the
		// widgets; lock the fields so the document stays uneditable with
		// the values intact.
		p.log.WithField("error", err).Warn("widget geometry unavailable, locking fields instead")
		if err := api.LockFormFieldsFile(outPath, outPath, nil, conf); err != nil {
			return fmt.Errorf("error locking form: %w", err)
		}
		return nil
	}

	names := make([]string, 0, len(widgets))
	for name := range widgets {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		raw, ok := payload[name]
		if !ok {
			continue
		}
		text := fmt.Sprint(raw)
		if checked, isBool := raw.(bool); isBool {
			if !checked {
				continue
			}
			text = "X"
		}
		if text == "" {
			continue
		}
		if err := p.overlay(outPath, widgets[name], text, name == reportNoField, conf); err != nil {
			return err
		}
	}

	if err := api.RemoveFormFieldsFile(outPath, outPath, names, conf); err != nil {
		return fmt.Errorf("error removing form widgets: %w", err)
	}
	return nil
}

// overlay paints one value at its widget rect. The report number is centered
// inside its grouped box; everything else is anchored at the rect's lower
// left with a small inset.
func (p *PDFFiller) overlay(outPath string, box widgetBox, text string, centered bool, conf *model.Configuration) error {
	const points = 10
	x := box.rect[0] + 2
	y := box.rect[1] + 3
	if centered {
		// Rough Helvetica advance, close enough to center the grouped
		// number inside its box.
		width := 0.55 * points * float64(len(text))
		cx := box.rect[0] + (box.rect[2]-box.rect[0]-width)/2
		if cx > x {
			x = cx
		}
	}

	desc := fmt.Sprintf("points:%d, pos:bl, off:%.1f %.1f, rot:0, fillcol:#000000, scalefactor:1 abs", points, x, y)
	if _, fontName := p.fonts.FontFor(text); fontName != "Helvetica" {
		desc = fmt.Sprintf("fontname:%s, %s", fontName, desc)
	}
	pages := []string{strconv.Itoa(box.page)}
	if err := api.AddTextWatermarksFile(outPath, outPath, pages, true, text, desc, conf); err != nil {
		return fmt.Errorf("error painting field value: %w", err)
	}
	return nil
}

// removeSiblings deletes stale artifacts sharing the report-number prefix so
// regeneration never pollutes the month directory with near-duplicates.
func (p *PDFFiller) removeSiblings(dir, reportNo string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	suffix := fmt.Sprintf("_R%s.pdf", reportNo)
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), suffix) {
			os.Remove(filepath.Join(dir, entry.Name()))
		}
	}
}
