// Package catalog serves per-report-type field definitions with
// language-resolved labels and validates form payloads against them.
package catalog

import (
	"fmt"
	"sync"

	"github.com/siamfx/backoffice/internal/models"
	"gorm.io/gorm"
)

// LocalizedField is a field definition with labels resolved for one language.
type LocalizedField struct {
	models.ReportFieldDefinition
	Label       string `json:"label"`
	Placeholder string `json:"placeholder"`
	Help        string `json:"help"`
}

// FieldGroup is an ordered group of fields sharing a form section.
type FieldGroup struct {
	Group  string           `json:"group"`
	Fields []LocalizedField `json:"fields"`
}

// Catalog loads field definitions per report type. Definitions are read-only
// after load and cached process-wide.
type Catalog struct {
	db    *gorm.DB
	mu    sync.RWMutex
	cache map[models.ReportType][]models.ReportFieldDefinition
}

// NewCatalog creates a field catalog.
func NewCatalog(db *gorm.DB) *Catalog {
	return &Catalog{
		db:    db,
		cache: make(map[models.ReportType][]models.ReportFieldDefinition),
	}
}

// definitions returns the active field definitions for a report type in fill
// order, loading them on first use.
func (c *Catalog) definitions(reportType models.ReportType) ([]models.ReportFieldDefinition, error) {
	c.mu.RLock()
	defs, ok := c.cache[reportType]
	c.mu.RUnlock()
	if ok {
		return defs, nil
	}

	var loaded []models.ReportFieldDefinition
	err := c.db.
		Where("report_type = ? AND active = ?", reportType, true).
		Order("fill_order ASC, id ASC").
		Find(&loaded).Error
	if err != nil {
		return nil, fmt.Errorf("error loading field definitions: %w", err)
	}

	c.mu.Lock()
	c.cache[reportType] = loaded
	c.mu.Unlock()
	return loaded, nil
}

// Fields returns the ordered, language-resolved field list for a report type.
func (c *Catalog) Fields(reportType models.ReportType, language string) ([]LocalizedField, error) {
	defs, err := c.definitions(reportType)
	if err != nil {
		return nil, err
	}
	out := make([]LocalizedField, 0, len(defs))
	for _, d := range defs {
		out = append(out, localize(d, language))
	}
	return out, nil
}

// Groups returns the fields grouped by field_group, preserving fill order
// within and across groups.
func (c *Catalog) Groups(reportType models.ReportType, language string) ([]FieldGroup, error) {
	fields, err := c.Fields(reportType, language)
	if err != nil {
		return nil, err
	}
	var groups []FieldGroup
	index := map[string]int{}
	for _, f := range fields {
		i, ok := index[f.FieldGroup]
		if !ok {
			i = len(groups)
			index[f.FieldGroup] = i
			groups = append(groups, FieldGroup{Group: f.FieldGroup})
		}
		groups[i].Fields = append(groups[i].Fields, f)
	}
	return groups, nil
}

// RequiredFields returns the required field definitions for a report type.
func (c *Catalog) RequiredFields(reportType models.ReportType) ([]models.ReportFieldDefinition, error) {
	defs, err := c.definitions(reportType)
	if err != nil {
		return nil, err
	}
	var required []models.ReportFieldDefinition
	for _, d := range defs {
		if d.Required {
			required = append(required, d)
		}
	}
	return required, nil
}

// FieldByName returns a single field definition, or nil when absent.
func (c *Catalog) FieldByName(reportType models.ReportType, name string) (*models.ReportFieldDefinition, error) {
	defs, err := c.definitions(reportType)
	if err != nil {
		return nil, err
	}
	for i := range defs {
		if defs[i].Name == name {
			return &defs[i], nil
		}
	}
	return nil, nil
}

func localize(d models.ReportFieldDefinition, language string) LocalizedField {
	f := LocalizedField{ReportFieldDefinition: d}
	switch language {
	case "zh-CN":
		f.Label, f.Placeholder, f.Help = d.LabelZH, d.PlaceholderZH, d.HelpZH
	case "th-TH":
		f.Label, f.Placeholder, f.Help = d.LabelTH, d.PlaceholderTH, d.HelpTH
	default:
		f.Label, f.Placeholder, f.Help = d.LabelEN, d.PlaceholderEN, d.HelpEN
	}
	if f.Label == "" {
		f.Label = d.Name
	}
	return f
}
