package models

// FieldType is the closed set of semantic field types in a report form.
type FieldType string

const (
	FieldTypeInt      FieldType = "INT"
	FieldTypeDecimal  FieldType = "DECIMAL"
	FieldTypeVarchar  FieldType = "VARCHAR"
	FieldTypeText     FieldType = "TEXT"
	FieldTypeDate     FieldType = "DATE"
	FieldTypeDatetime FieldType = "DATETIME"
	FieldTypeBoolean  FieldType = "BOOLEAN"
	FieldTypeEnum     FieldType = "ENUM"
)

// ReportFieldDefinition describes one field of a regulator form: its semantic
// type, PDF fill order, validation rule and localized labels.
type ReportFieldDefinition struct {
	Base
	ReportType     ReportType `gorm:"size:16;index" json:"report_type"`
	Name           string     `gorm:"size:64;index" json:"name"`
	FieldType      FieldType  `gorm:"size:16" json:"field_type"`
	Length         int        `json:"length"`
	Precision      int        `json:"precision"`
	Scale          int        `json:"scale"`
	FillOrder      int        `json:"fill_order"`
	Required       bool       `gorm:"default:false" json:"required"`
	DefaultValue   string     `gorm:"size:255" json:"default_value"`
	ValidationRule JSON       `gorm:"type:json" json:"validation_rule,omitempty"`
	LabelZH        string     `gorm:"size:128" json:"label_zh"`
	LabelEN        string     `gorm:"size:128" json:"label_en"`
	LabelTH        string     `gorm:"size:128" json:"label_th"`
	PlaceholderZH  string     `gorm:"size:128" json:"placeholder_zh"`
	PlaceholderEN  string     `gorm:"size:128" json:"placeholder_en"`
	PlaceholderTH  string     `gorm:"size:128" json:"placeholder_th"`
	HelpZH         string     `gorm:"size:255" json:"help_zh"`
	HelpEN         string     `gorm:"size:255" json:"help_en"`
	HelpTH         string     `gorm:"size:255" json:"help_th"`
	FieldGroup     string     `gorm:"size:64" json:"field_group"`
	Active         bool       `gorm:"default:true" json:"active"`
}

// TriggerRule is a data-driven boolean rule tree evaluated against each
// settled transaction or balance adjustment. Higher priority wins; a nil
// BranchID means the rule applies to all branches.
type TriggerRule struct {
	Base
	Name          string     `gorm:"size:128" json:"name"`
	ReportType    ReportType `gorm:"size:16;index" json:"report_type"`
	Expression    string     `gorm:"type:text" json:"rule_expression"`
	Priority      int        `gorm:"default:0" json:"priority"`
	AllowContinue bool       `gorm:"default:true" json:"allow_continue"`
	MessageZH     string     `gorm:"size:255" json:"message_zh"`
	MessageEN     string     `gorm:"size:255" json:"message_en"`
	MessageTH     string     `gorm:"size:255" json:"message_th"`
	BranchID      *uint      `gorm:"index" json:"branch_id,omitempty"`
	Active        bool       `gorm:"default:true" json:"active"`
}

// Message returns the localized warning message for a language tag.
func (r *TriggerRule) Message(language string) string {
	switch language {
	case "zh-CN":
		return r.MessageZH
	case "th-TH":
		return r.MessageTH
	default:
		return r.MessageEN
	}
}
