package catalog

import (
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
	"github.com/siamfx/backoffice/internal/models"
)

// Validator checks form payloads against the field catalog. It accumulates
// every error instead of failing fast and never panics on bad input.
type Validator struct {
	catalog *Catalog
}

// NewValidator creates a form validator backed by a catalog.
func NewValidator(catalog *Catalog) *Validator {
	return &Validator{catalog: catalog}
}

// messages per language; the zh-CN token family follows the regulator forms.
var requiredMsg = map[string]string{
	"zh-CN": "%s为必填项",
	"en-US": "%s is required",
	"th-TH": "ต้องระบุ %s",
}

func msgRequired(language, label string) string {
	f, ok := requiredMsg[language]
	if !ok {
		f = requiredMsg["en-US"]
	}
	return fmt.Sprintf(f, label)
}

// Validate checks formData against the report type's field definitions and
// returns ok plus the full error list.
func (v *Validator) Validate(reportType models.ReportType, formData map[string]interface{}, language string) (bool, []string, error) {
	fields, err := v.catalog.Fields(reportType, language)
	if err != nil {
		return false, nil, err
	}

	var errs []string
	for _, field := range fields {
		raw, present := formData[field.Name]
		empty := !present || raw == nil || fmt.Sprint(raw) == ""

		if empty {
			if field.Required {
				errs = append(errs, msgRequired(language, field.Label))
			}
			continue
		}

		errs = append(errs, v.checkField(field, raw)...)
	}
	return len(errs) == 0, errs, nil
}

func (v *Validator) checkField(field LocalizedField, raw interface{}) []string {
	var errs []string
	str := fmt.Sprint(raw)

	switch field.FieldType {
	case models.FieldTypeInt:
		d, ok := toNumber(raw)
		if !ok || !d.IsInteger() {
			errs = append(errs, fmt.Sprintf("%s: expected an integer", field.Label))
			break
		}
		errs = append(errs, v.checkRange(field, d)...)
	case models.FieldTypeDecimal:
		d, ok := toNumber(raw)
		if !ok {
			errs = append(errs, fmt.Sprintf("%s: expected a number", field.Label))
			break
		}
		errs = append(errs, v.checkRange(field, d)...)
	case models.FieldTypeDate:
		if _, err := time.Parse("2006-01-02", str); err != nil {
			errs = append(errs, fmt.Sprintf("%s: expected date in YYYY-MM-DD format", field.Label))
		}
	case models.FieldTypeDatetime:
		if _, err := time.Parse("2006-01-02 15:04:05", str); err != nil {
			errs = append(errs, fmt.Sprintf("%s: expected datetime in YYYY-MM-DD HH:MM:SS format", field.Label))
		}
	case models.FieldTypeBoolean:
		switch raw.(type) {
		case bool:
		default:
			switch str {
			case "1", "0", "true", "false":
			default:
				errs = append(errs, fmt.Sprintf("%s: expected a boolean", field.Label))
			}
		}
	case models.FieldTypeEnum:
		options, _ := field.ValidationRule["options"].([]interface{})
		found := false
		for _, opt := range options {
			if fmt.Sprint(opt) == str {
				found = true
				break
			}
		}
		if !found {
			errs = append(errs, fmt.Sprintf("%s: value %q is not an allowed option", field.Label, str))
		}
	case models.FieldTypeVarchar, models.FieldTypeText:
		errs = append(errs, v.checkLength(field, str)...)
	}

	if pattern, ok := field.ValidationRule["pattern"].(string); ok && pattern != "" {
		re, err := regexp.Compile(pattern)
		if err == nil && !re.MatchString(str) {
			errs = append(errs, fmt.Sprintf("%s: value does not match the required pattern", field.Label))
		}
	}
	return errs
}

func (v *Validator) checkLength(field LocalizedField, str string) []string {
	var errs []string
	runes := len([]rune(str))

	minLen, hasMin := ruleInt(field.ValidationRule, "min_length")
	maxLen, hasMax := ruleInt(field.ValidationRule, "max_length")
	if !hasMax && field.Length > 0 {
		maxLen, hasMax = field.Length, true
	}
	if hasMin && runes < minLen {
		errs = append(errs, fmt.Sprintf("%s: must be at least %d characters", field.Label, minLen))
	}
	if hasMax && runes > maxLen {
		errs = append(errs, fmt.Sprintf("%s: must be at most %d characters", field.Label, maxLen))
	}
	return errs
}

func (v *Validator) checkRange(field LocalizedField, d decimal.Decimal) []string {
	var errs []string
	if min, ok := ruleNumber(field.ValidationRule, "min"); ok && d.LessThan(min) {
		errs = append(errs, fmt.Sprintf("%s: must be at least %s", field.Label, min.String()))
	}
	if max, ok := ruleNumber(field.ValidationRule, "max"); ok && d.GreaterThan(max) {
		errs = append(errs, fmt.Sprintf("%s: must be at most %s", field.Label, max.String()))
	}
	return errs
}

func ruleInt(rule models.JSON, key string) (int, bool) {
	d, ok := ruleNumber(rule, key)
	if !ok {
		return 0, false
	}
	return int(d.IntPart()), true
}

func ruleNumber(rule models.JSON, key string) (decimal.Decimal, bool) {
	if rule == nil {
		return decimal.Decimal{}, false
	}
	raw, ok := rule[key]
	if !ok {
		return decimal.Decimal{}, false
	}
	return toNumber(raw)
}

func toNumber(raw interface{}) (decimal.Decimal, bool) {
	switch x := raw.(type) {
	case decimal.Decimal:
		return x, true
	case float64:
		return decimal.NewFromFloat(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	case string:
		d, err := decimal.NewFromString(x)
		return d, err == nil
	}
	return decimal.Decimal{}, false
}
