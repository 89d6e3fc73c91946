package rules

import (
	"fmt"

	"github.com/siamfx/backoffice/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// TriggerResult is the contract returned to callers and, through them, to
// auditors. The condition detail is part of the contract.
type TriggerResult struct {
	Triggered           bool                 `json:"triggered"`
	TriggerRules        []models.TriggerRule `json:"trigger_rules"`
	HighestPriorityRule *models.TriggerRule  `json:"highest_priority_rule,omitempty"`
	AllowContinue       bool                 `json:"allow_continue"`
	MessageCN           string               `json:"message_cn"`
	MessageEN           string               `json:"message_en"`
	MessageTH           string               `json:"message_th"`
	MatchedConditions   []ConditionDetail    `json:"matched_conditions"`
	UnmatchedConditions []ConditionDetail    `json:"unmatched_conditions"`
	RuleExpression      string               `json:"rule_expression,omitempty"`
}

// Resolver fetches active trigger rules and evaluates them against entity
// data. Rule sets are re-read on every call; they are never cached.
type Resolver struct {
	db  *gorm.DB
	log *logrus.Entry
}

// NewResolver creates a trigger resolver.
func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db, log: logrus.WithField("component", "trigger_resolver")}
}

// Resolve evaluates all active rules for (reportType, branchID) against data.
// Rules are ordered priority DESC, id ASC; global rules (nil branch) apply to
// every branch. Malformed rule expressions are skipped with a log line.
func (r *Resolver) Resolve(reportType models.ReportType, data map[string]interface{}, branchID uint) (*TriggerResult, error) {
	var ruleRows []models.TriggerRule
	err := r.db.
		Where("report_type = ? AND active = ?", reportType, true).
		Where("branch_id IS NULL OR branch_id = ?", branchID).
		Order("priority DESC, id ASC").
		Find(&ruleRows).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching trigger rules: %w", err)
	}

	result := &TriggerResult{
		AllowContinue:       true,
		MatchedConditions:   []ConditionDetail{},
		UnmatchedConditions: []ConditionDetail{},
	}

	for i := range ruleRows {
		rule := ruleRows[i]
		node, parseErr := ParseExpression(rule.Expression)
		if parseErr != nil {
			r.log.WithFields(logrus.Fields{
				"rule_id": rule.ID, "rule": rule.Name, "error": parseErr,
			}).Warn("skipping rule with malformed expression")
			continue
		}

		matched, detail := Evaluate(node, data)
		if !matched {
			continue
		}

		result.TriggerRules = append(result.TriggerRules, rule)
		if result.HighestPriorityRule == nil {
			// Rows arrive priority DESC, id ASC, so the first match wins.
			result.Triggered = true
			result.HighestPriorityRule = &ruleRows[i]
			result.AllowContinue = rule.AllowContinue
			result.MessageCN = rule.MessageZH
			result.MessageEN = rule.MessageEN
			result.MessageTH = rule.MessageTH
			result.MatchedConditions = detail.MatchedConditions
			result.UnmatchedConditions = detail.UnmatchedConditions
			result.RuleExpression = rule.Expression
		}
	}

	return result, nil
}
