package rules

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Logic combinators for composite nodes.
const (
	LogicAnd = "AND"
	LogicOr  = "OR"
	LogicNot = "NOT"
)

// Comparison operators for leaf nodes.
const (
	OpGT      = ">"
	OpGTE     = ">="
	OpLT      = "<"
	OpLTE     = "<="
	OpEQ      = "="
	OpNEQ     = "!="
	OpIn      = "IN"
	OpNotIn   = "NOT IN"
	OpLike    = "LIKE"
	OpNotLike = "NOT LIKE"
)

var validOperators = map[string]bool{
	OpGT: true, OpGTE: true, OpLT: true, OpLTE: true,
	OpEQ: true, OpNEQ: true, OpIn: true, OpNotIn: true,
	OpLike: true, OpNotLike: true,
}

// Node is one node of a rule tree. A node with a non-empty Logic is a
// composite over Conditions; otherwise it is a leaf comparison.
type Node struct {
	Logic      string      `json:"logic,omitempty"`
	Conditions []Node      `json:"conditions,omitempty"`
	Field      string      `json:"field,omitempty"`
	Operator   string      `json:"operator,omitempty"`
	Value      interface{} `json:"value,omitempty"`
}

// IsLeaf reports whether the node is a leaf comparison.
func (n *Node) IsLeaf() bool { return n.Logic == "" }

// ConditionDetail explains one evaluated node. Leaves carry the comparison;
// composites carry the combinator and their children's details, so auditors
// see the full sub-structure.
type ConditionDetail struct {
	Field      string            `json:"field,omitempty"`
	Operator   string            `json:"operator,omitempty"`
	Expected   interface{}       `json:"expected,omitempty"`
	Actual     interface{}       `json:"actual,omitempty"`
	Logic      string            `json:"logic,omitempty"`
	Conditions []ConditionDetail `json:"conditions,omitempty"`
	Matched    bool              `json:"matched"`
}

// EvalDetail partitions the root's direct conditions by outcome.
type EvalDetail struct {
	MatchedConditions   []ConditionDetail `json:"matched_conditions"`
	UnmatchedConditions []ConditionDetail `json:"unmatched_conditions"`
}

// ParseExpression parses and validates a rule tree from its JSON form.
func ParseExpression(expr string) (*Node, error) {
	var node Node
	if err := json.Unmarshal([]byte(expr), &node); err != nil {
		return nil, fmt.Errorf("invalid rule expression: %w", err)
	}
	if err := validateNode(&node); err != nil {
		return nil, err
	}
	return &node, nil
}

func validateNode(n *Node) error {
	if n.IsLeaf() {
		if n.Field == "" {
			return fmt.Errorf("leaf condition missing field")
		}
		if !validOperators[n.Operator] {
			return fmt.Errorf("unknown operator %q", n.Operator)
		}
		return nil
	}
	switch n.Logic {
	case LogicAnd, LogicOr, LogicNot:
	default:
		return fmt.Errorf("unknown logic %q", n.Logic)
	}
	for i := range n.Conditions {
		if err := validateNode(&n.Conditions[i]); err != nil {
			return err
		}
	}
	return nil
}

// Evaluate walks the tree against data and returns the boolean outcome plus
// the per-condition detail surfaced to auditors.
func Evaluate(node *Node, data map[string]interface{}) (bool, EvalDetail) {
	matched, detail := evalNode(node, data)

	var out EvalDetail
	out.MatchedConditions = []ConditionDetail{}
	out.UnmatchedConditions = []ConditionDetail{}

	// The root's direct conditions feed the two buckets; a leaf root is its
	// own single condition.
	children := []ConditionDetail{detail}
	if !node.IsLeaf() {
		children = detail.Conditions
	}
	for _, c := range children {
		if c.Matched {
			out.MatchedConditions = append(out.MatchedConditions, c)
		} else {
			out.UnmatchedConditions = append(out.UnmatchedConditions, c)
		}
	}
	return matched, out
}

func evalNode(n *Node, data map[string]interface{}) (bool, ConditionDetail) {
	if n.IsLeaf() {
		actual, ok := data[n.Field]
		if !ok {
			actual = nil
		}
		matched := evalLeaf(n.Operator, n.Value, actual)
		return matched, ConditionDetail{
			Field:    n.Field,
			Operator: n.Operator,
			Expected: n.Value,
			Actual:   actual,
			Matched:  matched,
		}
	}

	details := make([]ConditionDetail, 0, len(n.Conditions))
	anyMatched := false
	allMatched := len(n.Conditions) > 0
	for i := range n.Conditions {
		m, d := evalNode(&n.Conditions[i], data)
		details = append(details, d)
		if m {
			anyMatched = true
		} else {
			allMatched = false
		}
	}

	var matched bool
	switch n.Logic {
	case LogicAnd:
		matched = allMatched
	case LogicOr:
		matched = anyMatched
	case LogicNot:
		matched = !anyMatched
	}
	return matched, ConditionDetail{Logic: n.Logic, Conditions: details, Matched: matched}
}

// evalLeaf compares actual against expected. A nil actual matches only the
// negative operators; malformed IN operands log and fail, never panic.
func evalLeaf(op string, expected, actual interface{}) bool {
	if actual == nil {
		return op == OpNEQ || op == OpNotIn
	}

	switch op {
	case OpGT, OpGTE, OpLT, OpLTE:
		// Numeric comparison first; non-numeric operands (dates, grades)
		// compare lexicographically.
		var cmp int
		if ea, ok1 := toDecimal(expected); ok1 {
			if aa, ok2 := toDecimal(actual); ok2 {
				cmp = aa.Cmp(ea)
				return orderedMatch(op, cmp)
			}
		}
		cmp = strings.Compare(fmt.Sprint(actual), fmt.Sprint(expected))
		return orderedMatch(op, cmp)
	case OpEQ:
		return valuesEqual(expected, actual)
	case OpNEQ:
		return !valuesEqual(expected, actual)
	case OpIn, OpNotIn:
		list, ok := expected.([]interface{})
		if !ok {
			logrus.WithFields(logrus.Fields{
				"operator": op, "expected": expected,
			}).Warn("rule condition: IN operand is not a list")
			return false
		}
		found := false
		for _, item := range list {
			if valuesEqual(item, actual) {
				found = true
				break
			}
		}
		if op == OpIn {
			return found
		}
		return !found
	case OpLike, OpNotLike:
		sub := strings.Contains(
			strings.ToLower(fmt.Sprint(actual)),
			strings.ToLower(fmt.Sprint(expected)),
		)
		if op == OpLike {
			return sub
		}
		return !sub
	}
	return false
}

func orderedMatch(op string, cmp int) bool {
	switch op {
	case OpGT:
		return cmp > 0
	case OpGTE:
		return cmp >= 0
	case OpLT:
		return cmp < 0
	default:
		return cmp <= 0
	}
}

// valuesEqual tries numeric equality first, then falls back to string form.
func valuesEqual(expected, actual interface{}) bool {
	if ea, ok1 := toDecimal(expected); ok1 {
		if aa, ok2 := toDecimal(actual); ok2 {
			return ea.Equal(aa)
		}
	}
	return fmt.Sprint(expected) == fmt.Sprint(actual)
}

func toDecimal(v interface{}) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, true
	case float64:
		return decimal.NewFromFloat(x), true
	case float32:
		return decimal.NewFromFloat32(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	case uint:
		return decimal.NewFromInt(int64(x)), true
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(x)
		return d, err == nil
	}
	return decimal.Decimal{}, false
}
