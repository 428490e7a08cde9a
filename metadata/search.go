// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package metadata

import "time"

// SearchOperator enumerates the comparison operators of a search term.
type SearchOperator int

// Search operators.
const (
	SearchOperatorUnset SearchOperator = iota
	SearchEQ
	SearchNE
	SearchGT
	SearchGE
	SearchLT
	SearchLE
	SearchIN
)

var searchOperatorNames = map[SearchOperator]string{
	SearchOperatorUnset: "SEARCH_OPERATOR_NOT_SET",
	SearchEQ:            "EQ",
	SearchNE:            "NE",
	SearchGT:            "GT",
	SearchGE:            "GE",
	SearchLT:            "LT",
	SearchLE:            "LE",
	SearchIN:            "IN",
}

// String returns the wire name of the operator.
func (op SearchOperator) String() string {
	if name, ok := searchOperatorNames[op]; ok {
		return name
	}
	return "SEARCH_OPERATOR_UNRECOGNIZED"
}

// Recognized reports whether the operator is a known enum member.
func (op SearchOperator) Recognized() bool {
	_, ok := searchOperatorNames[op]
	return ok
}

// Ordered reports whether the operator is an ordered comparison. Ordered
// comparisons require exact type agreement and never match array attributes.
func (op SearchOperator) Ordered() bool {
	switch op {
	case SearchGT, SearchGE, SearchLT, SearchLE:
		return true
	}
	return false
}

// LogicalOperator enumerates the interior nodes of a search expression.
type LogicalOperator int

// Logical operators.
const (
	LogicalOperatorUnset LogicalOperator = iota
	LogicalAND
	LogicalOR
	LogicalNOT
)

var logicalOperatorNames = map[LogicalOperator]string{
	LogicalOperatorUnset: "LOGICAL_OPERATOR_NOT_SET",
	LogicalAND:           "AND",
	LogicalOR:            "OR",
	LogicalNOT:           "NOT",
}

// String returns the wire name of the operator.
func (op LogicalOperator) String() string {
	if name, ok := logicalOperatorNames[op]; ok {
		return name
	}
	return "LOGICAL_OPERATOR_UNRECOGNIZED"
}

// Recognized reports whether the operator is a known enum member.
func (op LogicalOperator) Recognized() bool {
	_, ok := logicalOperatorNames[op]
	return ok
}

// SearchExpression is a tree whose interior nodes are logical expressions
// and whose leaves are search terms. Exactly one of Term or Logical is set.
type SearchExpression struct {
	Term    *SearchTerm        `json:"term,omitempty"`
	Logical *LogicalExpression `json:"logical,omitempty"`
}

// SearchTerm is one leaf comparison: attr OP literal. For IN the search
// value is an array of candidates of the declared attribute type.
type SearchTerm struct {
	AttrName    string         `json:"attrName"`
	AttrType    BasicType      `json:"attrType"`
	Operator    SearchOperator `json:"operator"`
	SearchValue Value          `json:"searchValue"`
}

// LogicalExpression combines sub-expressions. NOT takes exactly one operand,
// AND and OR take two or more.
type LogicalExpression struct {
	Operator LogicalOperator     `json:"operator"`
	Expr     []*SearchExpression `json:"expr"`
}

// SearchParameters is a complete search request against one tenant.
type SearchParameters struct {
	ObjectType ObjectType        `json:"objectType"`
	Search     *SearchExpression `json:"search"`

	// PriorVersions and PriorTags include superseded object versions or
	// superseded tags in the search.
	PriorVersions bool `json:"priorVersions,omitempty"`
	PriorTags     bool `json:"priorTags,omitempty"`

	// SearchAsOf cuts history at a point in time; latest semantics are
	// recomputed inside the cutoff window.
	SearchAsOf *time.Time `json:"searchAsOf,omitempty"`
}
