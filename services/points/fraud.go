package points

import (
	"fmt"

	"setledger/pkg/celengine"
)

// Fraud heuristics are advisory: they flag suspicious accrual patterns for
// review but never block accrual or settlement.

const (
	// nearCapBps flags categories at or above 90% of their daily cap.
	nearCapBps = 9000
	bpsDenom   = 10000
)

// ratioRule pairs a flag label with a CEL expression over the day's category
// totals. Expressions see one int variable per category name.
type ratioRule struct {
	Flag string
	Expr string
}

// A pile of outbound engagement on almost no viewing is the classic
// click-farm signature.
var ratioRules = []ratioRule{
	{Flag: "implausible_like_view_ratio", Expr: "like > 100 && view < 10"},
	{Flag: "implausible_comment_view_ratio", Expr: "comment > 50 && view < 10"},
}

// EvaluateFraud inspects one PointsDay and returns flag labels for anything
// implausible. An empty slice means the day looks clean.
func EvaluateFraud(day *PointsDay) ([]string, error) {
	if day == nil {
		return nil, nil
	}
	totals, err := day.CategoryTotals()
	if err != nil {
		return nil, err
	}

	var flags []string
	for _, category := range Categories {
		rule, ok := RuleFor(category)
		if !ok {
			continue
		}
		limit := rule.DailyCap()
		if limit <= 0 {
			continue
		}
		if totals[category]*bpsDenom >= limit*nearCapBps {
			flags = append(flags, fmt.Sprintf("near_cap:%s", category))
		}
	}

	attrs := make(map[string]int64, len(Categories))
	for _, category := range Categories {
		attrs[string(category)] = totals[category]
	}

	env, err := celengine.GetOrBuildEnv(attrs)
	if err != nil {
		return nil, err
	}
	for _, rule := range ratioRules {
		matched, err := celengine.Evaluate(env, rule.Expr, attrs)
		if err != nil {
			return nil, err
		}
		if matched {
			flags = append(flags, rule.Flag)
		}
	}

	return flags, nil
}
