package tools

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// CalcTool evaluates simple function-call expressions like "add(3, 4)".
type CalcTool struct{}

// NewCalcTool constructs the calculate tool.
func NewCalcTool() *CalcTool {
	return &CalcTool{}
}

func (c *CalcTool) Name() string { return "calculate" }

func (c *CalcTool) Description() string { return "Perform a simple calculation" }

func (c *CalcTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{
				"type":        "string",
				"description": "The expression to calculate (e.g., 'add(3, 4)', 'subtract(5, 2)', 'multiply(3, 3)', 'divide(10, 2)')",
			},
		},
		"required": []string{"expression"},
	}
}

var calcExpr = regexp.MustCompile(`^\s*(add|subtract|multiply|divide)\s*\(\s*(-?[0-9.]+)\s*,\s*(-?[0-9.]+)\s*\)\s*$`)

func (c *CalcTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	expression := stringArg(args, "expression")
	if strings.TrimSpace(expression) == "" {
		return report("expression is required")
	}
	match := calcExpr.FindStringSubmatch(expression)
	if match == nil {
		return report("unsupported expression %q; use add(x, y), subtract(x, y), multiply(x, y), or divide(x, y)", expression)
	}
	x, errX := strconv.ParseFloat(match[2], 64)
	y, errY := strconv.ParseFloat(match[3], 64)
	if errX != nil || errY != nil {
		return report("invalid operands in %q", expression)
	}

	var value float64
	switch match[1] {
	case "add":
		value = x + y
	case "subtract":
		value = x - y
	case "multiply":
		value = x * y
	case "divide":
		if y == 0 {
			return Result{Content: "Division by zero error"}, nil
		}
		value = x / y
	}
	return Result{Content: formatNumber(value)}, nil
}

// formatNumber prints whole results without a decimal point, so
// add(3, 4) yields "7" rather than "7.000000".
func formatNumber(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return fmt.Sprintf("%g", value)
}
