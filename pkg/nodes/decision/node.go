package decision

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"

	"github.com/dukex/flowgraph/pkg/models"
	"github.com/dukex/flowgraph/pkg/nodes"
	"github.com/dukex/flowgraph/pkg/template"
)

const epsilon = 1e-4

var errNotNumeric = errors.New("cannot compare non-numeric values")

// Config is the decision node configuration.
type Config struct {
	ConditionType string   `json:"condition_type" validate:"omitempty,oneof=comparison threshold expression data-check"`
	LeftOperand   string   `json:"left_operand"`
	Operator      string   `json:"operator"`
	RightValue    any      `json:"right_value"`
	InputKey      string   `json:"input_key"`
	Threshold     *float64 `json:"threshold"`
	Comparison    string   `json:"comparison"`
	Expression    string   `json:"expression"`
	CheckType     string   `json:"check_type"     validate:"omitempty,oneof=exists not-empty is-success"`
}

func parseConfig(node *models.WorkflowNode) (Config, error) {
	var config Config

	err := nodes.DecodeConfig(node, &config)
	if err != nil {
		return config, err
	}

	if config.ConditionType == "" {
		config.ConditionType = ConditionComparison
	}

	if config.Comparison == "" {
		config.Comparison = ">"
	}

	if config.CheckType == "" {
		config.CheckType = CheckExists
	}

	return config, nil
}

func (e *Executor) Validate(node *models.WorkflowNode) error {
	config, err := parseConfig(node)
	if err != nil {
		return err
	}

	switch config.ConditionType {
	case ConditionComparison:
		if config.LeftOperand == "" {
			return fmt.Errorf("node %s: comparison requires left_operand", node.ID)
		}

		if !slices.Contains(operators, config.Operator) {
			return fmt.Errorf("node %s: unknown operator %q", node.ID, config.Operator)
		}
	case ConditionThreshold:
		if config.InputKey == "" || config.Threshold == nil {
			return fmt.Errorf("node %s: threshold requires input_key and threshold", node.ID)
		}

		if !slices.Contains(operators[:6], config.Comparison) {
			return fmt.Errorf("node %s: unknown comparison %q", node.ID, config.Comparison)
		}
	case ConditionExpression:
		if strings.TrimSpace(config.Expression) == "" {
			return fmt.Errorf("node %s: expression is required", node.ID)
		}
	case ConditionDataCheck:
		if config.InputKey == "" {
			return fmt.Errorf("node %s: data-check requires input_key", node.ID)
		}
	}

	return nil
}

func (e *Executor) Execute(_ context.Context, node *models.WorkflowNode, execCtx *models.ExecutionContext) (*models.NodeResult, error) {
	config, err := parseConfig(node)
	if err != nil {
		return nil, err
	}

	var met bool

	switch config.ConditionType {
	case ConditionComparison:
		met, err = evaluateComparison(config, execCtx)
	case ConditionThreshold:
		met, err = evaluateThreshold(config, execCtx)
	case ConditionExpression:
		met, err = template.RenderBool(config.Expression, template.ContextData(execCtx, node.ID))
	case ConditionDataCheck:
		met = evaluateDataCheck(config, execCtx)
	default:
		err = fmt.Errorf("unknown condition type %q", config.ConditionType)
	}

	if err != nil {
		return models.Failed("decision execution failed: " + err.Error()), nil
	}

	path := models.EdgeLabelFalse
	if met {
		path = models.EdgeLabelTrue
	}

	result := models.Succeeded(map[string]any{
		"condition_type": config.ConditionType,
		"decision":       met,
		"path":           path,
		"condition_met":  met,
	})
	result.Metadata[models.MetadataConditionMet] = met

	return result, nil
}

// resolve reads "node.field" from a node output, otherwise a parameter.
func resolve(key string, execCtx *models.ExecutionContext) (any, bool) {
	if nodeID, field, ok := strings.Cut(key, "."); ok {
		if output, found := execCtx.NodeOutput(nodeID); found {
			return lookup(output, field)
		}
	}

	return execCtx.Parameter(key)
}

func lookup(data map[string]any, path string) (any, bool) {
	head, rest, nested := strings.Cut(path, ".")

	value, ok := data[head]
	if !ok || !nested {
		return value, ok
	}

	child, isMap := value.(map[string]any)
	if !isMap {
		return nil, false
	}

	return lookup(child, rest)
}

func evaluateComparison(config Config, execCtx *models.ExecutionContext) (bool, error) {
	left, ok := resolve(config.LeftOperand, execCtx)
	if !ok || left == nil {
		return false, nil
	}

	right := config.RightValue

	switch config.Operator {
	case "==":
		return equal(left, right), nil
	case "!=":
		return !equal(left, right), nil
	case ">", ">=", "<", "<=":
		l, lok := toFloat(left)
		r, rok := toFloat(right)

		if !lok || !rok {
			return false, fmt.Errorf("%w: %v %s %v", errNotNumeric, left, config.Operator, right)
		}

		return compare(l, r, config.Operator), nil
	case "contains":
		return strings.Contains(fmt.Sprint(left), fmt.Sprint(right)), nil
	case "starts-with":
		return strings.HasPrefix(fmt.Sprint(left), fmt.Sprint(right)), nil
	case "ends-with":
		return strings.HasSuffix(fmt.Sprint(left), fmt.Sprint(right)), nil
	default:
		return false, fmt.Errorf("unknown operator %q", config.Operator)
	}
}

func evaluateThreshold(config Config, execCtx *models.ExecutionContext) (bool, error) {
	value, ok := resolve(config.InputKey, execCtx)
	if !ok {
		return false, nil
	}

	number, ok := toFloat(value)
	if !ok {
		return false, nil
	}

	return compare(number, *config.Threshold, config.Comparison), nil
}

func evaluateDataCheck(config Config, execCtx *models.ExecutionContext) bool {
	value, ok := resolve(config.InputKey, execCtx)

	switch config.CheckType {
	case CheckExists:
		return ok && value != nil
	case CheckNotEmpty:
		return ok && notEmpty(value)
	case CheckIsSuccess:
		data, isMap := value.(map[string]any)
		if !isMap {
			return false
		}

		if success, isBool := data["success"].(bool); isBool {
			return success
		}

		return strings.EqualFold(fmt.Sprint(data["status"]), "success")
	default:
		return false
	}
}

func compare(left, right float64, operator string) bool {
	switch operator {
	case "==":
		return math.Abs(left-right) < epsilon
	case "!=":
		return math.Abs(left-right) >= epsilon
	case ">":
		return left > right
	case ">=":
		return left >= right
	case "<":
		return left < right
	case "<=":
		return left <= right
	default:
		return false
	}
}

func equal(left, right any) bool {
	if left == nil || right == nil {
		return left == nil && right == nil
	}

	l, lok := toFloat(left)
	r, rok := toFloat(right)

	if lok && rok {
		return math.Abs(l-r) < epsilon
	}

	return reflect.DeepEqual(left, right) || fmt.Sprint(left) == fmt.Sprint(right)
}

func notEmpty(value any) bool {
	if value == nil {
		return false
	}

	if s, ok := value.(string); ok {
		return strings.TrimSpace(s) != ""
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		return rv.Len() > 0
	default:
		return true
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}
