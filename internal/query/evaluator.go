package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/graphkeep/graphkeep/internal/entity"
	"github.com/graphkeep/graphkeep/internal/storage"
)

// TaskPredicate reports whether a Task satisfies a compiled textQuery
// expression (searchTasks' optional free-text filter, spec §4.1).
type TaskPredicate func(*entity.Task) bool

// Evaluator compiles a query AST into a TaskPredicate, resolving any
// relative time values (e.g. "7d", "24h") against a fixed reference time so
// that a single evaluation is internally consistent.
type Evaluator struct {
	now time.Time
}

// NewEvaluator creates an Evaluator anchored at now.
func NewEvaluator(now time.Time) *Evaluator {
	return &Evaluator{now: now}
}

// Evaluate compiles node into a TaskPredicate.
func (e *Evaluator) Evaluate(node Node) (TaskPredicate, error) {
	return e.buildPredicate(node)
}

func (e *Evaluator) buildPredicate(node Node) (TaskPredicate, error) {
	switch n := node.(type) {
	case *ComparisonNode:
		return e.buildComparisonPredicate(n)
	case *AndNode:
		left, err := e.buildPredicate(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := e.buildPredicate(n.Right)
		if err != nil {
			return nil, err
		}
		return func(t *entity.Task) bool { return left(t) && right(t) }, nil
	case *OrNode:
		left, err := e.buildPredicate(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := e.buildPredicate(n.Right)
		if err != nil {
			return nil, err
		}
		return func(t *entity.Task) bool { return left(t) || right(t) }, nil
	case *NotNode:
		operand, err := e.buildPredicate(n.Operand)
		if err != nil {
			return nil, err
		}
		return func(t *entity.Task) bool { return !operand(t) }, nil
	default:
		return nil, fmt.Errorf("unexpected node type: %T", node)
	}
}

func (e *Evaluator) buildComparisonPredicate(comp *ComparisonNode) (TaskPredicate, error) {
	switch comp.Field {
	case "status":
		return e.buildStatusPredicate(comp)
	case "name", "title":
		return e.buildNamePredicate(comp)
	case "description", "desc":
		return e.buildDescriptionPredicate(comp)
	case "codebase":
		return e.buildCodebasePredicate(comp)
	case "progress":
		return e.buildProgressPredicate(comp)
	case "id":
		return e.buildIDPredicate(comp)
	case "component":
		return e.buildComponentPredicate(comp)
	default:
		if strings.HasPrefix(comp.Field, "metadata.") {
			return e.buildMetadataPredicate(comp)
		}
		return nil, fmt.Errorf("unknown field: %s", comp.Field)
	}
}

func (e *Evaluator) buildStatusPredicate(comp *ComparisonNode) (TaskPredicate, error) {
	status := entity.TaskStatus(strings.ToUpper(comp.Value))
	switch comp.Op {
	case OpEquals:
		return func(t *entity.Task) bool { return t.Status == status }, nil
	case OpNotEquals:
		return func(t *entity.Task) bool { return t.Status != status }, nil
	default:
		return nil, fmt.Errorf("status does not support %s operator", comp.Op.String())
	}
}

func (e *Evaluator) buildNamePredicate(comp *ComparisonNode) (TaskPredicate, error) {
	value := strings.ToLower(comp.Value)
	switch comp.Op {
	case OpEquals:
		return func(t *entity.Task) bool { return strings.Contains(strings.ToLower(t.Name), value) }, nil
	case OpNotEquals:
		return func(t *entity.Task) bool { return !strings.Contains(strings.ToLower(t.Name), value) }, nil
	default:
		return nil, fmt.Errorf("name does not support %s operator", comp.Op.String())
	}
}

func (e *Evaluator) buildDescriptionPredicate(comp *ComparisonNode) (TaskPredicate, error) {
	value := strings.ToLower(comp.Value)
	switch comp.Op {
	case OpEquals:
		return func(t *entity.Task) bool { return strings.Contains(strings.ToLower(t.Description), value) }, nil
	case OpNotEquals:
		return func(t *entity.Task) bool { return !strings.Contains(strings.ToLower(t.Description), value) }, nil
	default:
		return nil, fmt.Errorf("description does not support %s operator", comp.Op.String())
	}
}

func (e *Evaluator) buildCodebasePredicate(comp *ComparisonNode) (TaskPredicate, error) {
	if comp.Op != OpEquals && comp.Op != OpNotEquals {
		return nil, fmt.Errorf("codebase only supports = and != operators")
	}
	eq := comp.Op == OpEquals
	return func(t *entity.Task) bool { return (t.Codebase == comp.Value) == eq }, nil
}

func (e *Evaluator) buildProgressPredicate(comp *ComparisonNode) (TaskPredicate, error) {
	want, err := strconv.ParseFloat(comp.Value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid progress value: %s", comp.Value)
	}
	switch comp.Op {
	case OpEquals:
		return func(t *entity.Task) bool { return t.Progress == want }, nil
	case OpNotEquals:
		return func(t *entity.Task) bool { return t.Progress != want }, nil
	case OpLess:
		return func(t *entity.Task) bool { return t.Progress < want }, nil
	case OpLessEq:
		return func(t *entity.Task) bool { return t.Progress <= want }, nil
	case OpGreater:
		return func(t *entity.Task) bool { return t.Progress > want }, nil
	case OpGreaterEq:
		return func(t *entity.Task) bool { return t.Progress >= want }, nil
	default:
		return nil, fmt.Errorf("unexpected operator: %s", comp.Op.String())
	}
}

func (e *Evaluator) buildIDPredicate(comp *ComparisonNode) (TaskPredicate, error) {
	value := comp.Value
	if strings.HasSuffix(value, "*") {
		prefix := strings.TrimSuffix(value, "*")
		switch comp.Op {
		case OpEquals:
			return func(t *entity.Task) bool { return strings.HasPrefix(t.ID, prefix) }, nil
		case OpNotEquals:
			return func(t *entity.Task) bool { return !strings.HasPrefix(t.ID, prefix) }, nil
		default:
			return nil, fmt.Errorf("id with wildcard only supports = and != operators")
		}
	}
	switch comp.Op {
	case OpEquals:
		return func(t *entity.Task) bool { return t.ID == value }, nil
	case OpNotEquals:
		return func(t *entity.Task) bool { return t.ID != value }, nil
	default:
		return nil, fmt.Errorf("id does not support %s operator", comp.Op.String())
	}
}

func (e *Evaluator) buildComponentPredicate(comp *ComparisonNode) (TaskPredicate, error) {
	if comp.Op != OpEquals {
		return nil, fmt.Errorf("component only supports = operator")
	}
	value := comp.Value
	return func(t *entity.Task) bool {
		for _, id := range t.RelatedComponentIDs {
			if id == value {
				return true
			}
		}
		return false
	}, nil
}

// buildMetadataPredicate handles metadata.<key>=<value>, comparing the
// scalar at that key after json.Marshal/Unmarshal round-tripping through the
// graph backend (Metadata values are already typed Go scalars in-process).
func (e *Evaluator) buildMetadataPredicate(comp *ComparisonNode) (TaskPredicate, error) {
	if comp.Op != OpEquals {
		return nil, fmt.Errorf("metadata fields only support = operator")
	}
	key := strings.TrimPrefix(comp.Field, "metadata.")
	if err := storage.ValidateMetadataKey(key); err != nil {
		return nil, err
	}
	value := comp.Value
	return func(t *entity.Task) bool {
		v, ok := t.Metadata[key]
		if !ok {
			return false
		}
		return fmt.Sprintf("%v", v) == value
	}, nil
}

// Evaluate is a convenience function that parses and compiles a textQuery
// string against the current time.
func Evaluate(textQuery string) (TaskPredicate, error) {
	return EvaluateAt(textQuery, time.Now())
}

// EvaluateAt parses and compiles a textQuery string against a fixed
// reference time, so relative time comparisons (not currently exposed as
// Task fields, but reserved for future Component temporal queries) are
// deterministic within a single call.
func EvaluateAt(textQuery string, now time.Time) (TaskPredicate, error) {
	node, err := Parse(textQuery)
	if err != nil {
		return nil, err
	}
	return NewEvaluator(now).Evaluate(node)
}
