package entity

// Scalar is the restricted value type for metadata/details maps: a tagged
// scalar (string | number | boolean) rather than an arbitrary tree, per
// Design Note §9's guidance on re-architecting duck-typed payloads.
type Scalar = any

// Metadata is a mapping from string key to scalar value. Values must be
// string, float64, int, int64, bool, or nil; Validate rejects anything else.
type Metadata map[string]Scalar

// Validate rejects metadata maps whose values are not tagged scalars.
func (m Metadata) Validate() error {
	for k, v := range m {
		switch v.(type) {
		case string, float64, bool, int, int64, nil:
			continue
		default:
			return errValidationf("metadata key %q: unsupported value type %T", k, v)
		}
	}
	return nil
}

// Component is the primary graph node.
type Component struct {
	ID          string        `json:"id"`
	Kind        ComponentKind `json:"kind"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Path        string        `json:"path,omitempty"`
	Codebase    string        `json:"codebase,omitempty"`
	Metadata    Metadata      `json:"metadata,omitempty"`
}

// Validate enforces the Component invariants from §3: kind drawn from the
// enumerated set, name non-empty.
func (c *Component) Validate() error {
	if !c.Kind.Valid() {
		return errValidationf("component kind %q is not a recognized kind", c.Kind)
	}
	if c.Name == "" {
		return errValidationf("component name must not be empty")
	}
	return c.Metadata.Validate()
}

// TemporalInfo is the optional temporal triple on a Relationship.
type TemporalInfo struct {
	TimeOrder   int     `json:"timeOrder,omitempty"`
	Probability float64 `json:"probability,omitempty"`
	Reasoning   string  `json:"reasoning,omitempty"`
	HasOrder    bool    `json:"-"`
	HasProb     bool    `json:"-"`
}

// Relationship is a directed, typed edge between two Components.
type Relationship struct {
	ID       string           `json:"id"`
	Type     RelationshipType `json:"type"`
	SourceID string           `json:"sourceId"`
	TargetID string           `json:"targetId"`
	Details  Metadata         `json:"details,omitempty"`
	Temporal *TemporalInfo    `json:"temporal,omitempty"`
}

// Validate enforces the structural invariants from §3 that do not require a
// backend lookup (source/target existence is checked by the Graph Store).
func (r *Relationship) Validate() error {
	if !r.Type.Valid() {
		return errValidationf("relationship type %q is not a recognized user-visible type", r.Type)
	}
	if r.SourceID == "" || r.TargetID == "" {
		return errValidationf("relationship requires both sourceId and targetId")
	}
	if r.Temporal != nil {
		if r.Temporal.HasProb && (r.Temporal.Probability < 0 || r.Temporal.Probability > 1) {
			return errValidationf("relationship probability %v is outside [0,1]", r.Temporal.Probability)
		}
		if r.Temporal.HasOrder && r.Temporal.TimeOrder < 1 {
			return errValidationf("relationship timeOrder %d must be a positive integer", r.Temporal.TimeOrder)
		}
	}
	return r.Details.Validate()
}

// Task is a tracked unit of work.
type Task struct {
	ID                  string        `json:"id"`
	Name                string        `json:"name"`
	Description         string        `json:"description,omitempty"`
	Status              TaskStatus    `json:"status"`
	Progress            float64       `json:"progress"`
	Codebase            string        `json:"codebase,omitempty"`
	RelatedComponentIDs []string      `json:"relatedComponentIds,omitempty"`
	Metadata            Metadata      `json:"metadata,omitempty"`
}

// Validate enforces the Task invariants from §3.
func (t *Task) Validate() error {
	if t.Name == "" {
		return errValidationf("task name must not be empty")
	}
	if !t.Status.Valid() {
		return errValidationf("task status %q is not a recognized status", t.Status)
	}
	if t.Progress < 0 || t.Progress > 1 {
		return errValidationf("task progress %v is outside [0,1]", t.Progress)
	}
	return t.Metadata.Validate()
}

// Comment is a free-text annotation attached to exactly one node.
type Comment struct {
	ID       string   `json:"id"`
	ParentID string   `json:"parentId"`
	Content  string   `json:"content"`
	Author   string   `json:"author"`
	Created  string   `json:"created"`
	Updated  string   `json:"updated,omitempty"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// Validate enforces the structural Comment invariants (parent existence is
// checked by the Graph Store at creation time).
func (c *Comment) Validate() error {
	if c.ParentID == "" {
		return errValidationf("comment requires a parent node id")
	}
	if c.Content == "" {
		return errValidationf("comment content must not be empty")
	}
	return c.Metadata.Validate()
}

// ChangeEvent is one Change Journal entry.
type ChangeEvent struct {
	ID          string       `json:"id"`
	Operation   Operation    `json:"operation"`
	EntityKind  EntityKind   `json:"entityKind"`
	EntityID    string       `json:"entityId"`
	BeforeState string       `json:"beforeState,omitempty"` // JSON-encoded, empty = null
	AfterState  string       `json:"afterState,omitempty"`  // JSON-encoded, empty = null
	Timestamp   string       `json:"timestamp"`
	SessionID   string       `json:"sessionId,omitempty"`
	UserID      string       `json:"userId,omitempty"`
	Source      ChangeSource `json:"source,omitempty"`
	Metadata    Metadata     `json:"metadata,omitempty"`
}

// Snapshot is a labeled capture of the entire entity graph.
type Snapshot struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Timestamp   string `json:"timestamp"`
	Payload     string `json:"-"` // JSON-encoded GraphPayload, never echoed by listSnapshots
}

// GraphPayload is the dense, self-contained form of every live entity
// captured by createSnapshot and consumed by restoreFromSnapshot.
type GraphPayload struct {
	Components    []*Component    `json:"components"`
	Tasks         []*Task         `json:"tasks"`
	Comments      []*Comment      `json:"comments"`
	Relationships []*Relationship `json:"relationships"`
}

func errValidationf(format string, args ...any) error {
	return newValidationError(format, args...)
}
