package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/graphkeep/graphkeep/internal/graphkeeperr"
)

func TestComponentValidate(t *testing.T) {
	cases := []struct {
		name    string
		c       Component
		wantErr bool
	}{
		{"valid", Component{Kind: KindFile, Name: "a.go"}, false},
		{"empty name", Component{Kind: KindFile, Name: ""}, true},
		{"unknown kind", Component{Kind: "BOGUS", Name: "a.go"}, true},
		{"bad metadata value", Component{Kind: KindFile, Name: "a.go", Metadata: Metadata{"x": []string{"nope"}}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.c.Validate()
			if tc.wantErr {
				assert.Error(t, err)
				assert.Equal(t, graphkeeperr.Validation, graphkeeperr.KindOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRelationshipValidate(t *testing.T) {
	cases := []struct {
		name    string
		r       Relationship
		wantErr bool
	}{
		{"valid", Relationship{Type: RelDependsOn, SourceID: "a", TargetID: "b"}, false},
		{"internal type rejected", Relationship{Type: RelHasComment, SourceID: "a", TargetID: "b"}, true},
		{"missing target", Relationship{Type: RelDependsOn, SourceID: "a"}, true},
		{"probability out of range", Relationship{
			Type: RelDependsOn, SourceID: "a", TargetID: "b",
			Temporal: &TemporalInfo{HasProb: true, Probability: 1.5},
		}, true},
		{"probability in range", Relationship{
			Type: RelDependsOn, SourceID: "a", TargetID: "b",
			Temporal: &TemporalInfo{HasProb: true, Probability: 0.5},
		}, false},
		{"timeOrder not positive", Relationship{
			Type: RelDependsOn, SourceID: "a", TargetID: "b",
			Temporal: &TemporalInfo{HasOrder: true, TimeOrder: 0},
		}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.r.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTaskValidate(t *testing.T) {
	cases := []struct {
		name    string
		task    Task
		wantErr bool
	}{
		{"valid", Task{Name: "do thing", Status: StatusTODO, Progress: 0.5}, false},
		{"empty name", Task{Name: "", Status: StatusTODO}, true},
		{"bad status", Task{Name: "x", Status: "NOT_A_STATUS"}, true},
		{"progress below zero", Task{Name: "x", Status: StatusTODO, Progress: -0.1}, true},
		{"progress above one", Task{Name: "x", Status: StatusTODO, Progress: 1.1}, true},
		{"progress boundary zero", Task{Name: "x", Status: StatusTODO, Progress: 0}, false},
		{"progress boundary one", Task{Name: "x", Status: StatusTODO, Progress: 1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.task.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCommentValidate(t *testing.T) {
	assert.NoError(t, (&Comment{ParentID: "p", Content: "hi", Author: "u"}).Validate())
	assert.Error(t, (&Comment{ParentID: "", Content: "hi"}).Validate())
	assert.Error(t, (&Comment{ParentID: "p", Content: ""}).Validate())
}

func TestPriorityOrdering(t *testing.T) {
	assert.True(t, PriorityUrgent.AtLeast(PriorityHigh))
	assert.True(t, PriorityMedium.AtLeast(PriorityMedium))
	assert.False(t, PriorityLow.AtLeast(PriorityMedium))
	assert.True(t, PriorityHigh.Rank() > PriorityMedium.Rank())
}

func TestRelationshipTypeInternal(t *testing.T) {
	assert.True(t, RelHasComment.Internal())
	assert.True(t, RelRelatesTo.Internal())
	assert.False(t, RelDependsOn.Internal())
	assert.False(t, RelDependsOn.Valid() == false)
}
