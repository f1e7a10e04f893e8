package item

import "strings"

// Stage represents the lifecycle position of an item.
type Stage string

const (
	StageNew         Stage = "new"
	StageIngested    Stage = "ingested"
	StageTransformed Stage = "transformed"
	StageDrafted     Stage = "drafted"
	StagePublished   Stage = "published"
	StageFailed      Stage = "failed"
)

var allStages = []Stage{
	StageNew,
	StageIngested,
	StageTransformed,
	StageDrafted,
	StagePublished,
	StageFailed,
}

var stageSet = func() map[Stage]struct{} {
	set := make(map[Stage]struct{}, len(allStages))
	for _, stage := range allStages {
		set[stage] = struct{}{}
	}
	return set
}()

// forwardOrder ranks the non-failed stages; higher is further along.
var forwardOrder = map[Stage]int{
	StageNew:         0,
	StageIngested:    1,
	StageTransformed: 2,
	StageDrafted:     3,
	StagePublished:   4,
}

type transition struct {
	from Stage
	to   Stage
}

// transitions lists every legal forward move. Failure moves are handled by
// CanTransition since failed is reachable from any non-terminal stage.
var transitions = []transition{
	{from: StageNew, to: StageIngested},
	{from: StageIngested, to: StageTransformed},
	{from: StageTransformed, to: StageDrafted},
	{from: StageDrafted, to: StagePublished},
}

var transitionSet = func() map[transition]struct{} {
	set := make(map[transition]struct{}, len(transitions))
	for _, tr := range transitions {
		set[tr] = struct{}{}
	}
	return set
}()

// AllStages returns the ordered list of known stages.
func AllStages() []Stage {
	cp := make([]Stage, len(allStages))
	copy(cp, allStages)
	return cp
}

// ParseStage converts a string into a known Stage.
func ParseStage(value string) (Stage, bool) {
	normalized := Stage(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := stageSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether no further transition can leave the stage.
func (s Stage) IsTerminal() bool {
	return s == StagePublished || s == StageFailed
}

// Before reports whether s precedes other in the forward order. Failed is
// never before or after anything.
func (s Stage) Before(other Stage) bool {
	a, okA := forwardOrder[s]
	b, okB := forwardOrder[other]
	return okA && okB && a < b
}

// CanTransition reports whether moving from one stage to another is legal.
// Transitions are monotonic; the pipeline never regresses an item.
func CanTransition(from, to Stage) bool {
	if to == StageFailed {
		return !from.IsTerminal()
	}
	_, ok := transitionSet[transition{from: from, to: to}]
	return ok
}

// Previous returns the stage whose completion is required before work on
// target may start.
func Previous(target Stage) (Stage, bool) {
	for _, tr := range transitions {
		if tr.to == target {
			return tr.from, true
		}
	}
	return "", false
}
