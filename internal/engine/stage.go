package engine

// Stage is one step of the generation pipeline.
type Stage int

// Pipeline stages in execution order.
const (
	StageNew Stage = iota
	StageInstantiate
	StageConnectOneToMany
	StageApplyAssignments
	StageDetokenise
	StageRunStreams
	StageConnectManyToMany
	StageConnectNamed
	StageDone
)

var stageNames = [...]string{
	StageNew:               "new",
	StageInstantiate:       "instantiate",
	StageConnectOneToMany:  "connect-one-to-many",
	StageApplyAssignments:  "apply-assignments",
	StageDetokenise:        "detokenise",
	StageRunStreams:        "run-streams",
	StageConnectManyToMany: "connect-many-to-many",
	StageConnectNamed:      "connect-named",
	StageDone:              "done",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}
