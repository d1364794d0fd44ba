package hook

import (
	"strconv"

	"github.com/askiada/go-martian/pkg/mro/model"
)

type phaseKind string

const (
	StartKind phaseKind = "start"
	SplitKind phaseKind = "split"
	MainKind  phaseKind = "main"
	JoinKind  phaseKind = "join"
	EndKind   phaseKind = "end"
)

// PhaseInfo describes one vertex of a run.
type PhaseInfo struct {
	Kind  phaseKind
	Name  string
	Phase model.Phase
	// Chunk is the chunk index of a main phase, -1 otherwise.
	Chunk      int
	Concurrent int
	FilesDir   string
}

var (
	Start = &PhaseInfo{Kind: StartKind, Name: "start", Chunk: -1, Concurrent: 1}
	End   = &PhaseInfo{Kind: EndKind, Name: "end", Chunk: -1, Concurrent: 1}
)

// ChunkName is the vertex and directory name of chunk i.
func ChunkName(i int) string {
	return "chnk" + strconv.Itoa(i)
}
