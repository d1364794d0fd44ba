package stage

import "github.com/askiada/go-martian/pkg/mro/model"

// Metadata describes the invocation an implementation runs in.
type Metadata struct {
	RunID    string
	Stage    string
	Phase    model.Phase
	Source   string
	FilesDir string
	// Chunk names the chunk a main phase runs for, e.g. "chnk0". It is empty outside chunked runs.
	Chunk string
}

// Map flattens the metadata for implementations that only see plain maps.
func (m Metadata) Map() map[string]string {
	return map[string]string{
		"run_id":    m.RunID,
		"stage":     m.Stage,
		"phase":     string(m.Phase),
		"source":    m.Source,
		"files_dir": m.FilesDir,
		"chunk":     m.Chunk,
	}
}
