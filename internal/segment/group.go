package segment

// Experiment is a run of consecutive chunks sharing one experiment id.
type Experiment struct {
	ID     string  `json:"experiment_id"`
	Chunks []Chunk `json:"chunks"`
}

// GroupByExperiment groups labeled chunks by experiment id in order of first
// appearance. Chunks without an id are skipped.
func GroupByExperiment(chunks []Chunk) []Experiment {
	var groups []Experiment
	index := make(map[string]int)
	for _, c := range chunks {
		id := chunkExperimentID(c)
		if id == "" {
			continue
		}
		i, ok := index[id]
		if !ok {
			i = len(groups)
			index[id] = i
			groups = append(groups, Experiment{ID: id})
		}
		groups[i].Chunks = append(groups[i].Chunks, c)
	}
	return groups
}

// FilterByExperiment returns the chunks whose experiment id matches id exactly.
func FilterByExperiment(chunks []Chunk, id string) []Chunk {
	var out []Chunk
	for _, c := range chunks {
		if chunkExperimentID(c) == id {
			out = append(out, c)
		}
	}
	return out
}

func chunkExperimentID(c Chunk) string {
	if c.ExperimentID != "" {
		return c.ExperimentID
	}
	if v, ok := c.Metadata[MetaExperimentID].(string); ok {
		return v
	}
	return ""
}
