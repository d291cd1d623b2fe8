package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Encoding names the genome representation a payload holds.
type Encoding string

const (
	EncodingTree  Encoding = "tree"
	EncodingGraph Encoding = "graph"
)

// Genome is a persisted individual. Payload is the tree text format or the
// graph binary format, depending on Encoding.
type Genome struct {
	VersionedRecord
	ID         string   `json:"id"`
	RunID      string   `json:"run_id"`
	Encoding   Encoding `json:"encoding"`
	Island     int      `json:"island"`
	Generation int      `json:"generation"`
	Fitness    float64  `json:"fitness"`
	Payload    []byte   `json:"payload"`
}

// Population is a snapshot of one island: its members by genome id, in
// rank order, with their fitness and age.
type Population struct {
	VersionedRecord
	ID           string    `json:"id"`
	RunID        string    `json:"run_id"`
	Island       int       `json:"island"`
	Generation   int       `json:"generation"`
	GenomeIDs    []string  `json:"genome_ids"`
	Fitness      []float64 `json:"fitness"`
	Ages         []int     `json:"ages"`
	MutationProb float64   `json:"mutation_prob"`
}

// Run summarizes one evolutionary run.
type Run struct {
	VersionedRecord
	ID           string    `json:"id"`
	Encoding     Encoding  `json:"encoding"`
	Seed         uint32    `json:"seed"`
	Islands      int       `json:"islands"`
	Generations  int       `json:"generations"`
	BestFitness  float64   `json:"best_fitness"`
	BestGenomeID string    `json:"best_genome_id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// HistoryPoint is one compacted fitness history entry.
type HistoryPoint struct {
	Best float64 `json:"best"`
	Mean float64 `json:"mean"`
}

// FitnessHistory is an island's compacted history; each point covers
// Stride generations.
type FitnessHistory struct {
	Island int            `json:"island"`
	Stride int            `json:"stride"`
	Points []HistoryPoint `json:"points"`
}

type GenerationDiagnostics struct {
	Island       int     `json:"island"`
	Generation   int     `json:"generation"`
	BestFitness  float64 `json:"best_fitness"`
	MeanFitness  float64 `json:"mean_fitness"`
	MinFitness   float64 `json:"min_fitness"`
	Diversity    float64 `json:"diversity"`
	MutationProb float64 `json:"mutation_prob"`
	Distinct     int     `json:"distinct"`
	Evaluated    int     `json:"evaluated"`
	Elites       int     `json:"elites"`
}
