// Package planner implements the Chunk Planner: a pure function turning a
// page count into the chunking policy the rest of the pipeline follows.
package planner

import "github.com/sahilchouksey/go-init-setup/model"

// Strategy names which row of the policy table a plan was built from.
type Strategy string

const (
	StrategySmall  Strategy = "small"
	StrategyMedium Strategy = "medium"
	StrategyLarge  Strategy = "large"
)

// ChunkPlan is the output of Plan: how a PDF should be split and dispatched.
type ChunkPlan struct {
	ChunkSizePages  int
	NumChunks       int
	ParallelWorkers int
	Strategy        Strategy
	OverlapPages    int
}

// Plan computes chunk size, count, overlap and parallelism bound for a
// PDF with the given page count, following the fixed policy table.
//
// | Pages | Strategy | Chunk size (pages) | Parallel cap |
// |-------|----------|--------------------|--------------|
// | <=50  | small    | page count         | 2            |
// | <=200 | medium   | 40                 | 6            |
// | >200  | large    | 30                 | 8            |
func Plan(pageCount int, _ model.ModelTier) ChunkPlan {
	if pageCount < 1 {
		pageCount = 1
	}

	var p ChunkPlan
	switch {
	case pageCount <= 50:
		p.Strategy = StrategySmall
		p.ChunkSizePages = pageCount
		p.ParallelWorkers = 2
	case pageCount <= 200:
		p.Strategy = StrategyMedium
		p.ChunkSizePages = 40
		p.ParallelWorkers = 6
	default:
		p.Strategy = StrategyLarge
		p.ChunkSizePages = 30
		p.ParallelWorkers = 8
	}

	p.NumChunks = (pageCount + p.ChunkSizePages - 1) / p.ChunkSizePages
	if p.NumChunks > 1 {
		p.OverlapPages = 2
	}
	return p
}
