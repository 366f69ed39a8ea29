package planner

import (
	"testing"

	"github.com/sahilchouksey/go-init-setup/model"
)

func TestPlan(t *testing.T) {
	cases := []struct {
		name      string
		pages     int
		wantSize  int
		wantNum   int
		wantPar   int
		wantOver  int
		wantStrat Strategy
	}{
		{"tiny clamps to 1 page", 0, 1, 1, 2, 0, StrategySmall},
		{"small single chunk", 12, 12, 1, 2, 0, StrategySmall},
		{"small boundary 50", 50, 50, 1, 2, 0, StrategySmall},
		{"medium boundary 51", 51, 40, 2, 6, 2, StrategyMedium},
		{"medium 200", 200, 40, 5, 6, 2, StrategyMedium},
		{"large 250", 250, 30, 9, 8, 2, StrategyLarge},
		{"medium 100 pages", 100, 40, 3, 6, 2, StrategyMedium},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Plan(tc.pages, model.ModelTierBalanced)
			if p.ChunkSizePages != tc.wantSize {
				t.Errorf("ChunkSizePages = %d, want %d", p.ChunkSizePages, tc.wantSize)
			}
			if p.NumChunks != tc.wantNum {
				t.Errorf("NumChunks = %d, want %d", p.NumChunks, tc.wantNum)
			}
			if p.ParallelWorkers != tc.wantPar {
				t.Errorf("ParallelWorkers = %d, want %d", p.ParallelWorkers, tc.wantPar)
			}
			if p.OverlapPages != tc.wantOver {
				t.Errorf("OverlapPages = %d, want %d", p.OverlapPages, tc.wantOver)
			}
			if p.Strategy != tc.wantStrat {
				t.Errorf("Strategy = %s, want %s", p.Strategy, tc.wantStrat)
			}
		})
	}
}
