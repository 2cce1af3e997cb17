// Package progress implements the server-push protocol of a bulk upload:
// "data:"-prefixed JSON frames separated by blank lines, closed by a sentinel.
package progress

type Stage string

const (
	StageInitializing Stage = "initializing"
	StageParsing      Stage = "parsing"
	StageValidating   Stage = "validating"
	StageCommitting   Stage = "committing"
	StageFinalizing   Stage = "finalizing"
	StageDone         Stage = "done"
	StageFailed       Stage = "failed"
)

var stageRank = map[Stage]int{
	StageInitializing: 1,
	StageParsing:      2,
	StageValidating:   3,
	StageCommitting:   4,
	StageFinalizing:   5,
	StageDone:         6,
	StageFailed:       6,
}

// Rank orders stages; unknown stages rank 0.
func (s Stage) Rank() int {
	return stageRank[s]
}

type Stats struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

func (s Stats) Total() int {
	return s.Created + s.Skipped + s.Failed
}

// Frame is one progress update. A frame carrying FinalStats is the terminal result.
// ImportID names the recorded run on the first and final frames.
type Frame struct {
	ImportID   string   `json:"importId,omitempty"`
	Stage      Stage    `json:"stage"`
	Current    int      `json:"current"`
	Total      int      `json:"total"`
	Percentage float64  `json:"percentage"`
	Message    string   `json:"message"`
	Errors     []string `json:"errors,omitempty"`
	Success    *bool    `json:"success,omitempty"`
	FinalStats *Stats   `json:"finalStats,omitempty"`
}

func (f Frame) IsFinal() bool {
	return f.FinalStats != nil
}

func (f Frame) Succeeded() bool {
	return f.Success != nil && *f.Success
}

// Final builds the terminal frame of a run.
func Final(success bool, stats Stats, message string, errs []string) Frame {
	stage := StageDone
	if !success {
		stage = StageFailed
	}
	return Frame{
		Stage:      stage,
		Current:    stats.Total(),
		Total:      stats.Total(),
		Percentage: 100,
		Message:    message,
		Errors:     errs,
		Success:    &success,
		FinalStats: &stats,
	}
}

// Apply returns the frame to display after receiving next while showing current.
// A frame only replaces another if it is final, from a later stage, or further
// along the same stage. Nothing replaces a final frame.
func Apply(current, next Frame) Frame {
	switch {
	case current.IsFinal():
		return current
	case next.IsFinal():
		return next
	case next.Stage.Rank() > current.Stage.Rank():
		return next
	case next.Stage.Rank() == current.Stage.Rank() && next.Current >= current.Current:
		return next
	default:
		return current
	}
}
