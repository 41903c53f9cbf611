package voterroll

import (
	"github.com/janneta/canvass/voter"
	"go.uber.org/zap"
)

// RemoveDuplicates collapses the rows sharing a document id, the last
// one winning, and returns the voters in first-seen order. Rows
// without any id are skipped.
func RemoveDuplicates(rows []*Row, sheet string, logger *zap.SugaredLogger) []voter.Voter {
	index := make(map[string]int)
	var voters []voter.Voter
	duplicatedLines, skippedLines := 0, 0
	for _, r := range rows {
		v := r.Voter()
		key := v.Key()
		if key == "" {
			skippedLines++
			continue
		}
		if i, ok := index[key]; ok {
			duplicatedLines++
			voters[i] = v
			continue
		}
		index[key] = len(voters)
		voters = append(voters, v)
	}
	logger.Infow("voter roll read", "sheet", sheet, "lines", len(rows), "voters", len(voters), "duplicated", duplicatedLines, "skipped", skippedLines)
	return voters
}
