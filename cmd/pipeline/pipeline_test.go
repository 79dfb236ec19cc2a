package pipeline

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"quantsystem/src/model"
)

func TestPrintRanking(t *testing.T) {
	var buf bytes.Buffer
	PrintRanking(&buf, []model.Selection{
		{Rank: 1, Symbol: "0700.HK", TotalScore: 72, TechnicalScore: 25, VolumeScore: 20, TrendScore: 17, PatternScore: 10, BuySignal: "BUY", CurrentPrice: 350.2},
		{Rank: 2, Symbol: "0005.HK", TotalScore: 40, BuySignal: "HOLD", CurrentPrice: 62},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "RANK"))
	assert.Contains(t, lines[1], "0700.HK")
	assert.Contains(t, lines[1], "350.200")
	assert.Contains(t, lines[2], "HOLD")
}
