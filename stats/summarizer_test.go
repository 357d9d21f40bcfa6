package stats

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/churryboy/sheet-llm-chatbot/record"
)

const (
	genderHeader = "성별이 어떻게 되나요?"
	gradeHeader  = "현재 학년이 어떻게 되나요?"
)

func surveyDataset(grades []string) *record.Dataset {
	ds := &record.Dataset{Headers: []string{genderHeader, gradeHeader}}
	for i, g := range grades {
		gender := "여"
		if i%2 == 1 {
			gender = "남"
		}
		ds.Records = append(ds.Records, record.Record{
			genderHeader: gender,
			gradeHeader:  g,
		})
	}
	return ds
}

func TestNormalizeGrade(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"초1", "초등학생"},
		{"초3", "초등학생"},
		{"초6", "초등학생"},
		{"중1", "중학생"},
		{"중2", "중학생"},
		{"중3", "중학생"},
		{"고1", "고등학생"},
		{"고2", "고등학생"},
		{"고3", "고등학생"},
		{"01. 중2", "중학생"},
		{"대1", "대1"},
		{" 중2 ", "중학생"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeGrade(tt.in))
		})
	}
}

func TestRoundPercent_HalfUp(t *testing.T) {
	assert.Equal(t, 33.3, RoundPercent(100.0/3.0))
	assert.Equal(t, 66.7, RoundPercent(200.0/3.0))
	assert.Equal(t, 12.5, RoundPercent(12.45))
	assert.Equal(t, 50.0, RoundPercent(50.0))
}

func TestSummarize_CountsAndPercentages(t *testing.T) {
	ds := surveyDataset([]string{"중1", "중2", "중2", "고1", "대1", ""})

	summary := Summarize(ds)
	require.Equal(t, 6, summary.TotalRecords)

	grades := summary.Distributions[record.AttrGrade]
	assert.Equal(t, DenominatorFull, grades.Denominator)
	assert.Equal(t, 3, grades.Count("중학생"))
	assert.Equal(t, 1, grades.Count("고등학생"))
	assert.Equal(t, 1, grades.Count("대1"))

	// One record has a blank grade: counts sum below the total.
	assert.Equal(t, 5, grades.Counted())
	assert.LessOrEqual(t, grades.Counted(), summary.TotalRecords)

	// Percentages are over the full dataset size, not the counted rows.
	assert.Equal(t, 50.0, grades.Percent("중학생"))
	assert.Equal(t, 16.7, grades.Percent("고등학생"))
}

func TestSummarize_PrecedesSampling(t *testing.T) {
	// 120 records: 90 중학생, 30 고등학생. Statistics must reflect all
	// 120 regardless of the 50-record sample cap applied later, so a
	// post-cap computation would give different percentages.
	var grades []string
	for i := 0; i < 90; i++ {
		grades = append(grades, "중1")
	}
	for i := 0; i < 30; i++ {
		grades = append(grades, "고1")
	}
	ds := surveyDataset(grades)

	full := Summarize(ds)
	assert.Equal(t, 120, full.TotalRecords)
	assert.Equal(t, 75.0, full.Distributions[record.AttrGrade].Percent("중학생"))

	capped := &record.Dataset{Headers: ds.Headers, Records: ds.Records[:50]}
	truncated := Summarize(capped)

	// The guard this design exists for: stats over the truncated
	// sample disagree with stats over the full set.
	assert.NotEqual(t,
		full.Distributions[record.AttrGrade].Percent("중학생"),
		truncated.Distributions[record.AttrGrade].Percent("중학생"))
}

func TestSummarizeSubset_UsesSubsetDenominator(t *testing.T) {
	ds := surveyDataset([]string{"중1", "중2", "고1", "고2"})
	resolver := record.NewResolver(ds)

	subset := ds.Records[:2]
	summary := SummarizeSubset(subset, resolver)

	assert.Equal(t, DenominatorSubset, summary.Denominator)

	grades := summary.Distributions[record.AttrGrade]
	assert.Equal(t, DenominatorSubset, grades.Denominator)
	assert.Equal(t, 2, grades.Total)
	assert.Equal(t, 100.0, grades.Percent("중학생"))
}

func TestSummarize_LabelOrderIsFirstSeen(t *testing.T) {
	ds := surveyDataset([]string{"고1", "중1", "고2", "초3"})
	summary := Summarize(ds)

	assert.Equal(t, []string{"고등학생", "중학생", "초등학생"},
		summary.Distributions[record.AttrGrade].Labels)
}

func TestGradeYearCounts(t *testing.T) {
	ds := surveyDataset([]string{"중1", "중2", "중2", "01. 중3", "고1"})
	counts := GradeYearCounts(ds)

	assert.Equal(t, 1, counts["중1"])
	assert.Equal(t, 2, counts["중2"])
	assert.Equal(t, 1, counts["중3"])
	assert.Equal(t, 1, counts["고1"])
}
