// Package stats computes aggregate category distributions over a full
// Dataset, independent of any sampling applied later during context
// assembly. Percentages always state their denominator so a downstream
// reader can tell a full-dataset figure from a filtered-subset figure.
package stats

import (
	"fmt"
	"math"

	"github.com/churryboy/sheet-llm-chatbot/record"
)

// Denominator identifies which population a distribution's percentages
// are computed against.
type Denominator string

const (
	// DenominatorFull means percentages are over the whole Dataset.
	DenominatorFull Denominator = "full"

	// DenominatorSubset means the caller supplied a filtered subset
	// and percentages are over that subset's size.
	DenominatorSubset Denominator = "subset"
)

// Distribution holds category counts and derived percentages for one
// tracked attribute. Counts sum to at most Total: records with a blank
// attribute contribute to no category.
type Distribution struct {
	// Attribute is the logical attribute this distribution tracks.
	Attribute record.Attribute

	// Total is the denominator used for percentages.
	Total int

	// Denominator states whether Total is the full dataset or an
	// explicitly requested subset.
	Denominator Denominator

	// Labels lists categories in first-seen record order.
	Labels []string

	counts map[string]int
}

// Count returns the count for a category label.
func (d *Distribution) Count(label string) int {
	return d.counts[label]
}

// Percent returns the category's share of Total as a percentage
// rounded half-up to one decimal place.
func (d *Distribution) Percent(label string) float64 {
	if d.Total == 0 {
		return 0
	}
	return RoundPercent(float64(d.counts[label]) / float64(d.Total) * 100)
}

// Counted returns the sum of all category counts. Always <= Total.
func (d *Distribution) Counted() int {
	sum := 0
	for _, c := range d.counts {
		sum += c
	}
	return sum
}

func (d *Distribution) add(label string) {
	if _, seen := d.counts[label]; !seen {
		d.Labels = append(d.Labels, label)
	}
	d.counts[label]++
}

// RoundPercent rounds half-up to one decimal place. Used everywhere a
// percentage is produced so all call sites agree.
func RoundPercent(v float64) float64 {
	return math.Floor(v*10+0.5) / 10
}

// Summary holds the distributions for every tracked attribute.
type Summary struct {
	// TotalRecords is the full Dataset size the summary was built over.
	TotalRecords int

	// Denominator states which population TotalRecords counts.
	Denominator Denominator

	// Distributions is keyed by tracked attribute.
	Distributions map[record.Attribute]*Distribution
}

// TrackedAttributes are the attributes summarized for every dataset.
var TrackedAttributes = []record.Attribute{
	record.AttrGender,
	record.AttrGrade,
	record.AttrRegion,
	record.AttrToolUsage,
}

// Summarize computes distributions over the complete Dataset. This runs
// before any sample cap is applied: the figures here reflect every
// record, not the rows later shown to the model.
func Summarize(ds *record.Dataset) *Summary {
	resolver := record.NewResolver(ds)
	return summarize(ds.Records, resolver, ds.Len(), DenominatorFull)
}

// SummarizeSubset computes distributions over an explicitly filtered
// subset; percentages use the subset's size as denominator and the
// distributions are marked accordingly.
func SummarizeSubset(records []record.Record, resolver *record.Resolver) *Summary {
	return summarize(records, resolver, len(records), DenominatorSubset)
}

func summarize(records []record.Record, resolver *record.Resolver, total int, denom Denominator) *Summary {
	summary := &Summary{
		TotalRecords:  total,
		Denominator:   denom,
		Distributions: make(map[record.Attribute]*Distribution, len(TrackedAttributes)),
	}
	for _, attr := range TrackedAttributes {
		summary.Distributions[attr] = &Distribution{
			Attribute:   attr,
			Total:       total,
			Denominator: denom,
			counts:      make(map[string]int),
		}
	}

	for _, rec := range records {
		for _, attr := range TrackedAttributes {
			value := resolver.Value(rec, attr)
			if value == "" {
				continue
			}
			if attr == record.AttrGrade {
				value = NormalizeGrade(value)
			} else {
				value = StripAnswerPrefix(value)
			}
			if value == "" {
				continue
			}
			summary.Distributions[attr].add(value)
		}
	}

	return summary
}

// GradeYearCounts returns per-year grade counts (중1, 중2, ...) without
// school-level collapsing, for count summaries that need the raw
// breakdown.
func GradeYearCounts(ds *record.Dataset) map[string]int {
	resolver := record.NewResolver(ds)
	counts := make(map[string]int)
	for _, rec := range ds.Records {
		value := StripAnswerPrefix(resolver.Value(rec, record.AttrGrade))
		if value != "" {
			counts[value]++
		}
	}
	return counts
}

// AttributeTitle returns the Korean section title for an attribute.
func AttributeTitle(attr record.Attribute) string {
	switch attr {
	case record.AttrGender:
		return "성별 분포"
	case record.AttrGrade:
		return "학년 분포"
	case record.AttrRegion:
		return "지역 분포"
	case record.AttrToolUsage:
		return "학습 도구 분포"
	default:
		return fmt.Sprintf("%s 분포", attr)
	}
}
