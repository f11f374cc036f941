package drift

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ppiankov/metadag/internal/model"
)

const (
	warningFloor  = 0.40
	criticalFloor = 0.60
	bucketCount   = 5
)

// Stats summarizes drift scores.
type Stats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Stdev float64 `json:"stdev"`
}

// Bucket counts scores in [Low, High); the last bucket includes 1.0.
type Bucket struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Count int     `json:"count"`
	Ratio float64 `json:"ratio"`
}

// CodeShare is one row of the classification distribution.
type CodeShare struct {
	Code  model.ClassificationCode `json:"code"`
	Type  string                   `json:"type"`
	Count int                      `json:"count"`
	Ratio float64                  `json:"ratio"`
}

// Thresholds are advisory alert lines derived from a baseline.
type Thresholds struct {
	Warning  float64 `json:"warning"`
	Critical float64 `json:"critical"`
}

// Baseline is an offline reference distribution of drift scores.
type Baseline struct {
	CreatedAt    time.Time   `json:"created_at"`
	SampleSize   int         `json:"sample_size"`
	Stats        Stats       `json:"score_stats"`
	Buckets      []Bucket    `json:"buckets"`
	Distribution []CodeShare `json:"classification_distribution"`
	Suggested    Thresholds  `json:"suggested_thresholds"`
}

// BuildBaseline computes the baseline over entries. Scores outside [0,1]
// are ignored. The classification distribution lists codes in first-seen order.
func BuildBaseline(entries []model.DriftEntry, at time.Time) Baseline {
	scores := make([]float64, 0, len(entries))
	for _, e := range entries {
		if e.Score >= 0 && e.Score <= 1 && !math.IsNaN(e.Score) {
			scores = append(scores, e.Score)
		}
	}

	stats := computeStats(scores)
	return Baseline{
		CreatedAt:    at.UTC(),
		SampleSize:   len(scores),
		Stats:        stats,
		Buckets:      bucketize(scores),
		Distribution: distribution(entries),
		Suggested:    suggest(stats),
	}
}

func computeStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}
	vmin, vmax, sum := values[0], values[0], 0.0
	for _, v := range values {
		vmin = math.Min(vmin, v)
		vmax = math.Max(vmax, v)
		sum += v
	}
	mean := sum / float64(len(values))

	stdev := 0.0
	if len(values) > 1 {
		var ss float64
		for _, v := range values {
			ss += (v - mean) * (v - mean)
		}
		stdev = math.Sqrt(ss / float64(len(values)-1))
	}
	return Stats{
		Min:   round4(vmin),
		Max:   round4(vmax),
		Mean:  round4(mean),
		Stdev: round4(stdev),
	}
}

func bucketize(values []float64) []Bucket {
	buckets := make([]Bucket, bucketCount)
	for i := range buckets {
		buckets[i].Low = float64(i) / bucketCount
		buckets[i].High = float64(i+1) / bucketCount
	}
	for _, v := range values {
		i := int(v * bucketCount)
		if i >= bucketCount {
			i = bucketCount - 1
		}
		buckets[i].Count++
	}
	for i := range buckets {
		if len(values) > 0 {
			buckets[i].Ratio = round4(float64(buckets[i].Count) / float64(len(values)))
		}
	}
	return buckets
}

func distribution(entries []model.DriftEntry) []CodeShare {
	index := map[model.ClassificationCode]int{}
	var shares []CodeShare
	for _, e := range entries {
		i, ok := index[e.Code]
		if !ok {
			label := e.CodeType
			if label == "" {
				label = model.CodeLabels[e.Code]
			}
			index[e.Code] = len(shares)
			shares = append(shares, CodeShare{Code: e.Code, Type: label})
			i = len(shares) - 1
		}
		shares[i].Count++
	}
	for i := range shares {
		shares[i].Ratio = round4(float64(shares[i].Count) / float64(len(entries)))
	}
	return shares
}

func suggest(s Stats) Thresholds {
	warning := clamp(math.Max(s.Mean+2*s.Stdev, warningFloor))
	critical := clamp(math.Max(s.Mean+3*s.Stdev, criticalFloor))
	if critical < warning {
		critical = warning
	}
	return Thresholds{Warning: round4(warning), Critical: round4(critical)}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// FormatBaselineMarkdown renders a baseline report.
func FormatBaselineMarkdown(b Baseline) string {
	var sb strings.Builder
	sb.WriteString("# Semantic Drift Baseline\n\n")
	sb.WriteString(fmt.Sprintf("- Created: %s\n", b.CreatedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("- Samples: %d\n\n", b.SampleSize))

	sb.WriteString("## Score statistics\n\n")
	sb.WriteString(fmt.Sprintf("- min  : %.4f\n", b.Stats.Min))
	sb.WriteString(fmt.Sprintf("- max  : %.4f\n", b.Stats.Max))
	sb.WriteString(fmt.Sprintf("- mean : %.4f\n", b.Stats.Mean))
	sb.WriteString(fmt.Sprintf("- stdev: %.4f\n\n", b.Stats.Stdev))

	sb.WriteString("## Score distribution\n\n")
	sb.WriteString("| Range | Count | Ratio |\n")
	sb.WriteString("|-------|-------|-------|\n")
	for _, bk := range b.Buckets {
		sb.WriteString(fmt.Sprintf("| %.1f–%.1f | %d | %.4f |\n", bk.Low, bk.High, bk.Count, bk.Ratio))
	}

	sb.WriteString("\n## Classification distribution\n\n")
	sb.WriteString("| Code | Type | Count | Ratio |\n")
	sb.WriteString("|------|------|-------|-------|\n")
	for _, cs := range b.Distribution {
		sb.WriteString(fmt.Sprintf("| %s | %s | %d | %.4f |\n", cs.Code, cs.Type, cs.Count, cs.Ratio))
	}

	sb.WriteString("\n## Suggested thresholds (advisory)\n\n")
	sb.WriteString(fmt.Sprintf("- warning : %.4f\n", b.Suggested.Warning))
	sb.WriteString(fmt.Sprintf("- critical: %.4f\n", b.Suggested.Critical))
	return sb.String()
}
