package translate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/metadag/internal/model"
)

var fixedNow = time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

func newTranslator(t *testing.T, opts Options) *Translator {
	t.Helper()
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	tr, err := New(opts)
	require.NoError(t, err)
	return tr
}

func TestTranslateClustersAndRisk(t *testing.T) {
	tr := newTranslator(t, Options{})

	tests := []struct {
		name     string
		text     string
		clusters []string
		anchors  []string
		risk     model.RiskLevel
		protocol string
	}{
		{
			name:     "no match is low and generic",
			text:     "hello world",
			clusters: []string{},
			anchors:  []string{},
			risk:     model.RiskLow,
			protocol: "V4.5/GENERIC",
		},
		{
			name:     "collab",
			text:     "Schedule a calendar SYNC with the external team",
			clusters: []string{"PEC-6"},
			anchors:  []string{"collab"},
			risk:     model.RiskMedium,
			protocol: "V4.5/COLLAB",
		},
		{
			name:     "all rules collected in table order",
			text:     "review the budget leak",
			clusters: []string{"PEC-6", "PEC-1", "PEC-3"},
			anchors:  []string{"collab", "finance", "risk"},
			risk:     model.RiskHigh,
			protocol: "V4.5/COLLAB-FINANCE-RISK",
		},
		{
			name:     "risk control escalates",
			text:     "possible data leak",
			clusters: []string{"PEC-3"},
			anchors:  []string{"risk"},
			risk:     model.RiskHigh,
			protocol: "V4.5/RISK",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := tr.Translate(tt.text, "", "")
			require.NoError(t, err)
			assert.Equal(t, tt.clusters, ev.Context.PolicyClusters)
			assert.Equal(t, tt.anchors, ev.Context.Anchors)
			assert.Equal(t, tt.risk, ev.Context.RiskLevel)
			assert.Equal(t, tt.protocol, ev.Protocol)
			assert.Equal(t, model.TaskNLRequest, ev.TaskType)
			assert.Equal(t, "cli", ev.Source)
			assert.True(t, ev.Complete())
		})
	}
}

func TestTranslateFields(t *testing.T) {
	tr := newTranslator(t, Options{})
	ev, err := tr.Translate("  please approve the invoice payment for the vendor contract  ", "MODEL_QUERY", "api")
	require.NoError(t, err)

	assert.Equal(t, "please approve the invoice payment for the vendor contract", ev.Context.OriginalText)
	assert.Equal(t, fixedNow, ev.Context.Timestamp)
	assert.Equal(t, "TUL: please approve the invoice pay...", ev.Context.Summary)
	assert.Equal(t, []string{"system@dag.ccr"}, ev.Context.Attendees)
	assert.Equal(t, 3600, ev.Context.DurationSec)
	assert.Equal(t, OutputAnalysis, ev.OutputType)
	assert.Equal(t, "api", ev.Source)
	assert.Len(t, ev.ID, 12)
}

func TestOutputType(t *testing.T) {
	assert.Equal(t, OutputStateChange, OutputType("NL_REQUEST"))
	assert.Equal(t, OutputStateChange, OutputType("calendar_sync"))
	assert.Equal(t, OutputAnalysis, OutputType("MODEL_QUERY"))
}

func TestContentMarkerIgnoresTime(t *testing.T) {
	calls := 0
	tr := newTranslator(t, Options{Now: func() time.Time {
		calls++
		return fixedNow.Add(time.Duration(calls) * time.Second)
	}})

	a, err := tr.Translate("same text", "", "")
	require.NoError(t, err)
	b, err := tr.Translate("same text", "", "")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	assert.NotEqual(t, a.Context.Timestamp, b.Context.Timestamp)
}

func TestNonceMarkerVariesWithTime(t *testing.T) {
	calls := 0
	tr := newTranslator(t, Options{MarkerMode: MarkerNonce, Now: func() time.Time {
		calls++
		return fixedNow.Add(time.Duration(calls) * time.Second)
	}})

	a, err := tr.Translate("same text", "", "")
	require.NoError(t, err)
	b, err := tr.Translate("same text", "", "")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestMarkerNormalizesUnicode(t *testing.T) {
	tr := newTranslator(t, Options{})
	composed := tr.Marker("caf\u00e9", fixedNow)
	decomposed := tr.Marker("cafe\u0301", fixedNow)
	assert.Equal(t, composed, decomposed)
}

func TestTranslateEmptyInput(t *testing.T) {
	tr := newTranslator(t, Options{})
	_, err := tr.Translate("   ", "", "")
	assert.True(t, errors.Is(err, ErrEmptyInput))
}

func TestCELRule(t *testing.T) {
	rule, err := NewCELRule("PEC-9", `lower.contains("wire") && size(text) > 10`)
	require.NoError(t, err)

	tr := newTranslator(t, Options{
		Rules:           []Rule{rule, KeywordRule{RuleName: "PEC-3", Keywords: []string{"leak"}}},
		RiskControlRule: "PEC-3",
	})

	ev, err := tr.Translate("Please WIRE the funds today", "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"PEC-9"}, ev.Context.PolicyClusters)
	assert.Equal(t, model.RiskMedium, ev.Context.RiskLevel)
}

func TestCELRuleRejectsNonBool(t *testing.T) {
	_, err := NewCELRule("bad", `size(text)`)
	assert.Error(t, err)

	_, err = NewCELRule("broken", `text.contains(`)
	assert.Error(t, err)
}

func TestNewRejectsBadTables(t *testing.T) {
	_, err := New(Options{
		Rules: []Rule{
			KeywordRule{RuleName: "A", Keywords: []string{"x"}},
			KeywordRule{RuleName: "A", Keywords: []string{"y"}},
		},
	})
	assert.Error(t, err, "duplicate rule names")

	_, err = New(Options{
		Rules:           []Rule{KeywordRule{RuleName: "A", Keywords: []string{"x"}}},
		RiskControlRule: "B",
	})
	assert.Error(t, err, "missing risk-control rule")

	_, err = New(Options{MarkerMode: "random"})
	assert.Error(t, err)
}

func TestFailedEvent(t *testing.T) {
	ev := FailedEvent("???", "inbox", fixedNow)
	assert.Equal(t, model.TaskParseFailed, ev.TaskType)
	assert.Empty(t, ev.Protocol)
	assert.False(t, ev.Complete())
	assert.Equal(t, model.RiskUnknown, ev.Context.RiskLevel)
	assert.Len(t, ev.ID, 12)
}
