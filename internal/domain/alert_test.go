package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testValidTime = "2024-05-10T12:00:00+00:00/2024-05-11T00:00:00+00:00"
	testOnset     = "2024-05-10T12:00:00+00:00"
	testEnds      = "2024-05-11T00:00:00+00:00"
)

func TestExtractAlerts(t *testing.T) {
	entries := []HazardEntry{
		{
			ValidTime: testValidTime,
			Value: []HazardCode{
				{Phenomenon: "TO", Significance: "W"},
				{Phenomenon: "FF", Significance: "A"},
			},
		},
		{
			ValidTime: "2024-05-12T00:00:00+00:00/P1D",
			Value: []HazardCode{
				{Phenomenon: "HT", Significance: "Y"},
				{Phenomenon: "SPS", Significance: "S"},
			},
		},
	}

	alerts := ExtractAlerts("Depot", entries)
	require.Len(t, alerts, 4)

	tornado := alerts[0]
	assert.Equal(t, "Depot", tornado.Site)
	assert.Equal(t, AlertWarning, tornado.Type)
	assert.Equal(t, "TO", tornado.Phenomenon)
	assert.Equal(t, "Tornado", tornado.Description)
	assert.Equal(t, "Tornado", tornado.Event)
	assert.Equal(t, "Severe", tornado.Severity)
	assert.Equal(t, "Likely", tornado.Certainty)
	assert.Equal(t, "Immediate", tornado.Urgency)
	assert.Equal(t, testOnset, tornado.Onset)
	assert.Equal(t, testEnds, tornado.Ends)
	assert.Equal(t, "Take appropriate precautions for tornado.", tornado.Instruction)

	watch := alerts[1]
	assert.Equal(t, AlertWatch, watch.Type)
	assert.Equal(t, "Moderate", watch.Severity)
	assert.Equal(t, "Expected", watch.Urgency)

	advisory := alerts[2]
	assert.Equal(t, AlertAdvisory, advisory.Type)
	assert.Equal(t, "Heat", advisory.Description)
	assert.Equal(t, "Minor", advisory.Severity)
	assert.Equal(t, "Future", advisory.Urgency)
	assert.Equal(t, "P1D", advisory.Ends)

	// Unknown phenomenon falls back to the raw code everywhere.
	statement := alerts[3]
	assert.Equal(t, AlertStatement, statement.Type)
	assert.Equal(t, "SPS", statement.Description)
	assert.Equal(t, "Take appropriate precautions for sps.", statement.Instruction)
}

func TestExtractAlerts_DropsUndecodableSignificance(t *testing.T) {
	entries := []HazardEntry{{
		ValidTime: testValidTime,
		Value: []HazardCode{
			{Phenomenon: "TO", Significance: ""},
			{Phenomenon: "TO", Significance: "O"},
			{Phenomenon: "TO", Significance: "w"},
			{Phenomenon: "TO", Significance: "garbage"},
			{Phenomenon: "WS", Significance: "A"},
		},
	}}

	alerts := ExtractAlerts("Yard", entries)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Winter Storm", alerts[0].Description)
}

func TestExtractAlerts_NoDeduplication(t *testing.T) {
	entry := HazardEntry{ValidTime: testValidTime, Value: []HazardCode{{Phenomenon: "TO", Significance: "W"}}}
	alerts := ExtractAlerts("Yard", []HazardEntry{entry, entry})
	assert.Len(t, alerts, 2)
}

func TestExtractAlerts_Empty(t *testing.T) {
	alerts := ExtractAlerts("Yard", nil)
	assert.NotNil(t, alerts)
	assert.Empty(t, alerts)
}

func TestSplitValidTime(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantOnset string
		wantEnds  string
	}{
		{"interval", testValidTime, testOnset, testEnds},
		{"no slash", testOnset, testOnset, testOnset},
		{"trailing slash", testOnset + "/", testOnset, testOnset},
		{"extra segments", testOnset + "/" + testEnds + "/x", testOnset, testEnds},
		{"empty", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			onset, ends := SplitValidTime(tt.input)
			assert.Equal(t, tt.wantOnset, onset)
			assert.Equal(t, tt.wantEnds, ends)
		})
	}
}

func TestExtractAlerts_SingleInstantWindow(t *testing.T) {
	alerts := ExtractAlerts("Yard", []HazardEntry{{
		ValidTime: testOnset,
		Value:     []HazardCode{{Phenomenon: "HW", Significance: "W"}},
	}})
	require.Len(t, alerts, 1)
	assert.Equal(t, testOnset, alerts[0].Onset)
	assert.Equal(t, testOnset, alerts[0].Ends)
}
