package domain

import (
	"fmt"
	"strings"
)

// Alert is a decoded hazard for one site.
type Alert struct {
	Site        string    `json:"site"`
	Type        AlertType `json:"type"`
	Phenomenon  string    `json:"phenomenon"`
	Description string    `json:"description"`
	Event       string    `json:"event"`
	Severity    string    `json:"severity"`
	Certainty   string    `json:"certainty"`
	Urgency     string    `json:"urgency"`
	Onset       string    `json:"onset"`
	Ends        string    `json:"ends"`
	Instruction string    `json:"instruction,omitempty"`
}

// ExtractAlerts decodes hazard entries into alerts for siteName. Output order
// follows input order; pairs whose significance does not decode are dropped.
// No deduplication happens here.
func ExtractAlerts(siteName string, entries []HazardEntry) []Alert {
	alerts := make([]Alert, 0, len(entries))
	for _, entry := range entries {
		onset, ends := SplitValidTime(entry.ValidTime)
		for _, code := range entry.Value {
			typ, ok := DecodeSignificance(code.Significance)
			if !ok {
				continue
			}
			alerts = append(alerts, newAlert(siteName, typ, code.Phenomenon, onset, ends))
		}
	}
	return alerts
}

// SplitValidTime splits "<onset>/<end>" into its parts. Without a "/" both
// values are the full input.
func SplitValidTime(validTime string) (onset, ends string) {
	onset, ends, found := strings.Cut(validTime, "/")
	if !found || ends == "" {
		return onset, onset
	}
	ends, _, _ = strings.Cut(ends, "/")
	if ends == "" {
		return onset, onset
	}
	return onset, ends
}

func newAlert(siteName string, typ AlertType, phenomenon, onset, ends string) Alert {
	description := DecodePhenomenon(phenomenon)
	severity, urgency := severityFor(typ)
	return Alert{
		Site:        siteName,
		Type:        typ,
		Phenomenon:  phenomenon,
		Description: description,
		Event:       description,
		Severity:    severity,
		Certainty:   "Likely",
		Urgency:     urgency,
		Onset:       onset,
		Ends:        ends,
		Instruction: fmt.Sprintf("Take appropriate precautions for %s.", strings.ToLower(description)),
	}
}

// severityFor derives CAP-style severity and urgency from the alert type:
// Warning -> Severe/Immediate, Watch -> Moderate/Expected, else Minor/Future.
func severityFor(typ AlertType) (severity, urgency string) {
	switch typ {
	case AlertWarning:
		return "Severe", "Immediate"
	case AlertWatch:
		return "Moderate", "Expected"
	default:
		return "Minor", "Future"
	}
}
