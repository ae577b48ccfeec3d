package domain

// AlertType is the decoded significance of a hazard. The set is closed.
type AlertType string

const (
	AlertWarning   AlertType = "Warning"
	AlertWatch     AlertType = "Watch"
	AlertAdvisory  AlertType = "Advisory"
	AlertStatement AlertType = "Statement"
)

// Rank orders alert types from most to least severe. Unknown types sort last.
func (t AlertType) Rank() int {
	switch t {
	case AlertWarning:
		return 0
	case AlertWatch:
		return 1
	case AlertAdvisory:
		return 2
	case AlertStatement:
		return 3
	default:
		return 4
	}
}

var significanceTypes = map[string]AlertType{
	"W": AlertWarning,
	"A": AlertWatch,
	"Y": AlertAdvisory,
	"S": AlertStatement,
}

// phenomenonLabels maps NWS VTEC phenomenon codes to display labels.
var phenomenonLabels = map[string]string{
	"AF": "Ashfall",
	"AS": "Air Stagnation",
	"BS": "Blowing Snow",
	"BW": "Brisk Wind",
	"BZ": "Blizzard",
	"CF": "Coastal Flood",
	"CW": "Cold Wind Chill",
	"DS": "Dust Storm",
	"DU": "Blowing Dust",
	"EC": "Extreme Cold",
	"EH": "Excessive Heat",
	"EW": "Extreme Wind",
	"FA": "Areal Flood",
	"FF": "Flash Flood",
	"FG": "Dense Fog",
	"FL": "Flood",
	"FR": "Frost",
	"FW": "Fire Weather",
	"FZ": "Freeze",
	"GL": "Gale",
	"HF": "Hurricane Force Wind",
	"HI": "Inland Hurricane",
	"HS": "Heavy Snow",
	"HT": "Heat",
	"HU": "Hurricane",
	"HW": "High Wind",
	"HY": "Hydrologic",
	"HZ": "Hard Freeze",
	"IS": "Ice Storm",
	"LE": "Lake Effect Snow",
	"LO": "Low Water",
	"LS": "Lakeshore Flood",
	"LW": "Lake Wind",
	"MA": "Marine",
	"MF": "Marine Dense Fog",
	"MH": "Marine Ashfall",
	"MS": "Marine Dense Smoke",
	"RB": "Small Craft for Rough Bar",
	"RP": "Rip Current Risk",
	"SB": "Snow and Blowing Snow",
	"SC": "Small Craft",
	"SE": "Hazardous Seas",
	"SI": "Small Craft for Winds",
	"SM": "Dense Smoke",
	"SN": "Snow",
	"SQ": "Snow Squall",
	"SR": "Storm",
	"SS": "Storm Surge",
	"SU": "High Surf",
	"SV": "Severe Thunderstorm",
	"SW": "Small Craft for Hazardous Seas",
	"TO": "Tornado",
	"TR": "Tropical Storm",
	"TS": "Tsunami",
	"TY": "Typhoon",
	"UP": "Heavy Freezing Spray",
	"WC": "Wind Chill",
	"WI": "Wind",
	"WS": "Winter Storm",
	"WW": "Winter Weather",
	"ZF": "Freezing Fog",
	"ZR": "Freezing Rain",
}

// DecodePhenomenon returns the display label for a phenomenon code, or the
// code itself when it is not in the table.
func DecodePhenomenon(code string) string {
	if label, ok := phenomenonLabels[code]; ok {
		return label
	}
	return code
}

// DecodeSignificance maps a significance code to its alert type. The boolean
// is false for any code outside {W, A, Y, S}; callers skip those pairs.
func DecodeSignificance(code string) (AlertType, bool) {
	t, ok := significanceTypes[code]
	return t, ok
}
