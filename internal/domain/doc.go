// Package domain models project sites and the National Weather Service (NWS)
// forecast and hazard data tracked for them.
//
// # Data Source
//
// Weather comes from the public NWS API at https://api.weather.gov. Each site
// is resolved through a three-step chain:
//
//	GET /points/{lat},{lon}            -> forecast URL, gridId, gridX, gridY
//	GET {forecast URL}                 -> forecast periods (first = current)
//	GET /gridpoints/{gridId}/{x},{y}   -> gridpoint layers, including hazards
//
// Coordinates are rounded to four decimal places before the points lookup.
// The API answers 404 for locations outside its coverage (anything outside the
// United States), which is surfaced as [ErrLocationUnsupported].
//
// # Hazard Codes
//
// Gridpoint hazards use VTEC-style code pairs:
//
//	phenomenon   two letters, e.g. "TO" (Tornado), "WS" (Winter Storm)
//	significance one letter:  W Warning, A Watch, Y Advisory, S Statement
//
// Pairs whose significance is outside {W, A, Y, S} are dropped rather than
// treated as errors; not every hazard code maps to a user-facing alert.
// Unknown phenomenon codes pass through unchanged as their own label.
//
// Validity windows are ISO-8601 interval strings:
//
//	"2024-05-10T12:00:00+00:00/2024-05-11T00:00:00+00:00"
//
// The part before "/" is the onset and the part after is the end. A window
// without "/" has end equal to onset.
//
// # Risk Score
//
// A snapshot carries a 0-100 score and a five-step level:
//
//	>= 80 Extreme (red) | >= 60 High (orange) | >= 40 Moderate (yellow)
//	>= 20 Low (green)   | otherwise Minimal (blue)
//
// Two scoring strategies exist because two call sites historically scored
// differently; see [AdditiveScorer] and [AveragedScorer].
package domain
