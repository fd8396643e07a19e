package frequentation

import "strings"

// Activity is one of the closed set of categories stored in the database.
type Activity string

const (
	ActivityWork       Activity = "work"
	ActivityReading    Activity = "reading"
	ActivityComputer   Activity = "computer"
	ActivityRelaxation Activity = "relaxation"
	ActivityOther      Activity = "other"
)

// Activities lists the categories in display order.
var Activities = []Activity{
	ActivityWork,
	ActivityReading,
	ActivityComputer,
	ActivityRelaxation,
	ActivityOther,
}

var activityLabels = map[Activity]string{
	ActivityWork:       "Travail",
	ActivityReading:    "Lecture",
	ActivityComputer:   "Ordinateur",
	ActivityRelaxation: "Détente",
	ActivityOther:      "Autre",
}

// Label is the French name shown by the UI.
func (a Activity) Label() string {
	if l, ok := activityLabels[a]; ok {
		return l
	}
	return string(a)
}

// ActivityOption pairs a stored key with its label for pickers.
type ActivityOption struct {
	Key   Activity `json:"key"`
	Label string   `json:"label"`
}

// ActivityOptions lists every category in display order.
func ActivityOptions() []ActivityOption {
	out := make([]ActivityOption, 0, len(Activities))
	for _, a := range Activities {
		out = append(out, ActivityOption{Key: a, Label: a.Label()})
	}
	return out
}

// NormalizeActivity maps free text onto the category set. Keys and French
// labels match case-insensitively; anything else is "other".
func NormalizeActivity(s string) Activity {
	s = strings.TrimSpace(s)
	for _, a := range Activities {
		if strings.EqualFold(s, string(a)) || strings.EqualFold(s, activityLabels[a]) {
			return a
		}
	}
	return ActivityOther
}
