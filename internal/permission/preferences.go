// Package permission persists entitlement records and their preference blob.
package permission

import "encoding/json"

// minimum age a preference filter may ask for
const minPreferenceAge = 18

// AgeRange bounds the age filter of a preference blob.
type AgeRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Preferences is the structured blob serialized into permission.preferences.
type Preferences struct {
	Country                  string   `json:"country"`
	Locality                 string   `json:"locality"`
	AdministrativeAreaLevel1 string   `json:"administrative_area_level_1"`
	AdministrativeAreaLevel2 string   `json:"administrative_area_level_2"`
	Sex                      string   `json:"sex"`
	Distance                 string   `json:"distance"`
	Age                      AgeRange `json:"age"`
}

// DefaultPreferences returns the blob new permissions start with.
func DefaultPreferences() Preferences {
	return Preferences{
		Sex:      "all",
		Distance: "120m",
		Age:      AgeRange{Min: 20, Max: 35},
	}
}

// Patch carries only the fields the request explicitly set; nil pointers
// leave the stored value untouched.
type Patch struct {
	Country                  *string `json:"country"`
	Locality                 *string `json:"locality"`
	AdministrativeAreaLevel1 *string `json:"administrative_area_level_1"`
	AdministrativeAreaLevel2 *string `json:"administrative_area_level_2"`
	Sex                      *string `json:"sex"`
	Distance                 *string `json:"distance"`
	MinAge                   *int    `json:"min_age"`
	MaxAge                   *int    `json:"max_age"`
}

// Apply folds the patch into p field by field. Unknown sex values and
// minimum ages below 18 are silently ignored, previous values retained.
func (p Preferences) Apply(patch Patch) Preferences {
	if patch.Country != nil {
		p.Country = *patch.Country
	}
	if patch.Locality != nil {
		p.Locality = *patch.Locality
	}
	if patch.AdministrativeAreaLevel1 != nil {
		p.AdministrativeAreaLevel1 = *patch.AdministrativeAreaLevel1
	}
	if patch.AdministrativeAreaLevel2 != nil {
		p.AdministrativeAreaLevel2 = *patch.AdministrativeAreaLevel2
	}
	if patch.Distance != nil {
		p.Distance = *patch.Distance
	}
	if patch.Sex != nil {
		switch *patch.Sex {
		case "male", "female", "all":
			p.Sex = *patch.Sex
		}
	}
	if patch.MaxAge != nil {
		p.Age.Max = *patch.MaxAge
	}
	if patch.MinAge != nil && *patch.MinAge >= minPreferenceAge {
		p.Age.Min = *patch.MinAge
	}
	return p
}

// Encode serializes the blob for storage.
func (p Preferences) Encode() (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodePreferences parses a stored blob, falling back to defaults when the
// column is empty.
func DecodePreferences(raw string) (Preferences, error) {
	if raw == "" {
		return DefaultPreferences(), nil
	}

	var p Preferences
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Preferences{}, err
	}
	return p, nil
}
