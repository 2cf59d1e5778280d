package models

import (
	"regexp"
	"strings"
	"unicode"
)

// Address is a reverse-geocoding result
type Address struct {
	FeatureName     string `json:"featureName,omitempty"`
	AddressLine     string `json:"addressLine,omitempty"`
	AdminArea       string `json:"adminArea,omitempty"`
	CountryName     string `json:"countryName,omitempty"`
	CountryCode     string `json:"countryCode,omitempty"` // ISO 3166-1 alpha-2, upper case
	Locality        string `json:"locality,omitempty"`
	SubLocality     string `json:"subLocality,omitempty"`
	Thoroughfare    string `json:"thoroughfare,omitempty"`
	SubThoroughfare string `json:"subThoroughfare,omitempty"`
	PostalCode      string `json:"postalCode,omitempty"`
}

// AddressRecord is a persisted address breakpoint
type AddressRecord struct {
	ID              int64   `json:"id" db:"id"`
	Time            int64   `json:"time" db:"time"` // Unix milliseconds
	SectionID       *int64  `json:"sectionId,omitempty" db:"section_id"`
	TrackID         *int64  `json:"trackId,omitempty" db:"track_id"`
	Lat             float64 `json:"lat" db:"lat"`
	Lng             float64 `json:"lng" db:"lng"`
	Name            string  `json:"name,omitempty" db:"name"`
	AddressLine     string  `json:"addressLine,omitempty" db:"address_line"`
	AdminArea       string  `json:"adminArea,omitempty" db:"admin_area"`
	CountryName     string  `json:"countryName,omitempty" db:"country_name"`
	Locality        string  `json:"locality,omitempty" db:"locality"`
	SubLocality     string  `json:"subLocality,omitempty" db:"sub_locality"`
	Thoroughfare    string  `json:"thoroughfare,omitempty" db:"thoroughfare"`
	SubThoroughfare string  `json:"subThoroughfare,omitempty" db:"sub_thoroughfare"`
	PostalCode      string  `json:"postalCode,omitempty" db:"postal_code"`
}

// NewAddressRecord builds an unsaved breakpoint from a resolved address.
// A nil address yields a coordinate-only record.
func NewAddressRecord(addr *Address, timeMs int64, sectionID, trackID *int64, lat, lng float64) AddressRecord {
	rec := AddressRecord{
		Time:      timeMs,
		SectionID: sectionID,
		TrackID:   trackID,
		Lat:       lat,
		Lng:       lng,
	}
	if addr == nil {
		return rec
	}
	if hasNameLetters(addr.FeatureName) {
		rec.Name = addr.FeatureName
	}
	rec.AddressLine = addr.AddressLine
	rec.AdminArea = addr.AdminArea
	rec.CountryName = addr.CountryName
	rec.Locality = addr.Locality
	rec.SubLocality = addr.SubLocality
	rec.Thoroughfare = addr.Thoroughfare
	rec.SubThoroughfare = addr.SubThoroughfare
	rec.PostalCode = addr.PostalCode
	return rec
}

// Address returns the resolved fields carried by the record
func (r *AddressRecord) Address() *Address {
	return &Address{
		FeatureName:     r.Name,
		AddressLine:     r.AddressLine,
		AdminArea:       r.AdminArea,
		CountryName:     r.CountryName,
		Locality:        r.Locality,
		SubLocality:     r.SubLocality,
		Thoroughfare:    r.Thoroughfare,
		SubThoroughfare: r.SubThoroughfare,
		PostalCode:      r.PostalCode,
	}
}

// hasNameLetters reports whether a feature name carries anything besides
// digits, punctuation and whitespace. House numbers like "3-12" are rejected.
func hasNameLetters(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r) {
			continue
		}
		return true
	}
	return false
}

var trailingHouseNumber = regexp.MustCompile(`([0-9０-９]+)(?:[-－−‐][0-9０-９]+)+$`)

const chome = "丁目"

// CityDisplay returns the address below the admin area, trimmed to the
// block level. The second result is false when there is no address line.
func (r *AddressRecord) CityDisplay() (string, bool) {
	if r.AddressLine == "" {
		return "", false
	}

	display := stripPrefixAfter(r.AddressLine, r.AdminArea)
	display = stripFeatureSuffix(display, r.Name)

	if strings.Contains(r.Thoroughfare, chome) {
		if idx := strings.Index(display, chome); idx != -1 {
			display = display[:idx+len(chome)]
		}
	}

	display = trailingHouseNumber.ReplaceAllString(display, "${1}")
	return display, true
}

// AddressDisplay returns the address line without the country and the trailing feature name
func (r *AddressRecord) AddressDisplay() (string, bool) {
	if r.AddressLine == "" {
		return "", false
	}
	display := stripPrefixAfter(r.AddressLine, r.CountryName)
	return stripFeatureSuffix(display, r.Name), true
}

// FeatureNameDisplay returns the feature name when it is not already part of the address
func (r *AddressRecord) FeatureNameDisplay() (string, bool) {
	base, ok := r.AddressDisplay()
	if !ok || strings.TrimSpace(r.Name) == "" || strings.HasSuffix(base, r.Name) {
		return "", false
	}
	return r.Name, true
}

// CityDisplayWithFeature joins the city display and the feature name for narration
func (r *AddressRecord) CityDisplayWithFeature() (string, bool) {
	city, ok := r.CityDisplay()
	if !ok {
		return "", false
	}
	if feature, ok := r.FeatureNameDisplay(); ok {
		return city + "。 " + feature, true
	}
	return city, true
}

// AddressDisplayWithFeature puts the feature name on its own line below the address
func (r *AddressRecord) AddressDisplayWithFeature() (string, bool) {
	base, ok := r.AddressDisplay()
	if !ok {
		return "", false
	}
	if feature, ok := r.FeatureNameDisplay(); ok {
		return base + "\n" + feature, true
	}
	return base, true
}

func stripPrefixAfter(line, marker string) string {
	if marker == "" {
		return line
	}
	idx := strings.Index(line, marker)
	if idx == -1 {
		return line
	}
	rest := strings.TrimSpace(line[idx+len(marker):])
	rest = strings.TrimPrefix(rest, "、")
	rest = strings.TrimPrefix(rest, ",")
	return strings.TrimSpace(rest)
}

func stripFeatureSuffix(display, name string) string {
	if strings.TrimSpace(name) == "" || !strings.HasSuffix(display, name) {
		return display
	}
	display = strings.TrimSpace(strings.TrimSuffix(display, name))
	display = strings.TrimSuffix(display, "、")
	display = strings.TrimSuffix(display, ",")
	return strings.TrimSpace(display)
}
