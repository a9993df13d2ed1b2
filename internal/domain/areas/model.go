package areas

import "strings"

// MaxSuggestions caps the number of entries returned by Suggest.
const MaxSuggestions = 6

// Subdistrict is the leaf of the directory and carries the postal code.
type Subdistrict struct {
	Name       string `json:"name" yaml:"name"`
	PostalCode string `json:"postal_code" yaml:"postal_code"`
}

// District groups subdistricts.
type District struct {
	Name         string        `json:"name" yaml:"name"`
	Subdistricts []Subdistrict `json:"subdistricts" yaml:"subdistricts"`
}

// Province groups districts.
type Province struct {
	Name      string     `json:"name" yaml:"name"`
	Districts []District `json:"districts" yaml:"districts"`
}

// Directory is the province -> district -> subdistrict reference tree used for
// address assistance. The zero value is an empty, usable directory.
type Directory struct {
	Provinces []Province `json:"provinces" yaml:"provinces"`
}

// Empty reports whether the directory holds no provinces.
func (d *Directory) Empty() bool {
	return d == nil || len(d.Provinces) == 0
}

// ProvinceNames returns province names in document order.
func (d *Directory) ProvinceNames() []string {
	if d == nil {
		return nil
	}
	names := make([]string, 0, len(d.Provinces))
	for _, p := range d.Provinces {
		names = append(names, p.Name)
	}
	return names
}

// Districts returns the districts of the named province, or nil when the
// province is not in the directory.
func (d *Directory) Districts(province string) []District {
	if d == nil {
		return nil
	}
	for _, p := range d.Provinces {
		if p.Name == province {
			return p.Districts
		}
	}
	return nil
}

// Subdistricts returns the subdistricts of district within province.
func (d *Directory) Subdistricts(province, district string) []Subdistrict {
	return FindDistrict(d.Districts(province), district)
}

// PostalCode returns the postal code of the given subdistrict, or "" when any
// level does not match the directory.
func (d *Directory) PostalCode(province, district, subdistrict string) string {
	return FindPostalCode(d.Subdistricts(province, district), subdistrict)
}

// Contains reports whether the three names form a valid path in the
// directory.
func (d *Directory) Contains(province, district, subdistrict string) bool {
	for _, s := range d.Subdistricts(province, district) {
		if s.Name == subdistrict {
			return true
		}
	}
	return false
}

// FindDistrict returns the subdistricts of the named entry in districts.
func FindDistrict(districts []District, name string) []Subdistrict {
	for _, dist := range districts {
		if dist.Name == name {
			return dist.Subdistricts
		}
	}
	return nil
}

// FindPostalCode returns the postal code of the named entry in subs.
func FindPostalCode(subs []Subdistrict, name string) string {
	for _, s := range subs {
		if s.Name == name {
			return s.PostalCode
		}
	}
	return ""
}

// DistrictNames returns the names of districts in order.
func DistrictNames(districts []District) []string {
	names := make([]string, 0, len(districts))
	for _, d := range districts {
		names = append(names, d.Name)
	}
	return names
}

// SubdistrictNames returns the names of subs in order.
func SubdistrictNames(subs []Subdistrict) []string {
	names := make([]string, 0, len(subs))
	for _, s := range subs {
		names = append(names, s.Name)
	}
	return names
}

// Suggest returns up to MaxSuggestions candidates containing query,
// compared case-insensitively, in candidate order. An empty query matches
// nothing.
func Suggest(candidates []string, query string) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	var out []string
	for _, c := range candidates {
		if strings.Contains(strings.ToLower(c), q) {
			out = append(out, c)
			if len(out) == MaxSuggestions {
				break
			}
		}
	}
	return out
}
