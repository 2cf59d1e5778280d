package geocode

import "github.com/jengzang/walkaround-go/internal/models"

// Key returns the locality fingerprint of an address: locality, sub-locality
// and thoroughfare (falling back to the sub-thoroughfare). House-number level
// fields do not take part, so two fixes on the same street compare equal.
func Key(addr *models.Address) string {
	if addr == nil {
		return ""
	}
	street := addr.Thoroughfare
	if street == "" {
		street = addr.SubThoroughfare
	}
	return addr.Locality + addr.SubLocality + street
}

// RecordKey returns the fingerprint of a persisted breakpoint
func RecordKey(rec *models.AddressRecord) string {
	if rec == nil {
		return ""
	}
	return Key(rec.Address())
}
