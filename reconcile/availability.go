package reconcile

import "propsync/models"

// IsActive reports whether a provider takes part in reconciliation for this
// property. The internal feed always does; an external provider needs a
// credential on the agency and a snapshot record that did not fail.
func IsActive(p models.Provider, agency *models.Agency, snap *models.Snapshot) bool {
	if p == models.ProviderPropertyDrive {
		return true
	}
	if !agency.HasCredential(p) {
		return false
	}
	if snap == nil || snap.Failed(p) {
		return false
	}
	rec := snap.Records[p]
	return rec != nil && rec.Data != nil
}

// ActiveProviders returns the active providers in canonical order.
func ActiveProviders(agency *models.Agency, snap *models.Snapshot) []models.Provider {
	var active []models.Provider
	for _, p := range models.CanonicalOrder {
		if IsActive(p, agency, snap) {
			active = append(active, p)
		}
	}
	return active
}
