package domain

// ManifestEntry is one addressable thing an LLM may reference by key in
// generated prose.
type ManifestEntry struct {
	Key         string
	DisplayName string
	Summary     string
}

// LocationBlock describes the current scene's location for the manifest.
type LocationBlock struct {
	Key         string
	DisplayName string
	Description string
}

// PlayerSummary describes the player entity's visible state.
type PlayerSummary struct {
	Key            string
	DisplayName    string
	VisibleEquipment []string
	Condition      string
	NeedsAlerts    []string
}

// NarratorManifest (aka GroundingManifest) is the sole source of truth
// for what an LLM may reference in generated prose for one scene.
type NarratorManifest struct {
	Location        LocationBlock
	NPCs            []ManifestEntry
	ItemsAtLocation []ManifestEntry
	Inventory       []ManifestEntry
	Storages        []ManifestEntry
	Exits           []ManifestEntry
	Player          PlayerSummary
}

// Keys returns every entity key the manifest grounds, in a stable order.
func (m NarratorManifest) Keys() []string {
	var keys []string
	if m.Location.Key != "" {
		keys = append(keys, m.Location.Key)
	}
	for _, group := range [][]ManifestEntry{m.NPCs, m.ItemsAtLocation, m.Inventory, m.Storages, m.Exits} {
		for _, e := range group {
			keys = append(keys, e.Key)
		}
	}
	if m.Player.Key != "" {
		keys = append(keys, m.Player.Key)
	}
	return keys
}

// Has reports whether key is grounded by the manifest.
func (m NarratorManifest) Has(key string) bool {
	for _, k := range m.Keys() {
		if k == key {
			return true
		}
	}
	return false
}
