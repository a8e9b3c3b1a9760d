package book

// AssetKind identifies what a generative call produced.
type AssetKind string

const (
	AssetText  AssetKind = "text-enrichment"
	AssetImage AssetKind = "image"
)

// AssetStatus tracks the lifecycle of one generative call for one unit.
// An asset is never both succeeded and failed.
type AssetStatus string

const (
	StatusAbsent    AssetStatus = ""
	StatusPending   AssetStatus = "pending"
	StatusSucceeded AssetStatus = "succeeded"
	StatusFailed    AssetStatus = "failed"
)

// GeneratedAsset records the outcome of one external generative call. The
// payload itself is materialized onto the owning unit's content fields; the
// asset keeps the bookkeeping the renderer and manifest need.
type GeneratedAsset struct {
	Kind     AssetKind   `json:"kind"`
	UnitID   string      `json:"unit_id"`
	Status   AssetStatus `json:"status"`
	Error    string      `json:"error,omitempty"`
	CacheKey string      `json:"cache_key,omitempty"`
}

// Succeeded reports whether the asset reached a usable terminal state.
func (a GeneratedAsset) Succeeded() bool {
	return a.Status == StatusSucceeded
}

// MarkSucceeded transitions the asset to succeeded and clears any error.
func (a *GeneratedAsset) MarkSucceeded() {
	a.Status = StatusSucceeded
	a.Error = ""
}

// MarkFailed transitions the asset to failed with the terminal error detail.
func (a *GeneratedAsset) MarkFailed(msg string) {
	a.Status = StatusFailed
	a.Error = msg
}
