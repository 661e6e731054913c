package generation

// Impact rates how much a fallback degraded the result.
type Impact string

const (
	ImpactNone        Impact = "none"
	ImpactMinor       Impact = "minor"
	ImpactModerate    Impact = "moderate"
	ImpactSignificant Impact = "significant"
)

// FallbackEvent records that a primary (usually LLM-based) strategy failed
// and a deterministic secondary one was used instead. Fallbacks are not
// errors: the request still succeeds, and the caller decides whether the
// degradation is acceptable.
type FallbackEvent struct {
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
	Impact Impact `json:"impact"`
}
