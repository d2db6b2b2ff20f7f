package fruit

// FallbackGuidance is returned for names outside the catalog.
const FallbackGuidance = "No specific freshness information available for this fruit."

var guidance = map[Label]string{
	FreshApples:   "This apple looks fresh. Fresh apples are firm with smooth, unbroken skin and keep for several weeks in the refrigerator.",
	FreshBanana:   "This banana looks fresh. Keep it at room temperature away from other fruit; brown speckles mean it is getting sweeter, not spoiled.",
	FreshOranges:  "This orange looks fresh. Fresh oranges feel heavy for their size and keep for up to two weeks when refrigerated.",
	RottenApples:  "This apple appears rotten. Soft brown patches, wrinkled skin or mould mean it should be discarded rather than eaten.",
	RottenBanana:  "This banana appears rotten. A black, leaking or fermented-smelling banana should be composted; an overripe but intact one can still be baked.",
	RottenOranges: "This orange appears rotten. Blue-green mould or soft, sunken spots spread quickly, so discard it and check the fruit stored next to it.",
}

// FreshnessGuidance returns advice for a label name as produced by the model.
func FreshnessGuidance(name string) string {
	l, ok := ParseLabel(name)
	if !ok {
		return FallbackGuidance
	}
	return l.Guidance()
}

func (l Label) Guidance() string {
	if text, ok := guidance[l]; ok {
		return text
	}
	return FallbackGuidance
}
