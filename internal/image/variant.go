package image

// Variant captures what differs between generation and composition.
type Variant struct {
	Name         string
	ChatName     string
	Mode         Mode
	ResearchMode string
	Accept       Predicate
	// LogExcerpt is the number of response runes logged before scanning.
	LogExcerpt int
}

func generationVariant(cdnMarker string) Variant {
	return Variant{
		Name:         "generate",
		ChatName:     "img",
		Mode:         ModeTextToImage,
		ResearchMode: "advance",
		Accept:       CDNMarker(cdnMarker),
	}
}

// Composition responses may point at a different host, hence the looser
// predicate.
func compositionVariant(cdnMarker string) Variant {
	return Variant{
		Name:         "compose",
		ChatName:     "edit",
		Mode:         ModeImageEdit,
		ResearchMode: "normal",
		Accept:       CDNOrScheme(cdnMarker),
		LogExcerpt:   500,
	}
}
