package avatar

import "time"

// Descriptor is the config-derived identity of one backend. Descriptors are
// immutable after load; a reload replaces the whole set rather than mutating
// records in place, so concurrent readers never observe a half-updated one.
type Descriptor struct {
	// Name uniquely identifies the provider. Health history is keyed by
	// Name and survives reloads that keep the provider.
	Name string

	// Kind selects the wire adapter (duix, senseavatar, akool, local, mock).
	Kind string

	// BaseURL is the backend's base address.
	BaseURL string

	// APIKey is the credential reference for the backend.
	APIKey string

	// Languages and Emotions declare capabilities. Empty means unrestricted.
	Languages []string
	Emotions  []string

	// Weight orders providers within the same health tier. Higher first.
	Weight int

	// RPS and Burst bound outbound traffic to this provider. RPS <= 0
	// disables admission control for it.
	RPS   float64
	Burst int

	// Timeout bounds a single speak attempt against this provider.
	Timeout time.Duration
}

// SupportsLanguage reports whether the provider declares the language.
func (d *Descriptor) SupportsLanguage(lang string) bool {
	return lang == "" || len(d.Languages) == 0 || contains(d.Languages, lang)
}

// SupportsEmotion reports whether the provider declares the emotion.
func (d *Descriptor) SupportsEmotion(emotion string) bool {
	return emotion == "" || len(d.Emotions) == 0 || contains(d.Emotions, emotion)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
