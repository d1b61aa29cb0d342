package track

// Candidate is a track returned by feature search. Field names follow the
// search document layout so hits decode straight into it.
type Candidate struct {
	SpotifyID        string  `json:"spotifyId"`
	Title            string  `json:"title,omitempty"`
	Artist           string  `json:"artist,omitempty"`
	Album            string  `json:"album,omitempty"`
	ImageURL         string  `json:"imageUrl,omitempty"`
	DurationMs       int     `json:"durationMs,omitempty"`
	Explicit         bool    `json:"explicit,omitempty"`
	Popularity       int     `json:"popularity"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Loudness         float64 `json:"loudness"`
	Speechiness      float64 `json:"speechiness"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
	Valence          float64 `json:"valence"`
	Tempo            float64 `json:"tempo"`
}

// Feature names as stored in the search index and in range profiles.
const (
	FeatureDanceability     = "danceability"
	FeatureEnergy           = "energy"
	FeatureLoudness         = "loudness"
	FeatureSpeechiness      = "speechiness"
	FeatureAcousticness     = "acousticness"
	FeatureInstrumentalness = "instrumentalness"
	FeatureLiveness         = "liveness"
	FeatureValence          = "valence"
	FeatureTempo            = "tempo"
)

// Features lists every range-filterable audio feature in a stable order.
var Features = []string{
	FeatureDanceability,
	FeatureEnergy,
	FeatureLoudness,
	FeatureSpeechiness,
	FeatureAcousticness,
	FeatureInstrumentalness,
	FeatureLiveness,
	FeatureValence,
	FeatureTempo,
}

// Feature returns the named audio feature value.
func (c Candidate) Feature(name string) (float64, bool) {
	switch name {
	case FeatureDanceability:
		return c.Danceability, true
	case FeatureEnergy:
		return c.Energy, true
	case FeatureLoudness:
		return c.Loudness, true
	case FeatureSpeechiness:
		return c.Speechiness, true
	case FeatureAcousticness:
		return c.Acousticness, true
	case FeatureInstrumentalness:
		return c.Instrumentalness, true
	case FeatureLiveness:
		return c.Liveness, true
	case FeatureValence:
		return c.Valence, true
	case FeatureTempo:
		return c.Tempo, true
	}
	return 0, false
}

// Clone returns a copy of the slice so callers can't mutate a shared pool.
func Clone(in []Candidate) []Candidate {
	if in == nil {
		return nil
	}
	out := make([]Candidate, len(in))
	copy(out, in)
	return out
}
