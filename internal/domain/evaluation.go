package domain

// Evaluation is the structured score object returned by the external
// evaluator. Sub-scores and Overall are on a 0..10 scale.
type Evaluation struct {
	Skills      int    `json:"skills"`
	Experience  int    `json:"experience"`
	Education   int    `json:"education"`
	LocationFit int    `json:"location_fit"`
	Overall     int    `json:"overall"`
	Reasoning   string `json:"reasoning"`
}
