package catalog

// Product is one entry of the catalog document. Every piece of jewelry is
// unique, so a sale flips Available to false and the entry stays in the
// document for provenance.
type Product struct {
	ID          string   `json:"id"`
	Slug        string   `json:"slug,omitempty"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Price       float64  `json:"price"`
	Currency    string   `json:"currency,omitempty"`
	Available   *bool    `json:"available,omitempty"`
	Featured    bool     `json:"featured,omitempty"`
	Era         string   `json:"era,omitempty"`
	Period      string   `json:"period,omitempty"`
	Style       string   `json:"style,omitempty"`
	Metal       string   `json:"metal,omitempty"`
	Stone       string   `json:"stone,omitempty"`
	Images      []string `json:"images,omitempty"`
}

// IsAvailable treats a missing available field as available, matching the
// catalog document convention.
func (p Product) IsAvailable() bool {
	return p.Available == nil || *p.Available
}
