package entity

type ReviewSummary struct {
	ReviewID int    `json:"reviewId"`
	Author   string `json:"author"`
	Subject  string `json:"subject"`
	Content  string `json:"content"`
}

type RecommendationSummary struct {
	RecommendationID int    `json:"recommendationId"`
	Author           string `json:"author"`
	Rate             int    `json:"rate"`
	Content          string `json:"content"`
}

type ServiceAddresses struct {
	Composite      string `json:"cmp,omitempty"`
	Product        string `json:"pro,omitempty"`
	Review         string `json:"rev,omitempty"`
	Recommendation string `json:"rec,omitempty"`
}

// ProductAggregate is the joined view of one product across the three leaf
// services. Recommendations and Reviews are never nil: a failed optional
// upstream shows up as an empty list, not an absent field.
type ProductAggregate struct {
	ProductID        int                     `json:"productId"`
	Name             string                  `json:"name"`
	Weight           int                     `json:"weight"`
	Recommendations  []RecommendationSummary `json:"recommendations"`
	Reviews          []ReviewSummary         `json:"reviews"`
	ServiceAddresses ServiceAddresses        `json:"serviceAddresses"`
}
