package grouping

import (
	"math"
	"time"
)

// QuoteSnapshot is the read-only view of a quote the advisor works on.
// It is assembled per request by the service; nothing here is persisted.
type QuoteSnapshot struct {
	ID                string    `json:"id"`
	Reference         string    `json:"reference"`
	ClientName        string    `json:"clientName"`
	ClientEmail       string    `json:"clientEmail"`
	AddressNormalized string    `json:"recipientAddressNormalized"`
	TotalWeight       float64   `json:"totalWeight"`
	TotalVolume       float64   `json:"totalVolume"`
	LotCount          int       `json:"lotCount"`
	ShippingCost      float64   `json:"shippingCost"`
	ShipmentGroupID   string    `json:"shipmentGroupId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Suggestion is the quick grouping estimate shown on a quote's page.
type Suggestion struct {
	TargetQuoteID        string          `json:"targetQuoteId"`
	Candidates           []QuoteSnapshot `json:"candidates"`
	TotalWeight          float64         `json:"totalWeight"`
	TotalVolume          float64         `json:"totalVolume"`
	EstimatedCartons     int             `json:"estimatedCartons"`
	IndividualCost       float64         `json:"individualShippingCost"`
	EstimatedGroupedCost float64         `json:"estimatedGroupedCost"`
	PotentialSavings     float64         `json:"potentialSavings"`
}

// groupedCostFactor is the documented quick-path heuristic: a grouped
// shipment is estimated at 70% of the summed standalone costs. The real
// cost is computed with the FFD packer when the group is actually
// created; the two figures can differ. Kept separate on purpose until
// product decides whether the quick path should run the packer too.
const groupedCostFactor = 0.7

// averageCartonVolume (cm³) feeds the rough carton-count estimate. It
// matches the M standard carton used in consolidation.
const averageCartonVolume = 36000.0

// BuildSuggestion computes the quick grouping estimate for a target
// quote and the candidate quotes sharing its normalized address. Returns
// nil when no candidate exists: a group needs at least two members.
func BuildSuggestion(target QuoteSnapshot, candidates []QuoteSnapshot) *Suggestion {
	eligible := make([]QuoteSnapshot, 0, len(candidates))
	for _, c := range candidates {
		if c.ID == target.ID {
			continue
		}
		if c.AddressNormalized != target.AddressNormalized {
			continue
		}
		eligible = append(eligible, c)
	}
	if len(eligible) == 0 {
		return nil
	}

	s := &Suggestion{
		TargetQuoteID: target.ID,
		Candidates:    eligible,
		TotalWeight:   target.TotalWeight,
		TotalVolume:   target.TotalVolume,
	}
	individual := target.ShippingCost
	for _, c := range eligible {
		s.TotalWeight += c.TotalWeight
		s.TotalVolume += c.TotalVolume
		individual += c.ShippingCost
	}
	s.EstimatedCartons = int(math.Ceil(s.TotalVolume / averageCartonVolume))
	s.IndividualCost = individual
	s.EstimatedGroupedCost = individual * groupedCostFactor
	s.PotentialSavings = individual - s.EstimatedGroupedCost
	return s
}
