package service

type TaxRateResponse struct {
	Code    string `json:"code"`
	Percent string `json:"percent"`
	Label   string `json:"label"`
	Exempt  bool   `json:"exempt"`
	Default bool   `json:"default"`
}

type TaxService interface {
	GetTaxRates() []TaxRateResponse
}

type taxService struct {
	pricing Pricing
}

func NewTaxService(pricing Pricing) TaxService {
	return &taxService{pricing: pricing}
}

// GetTaxRates lists the configured tiers, ascending by percent with the exempt tier last
func (s *taxService) GetTaxRates() []TaxRateResponse {
	tiers := s.pricing.Engine.Rates().Tiers()
	res := make([]TaxRateResponse, 0, len(tiers))
	for _, t := range tiers {
		res = append(res, TaxRateResponse{
			Code:    string(t.Code),
			Percent: t.Percent.String(),
			Label:   t.Label,
			Exempt:  t.IsExempt(),
			Default: t.Code == s.pricing.DefaultRate,
		})
	}
	return res
}
