package types

import (
	"fmt"
)

// TariffRecord is one row of a residential tariff search.
type TariffRecord struct {
	NameAndTariff string `json:"name_and_tariff"`
	Description   string `json:"description"`
	Price         string `json:"price"`
	ImgLink       string `json:"img_link"`
}

// TariffQuery is the residential search form.
type TariffQuery struct {
	Country string `json:"country" validate:"required"`
	Zipcode string `json:"zipcode" validate:"required"`
	KWTotal string `json:"kw_total" validate:"required,numeric"`
}

// Validate returns an error if the query is incomplete.
func (q TariffQuery) Validate() error {
	if err := validate.Struct(q); err != nil {
		return fmt.Errorf("invalid search: %w", err)
	}
	return nil
}
