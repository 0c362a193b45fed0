package scraper

import (
	"encoding/json"

	"github.com/smallbiznis/nectar/internal/fetcher"
	"github.com/smallbiznis/nectar/internal/store/domain"
	"gorm.io/datatypes"
)

// convertStoreDetail maps an upstream store document onto the persistence
// models. The untouched payload is kept in raw_json.
func convertStoreDetail(dom string, mapping fetcher.StoreMapping, detail *fetcher.StoreDetail) (*domain.Store, []domain.Coupon, []domain.PartialURL) {
	store := &domain.Store{
		StoreID:               detail.StoreID,
		Domain:                dom,
		PartialURL:            mapping.PartialURL,
		Name:                  detail.Name,
		Label:                 detail.Label,
		Country:               detail.Country,
		URL:                   detail.URL,
		LogoURL:               detail.LogoURL,
		Active:                detail.Active,
		Supported:             detail.Supported,
		SupportStage:          detail.SupportStage,
		Created:               detail.Created,
		Updated:               detail.Updated,
		Checked:               detail.Checked,
		Score:                 detail.Score,
		Shoppers24h:           detail.Shoppers24h,
		Shoppers30d:           detail.Shoppers30d,
		ShoppersChange:        detail.ShoppersChange,
		NumSavings24h:         detail.NumSavings24h,
		NumSavings30d:         detail.NumSavings30d,
		AvgSavings24h:         detail.AvgSavings24h,
		AvgSavings30d:         detail.AvgSavings30d,
		Metadata:              rawToJSON(detail.Metadata),
		AffiliateURL:          detail.AffiliateURL,
		AffiliateRestrictions: detail.AffiliateRestrictions,
		UGCAllowed:            detail.UGCAllowed,
		FreeShippingThreshold: detail.FreeShippingThreshold,
		ForceJSRedirect:       detail.ForceJSRedirect,
		LaunchpadPathname:     detail.LaunchpadPathname,
		RawJSON:               rawToJSON(detail.Raw),
	}

	coupons := make([]domain.Coupon, 0, len(detail.PublicCoupons))
	for _, c := range detail.PublicCoupons {
		coupons = append(coupons, domain.Coupon{
			StoreID:                detail.StoreID,
			Code:                   c.Code,
			DealID:                 c.DealID,
			Description:            c.Description,
			Created:                c.Created,
			Expires:                c.Expires,
			Exclusive:              c.Exclusive,
			Hidden:                 c.Hidden,
			Restrictions:           c.Restrictions,
			Rank:                   c.Rank,
			AppliedAccCount:        c.AppliedAccCount,
			AppliedAccLastTS:       c.AppliedAccLastTS,
			AppliedAccLastDiscount: c.AppliedAccLastDiscount,
			URL:                    c.URL,
			MetaJSON:               rawToJSON(c.Meta),
			SourcesJSON:            rawToJSON(c.Sources),
			TagsJSON:               rawToJSON(c.Tags),
		})
	}

	partials := make([]domain.PartialURL, 0, len(detail.PartialURLs))
	for _, pu := range detail.PartialURLs {
		partials = append(partials, domain.PartialURL{
			StoreID:    detail.StoreID,
			Domain:     pu.Domain,
			PartialURL: pu.PartialURL,
		})
	}

	return store, coupons, partials
}

func rawToJSON(raw json.RawMessage) datatypes.JSON {
	if len(raw) == 0 {
		return nil
	}
	return datatypes.JSON(raw)
}
