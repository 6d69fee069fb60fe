package models

// Schema lists every table owned by the service, in creation order
func Schema() []any {
	return []any{
		&AudienceCategory{},
		&PricingTier{},
		&Campaign{},
		&Order{},
		&Transaction{},
		&HTMLAsset{},
		&AuditLog{},
	}
}
