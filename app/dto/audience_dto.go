package dto

// AudienceSummaryRequest asks for the aggregate and cost of a selection
type AudienceSummaryRequest struct {
	CategoryIDs []string `json:"category_ids" validate:"required,min=1,max=100,dive,required,max=100"`
}
