package dto

// PaymentCallbackRequest is the gateway return payload, sent either as a
// query string or as a form/json body
type PaymentCallbackRequest struct {
	TrackingID string `json:"trackingId" query:"trackingId" form:"trackingId"`
	OrderID    string `json:"orderId" query:"orderId" form:"orderId"`
	Success    string `json:"success" query:"success" form:"success"`
}
