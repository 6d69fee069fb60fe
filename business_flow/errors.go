// Package businessflow contains the campaign lifecycle, pricing, and payment reconciliation logic
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Campaign-related errors
	ErrCampaignNotFound     = errors.New("campaign not found")
	ErrCampaignAccessDenied = errors.New("campaign access denied")
	ErrCampaignLocked       = errors.New("campaign is locked and advanced only by delivery events")
	ErrInvalidTransition    = errors.New("transition not allowed from current status")
	ErrDraftNotSaved        = errors.New("draft must be saved before entering payment")
	ErrTransitionInProgress = errors.New("another transition for this campaign is in progress")

	ErrPaymentConfirmationRequired = errors.New("payment step advances only through payment confirmation")
	ErrPaymentInFlight             = errors.New("campaign has a payment in progress at the gateway")
	ErrCampaignAlreadyPaid         = errors.New("campaign already has a settled order")

	// Section validation errors
	ErrAudienceRequired        = errors.New("at least one audience category must be selected")
	ErrNoRecipients            = errors.New("selected audience has no recipients")
	ErrMessageRequired         = errors.New("message must be set before scheduling")
	ErrSubjectRequired         = errors.New("message subject is required")
	ErrBodyRequired            = errors.New("message body is required for inline-editor content")
	ErrHTMLFileRequired        = errors.New("an uploaded html file is required for uploaded-html content")
	ErrContentSourceInvalid    = errors.New("content source is invalid")
	ErrScheduleRequired        = errors.New("send date and time are required")
	ErrScheduleInvalid         = errors.New("send date or time is malformed")
	ErrPricingTableEmpty       = errors.New("pricing table is empty")
	ErrCostOverflow            = errors.New("campaign cost exceeds the representable amount")
	ErrHTMLAttachmentEmpty     = errors.New("html attachment is empty")
	ErrHTMLAttachmentTooLarge  = errors.New("html attachment exceeds the size limit")
	ErrHTMLAttachmentNotHTML   = errors.New("attachment is not an html document")
	ErrHTMLFileNotFound        = errors.New("html file not found")

	// A/B test errors
	ErrABTestGroupPercentOutOfRange = errors.New("test group percent must be between 10 and 50")
	ErrABTestVariantBRequired       = errors.New("variant B subject is required when the test is enabled")

	// Order and payment errors
	ErrOrderNotFound            = errors.New("order not found")
	ErrOrderAccessDenied        = errors.New("order access denied")
	ErrOrderNotPayable          = errors.New("order is not pending")
	ErrOrderAlreadyFinalized    = errors.New("order already finalized")
	ErrOrderIDRequired          = errors.New("order id is required")
	ErrTrackingIDRequired       = errors.New("tracking id is required")
	ErrVerificationInconclusive = errors.New("payment verification inconclusive")
	ErrGatewayTokenEmpty        = errors.New("payment gateway returned an empty token")
	ErrTrackingIDMismatch       = errors.New("tracking id belongs to another order")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

// validationErrors are rejected locally and never reach a store
var validationErrors = []error{
	ErrAudienceRequired,
	ErrNoRecipients,
	ErrMessageRequired,
	ErrSubjectRequired,
	ErrBodyRequired,
	ErrHTMLFileRequired,
	ErrContentSourceInvalid,
	ErrScheduleRequired,
	ErrScheduleInvalid,
	ErrCostOverflow,
	ErrHTMLAttachmentEmpty,
	ErrHTMLAttachmentTooLarge,
	ErrHTMLAttachmentNotHTML,
	ErrABTestGroupPercentOutOfRange,
	ErrABTestVariantBRequired,
	ErrOrderIDRequired,
	ErrTrackingIDRequired,
}

// IsValidationError reports whether err is a precondition failure
func IsValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// BusinessErrorCode extracts the code of the outermost BusinessError
func BusinessErrorCode(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsHTMLFileNotFound(err error) bool {
	return errors.Is(err, ErrHTMLFileNotFound)
}

func IsCampaignAccessDenied(err error) bool {
	return errors.Is(err, ErrCampaignAccessDenied)
}

// IsCampaignLocked reports whether the campaign cannot change right now,
// either by status or because of its linked order
func IsCampaignLocked(err error) bool {
	return errors.Is(err, ErrCampaignLocked) ||
		errors.Is(err, ErrPaymentInFlight) ||
		errors.Is(err, ErrCampaignAlreadyPaid)
}

func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrDraftNotSaved) ||
		errors.Is(err, ErrPaymentConfirmationRequired)
}

func IsTransitionInProgress(err error) bool {
	return errors.Is(err, ErrTransitionInProgress)
}

func IsOrderNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound)
}

func IsOrderAccessDenied(err error) bool {
	return errors.Is(err, ErrOrderAccessDenied)
}

func IsOrderNotPayable(err error) bool {
	return errors.Is(err, ErrOrderNotPayable) ||
		errors.Is(err, ErrOrderAlreadyFinalized) ||
		errors.Is(err, ErrTrackingIDMismatch)
}

func IsVerificationInconclusive(err error) bool {
	return errors.Is(err, ErrVerificationInconclusive)
}
