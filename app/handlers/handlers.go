// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/Orochi-Mail/app/dto"
	"github.com/amirphl/Orochi-Mail/app/middleware"
	businessflow "github.com/amirphl/Orochi-Mail/business_flow"
	"github.com/amirphl/Orochi-Mail/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

const defaultRequestTimeout = 30 * time.Second

func ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// validationFailed renders validator errors as a 400 response
func validationFailed(c fiber.Ctx, err error) error {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", err.Error())
	}
	messages := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		messages = append(messages, getValidationErrorMessage(fe))
	}
	return ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", messages)
}

// identityFrom builds the caller identity from the locals set by the auth middleware
func identityFrom(c fiber.Ctx) (businessflow.Identity, bool) {
	customerID, ok := middleware.GetCustomerIDFromContext(c)
	if !ok {
		return businessflow.Identity{}, false
	}
	email, _ := c.Locals(middleware.EmailLocal).(string)
	token, _ := c.Locals(middleware.TokenLocal).(string)
	return businessflow.Identity{CustomerID: customerID, Email: email, Token: token}, true
}

func missingIdentity(c fiber.Ctx) error {
	return ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
}

// requestContext creates a context with a timeout and request-scoped values
func requestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultRequestTimeout)

	requestID := c.Get(fiber.HeaderXRequestID)
	if requestID == "" {
		requestID = c.GetRespHeader(fiber.HeaderXRequestID)
	}
	ctx = context.WithValue(ctx, utils.RequestIDKey, requestID)
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get(fiber.HeaderUserAgent))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)

	return ctx, cancel
}

// classifyError maps a business flow error to an HTTP status and error code
func classifyError(err error) (int, string) {
	code := businessflow.BusinessErrorCode(err)
	status := fiber.StatusInternalServerError

	switch {
	case businessflow.IsValidationError(err):
		status = fiber.StatusBadRequest
	case businessflow.IsCampaignNotFound(err), businessflow.IsOrderNotFound(err), businessflow.IsHTMLFileNotFound(err):
		status = fiber.StatusNotFound
	case businessflow.IsCampaignAccessDenied(err), businessflow.IsOrderAccessDenied(err):
		status = fiber.StatusForbidden
	case businessflow.IsTransitionInProgress(err),
		businessflow.IsCampaignLocked(err),
		businessflow.IsInvalidTransition(err),
		businessflow.IsOrderNotPayable(err):
		status = fiber.StatusConflict
	case businessflow.IsVerificationInconclusive(err), errors.Is(err, businessflow.ErrGatewayTokenEmpty):
		status = fiber.StatusBadGateway
	}

	if code == "" {
		code = "INTERNAL_ERROR"
	}
	return status, code
}

// businessErrorResponse renders err with the status classifyError picks.
// Server-side failures are logged and their details withheld.
func businessErrorResponse(c fiber.Ctx, logger *zap.Logger, err error, fallback string) error {
	status, code := classifyError(err)

	message := fallback
	var be *businessflow.BusinessError
	if errors.As(err, &be) && be.Message != "" {
		message = be.Message
	}

	if status >= fiber.StatusInternalServerError {
		logger.Error(fallback,
			zap.String("code", code),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		if status == fiber.StatusInternalServerError {
			return ErrorResponse(c, status, fallback, code, nil)
		}
		return ErrorResponse(c, status, message, code, nil)
	}

	var details any
	if be != nil && be.Err != nil {
		details = be.Err.Error()
	}
	return ErrorResponse(c, status, message, code, details)
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "min":
		return err.Field() + " must have at least " + err.Param() + " items or characters"
	case "max":
		return err.Field() + " must have at most " + err.Param() + " items or characters"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "base64":
		return err.Field() + " must be base64 encoded"
	case "datetime":
		return fmt.Sprintf("%s must match the layout %s", err.Field(), err.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}
