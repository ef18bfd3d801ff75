package c2c

import (
	"context"
	"log/slog"

	"github.com/raterudder/c2c/pkg/log"
	"github.com/raterudder/c2c/pkg/types"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Result codes returned by Validate.
const (
	CodeMissingSettings = "C2C.VALIDATION.MISSING_SETTINGS"
	CodeCommunication   = "C2C.VALIDATION.COMMUNICATION"
	CodeUnknownService  = "C2C.VALIDATION.UNKNOWN_SERVICE"
	CodeRequired        = "REQUIRED"
)

// validateRequiredSettings returns one error per required setting that has
// no non-blank value, in the order the settings are declared.
func validateRequiredSettings(info types.ServiceInfo, config types.IntegrationConfiguration, p *message.Printer) []types.ErrorDetail {
	var errs []types.ErrorDetail
	for _, s := range info.Settings {
		if !s.Required {
			continue
		}
		if config.StringProperty(s.Key) != "" {
			continue
		}
		name := s.Name
		if name == "" {
			name = s.Key
		}
		errs = append(errs, types.ErrorDetail{
			Location:      s.Key,
			Code:          CodeRequired,
			Message:       p.Sprintf(msgSettingRequired, name),
			RejectedValue: config.ServiceProperties[s.Key],
		})
	}
	return errs
}

// validateConfiguration checks the required settings of info and then, only
// if they are all present, calls verify exactly once.
func validateConfiguration(ctx context.Context, info types.ServiceInfo, config types.IntegrationConfiguration, locale language.Tag, verify func(context.Context) error) types.Result {
	p := printerFor(locale)
	if errs := validateRequiredSettings(info, config, p); len(errs) > 0 {
		return types.Result{
			Code:    CodeMissingSettings,
			Message: p.Sprintf(msgValidationFailed),
			Errors:  errs,
		}
	}
	if err := verify(ctx); err != nil {
		log.Ctx(ctx).WarnContext(
			ctx,
			"integration validation failed",
			slog.String("service", info.ID),
			slog.String("integration", config.SystemIdentifier()),
			slog.Any("error", err),
		)
		return types.Result{
			Code:    CodeCommunication,
			Message: p.Sprintf(msgCommunicationFailed),
		}
	}
	return types.Success()
}
