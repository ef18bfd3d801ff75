package c2c

import (
	"context"
	"fmt"

	"github.com/raterudder/c2c/pkg/auth"
	"github.com/raterudder/c2c/pkg/types"
)

// OAuthService is implemented by providers that authorize with OAuth tokens.
type OAuthService interface {
	OAuthRegistration(config types.IntegrationConfiguration) (auth.Registration, error)
}

// RegistrationLookup resolves an OAuth client registration ID, which is an
// integration's system identifier, to the registration its provider builds
// from the integration's settings.
func RegistrationLookup(store IntegrationStore, services *Map) auth.RegistrationLookup {
	return func(ctx context.Context, registrationID string) (auth.Registration, error) {
		userID, integrationID, err := types.ParseSystemIdentifier(registrationID)
		if err != nil {
			return auth.Registration{}, err
		}
		config, err := store.GetIntegrationConfiguration(ctx, userID, integrationID)
		if err != nil {
			return auth.Registration{}, err
		}
		svc, err := services.Service(config.ServiceIdentifier)
		if err != nil {
			return auth.Registration{}, err
		}
		o, ok := svc.(OAuthService)
		if !ok {
			return auth.Registration{}, fmt.Errorf("service %s does not use oauth", config.ServiceIdentifier)
		}
		return o.OAuthRegistration(config)
	}
}
