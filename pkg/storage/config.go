package storage

import (
	"context"
	"fmt"

	"github.com/levenlabs/go-lflag"
)

// Configured sets up the Database holding integration, datum stream and
// control configurations plus the audit event log.
func Configured() Database {
	provider := lflag.String("storage-provider", "firestore", "Where integration configurations and audit events are stored (available: firestore)")

	var p struct{ Database }

	fs := configuredFirestore()

	lflag.Do(func() {
		switch *provider {
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("invalid firestore configuration store: %v", err))
			}
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("failed to connect to the firestore configuration store: %v", err))
			}
			p.Database = fs
		default:
			panic(fmt.Sprintf("unknown configuration store provider: %s", *provider))
		}
	})

	return &p
}
