package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/c2c/pkg/log"
	"github.com/raterudder/c2c/pkg/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreProvider implements the Database interface using Google Cloud Firestore.
// Every entity is stored as a JSON blob alongside a few indexed fields.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// Project ID verification could be here, but we allow empty if inferred.
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) getCollection(userID int64, name string) (*firestore.CollectionRef, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("userID must be positive")
	}
	return f.client.Collection("users").Doc(strconv.FormatInt(userID, 10)).Collection(name), nil
}

func decodeJSONDoc(ctx context.Context, doc *firestore.DocumentSnapshot, dest any) error {
	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "doc missing json", slog.String("path", doc.Ref.Path), slog.Any("err", err))
		return fmt.Errorf("document %s missing 'json' field: %w", doc.Ref.ID, err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "doc json not string", slog.String("path", doc.Ref.Path))
		return fmt.Errorf("document %s 'json' field is not a string", doc.Ref.ID)
	}
	if err := json.Unmarshal([]byte(jsonStr), dest); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal doc json", slog.String("path", doc.Ref.Path), slog.Any("err", err))
		return fmt.Errorf("failed to unmarshal document %s: %w", doc.Ref.ID, err)
	}
	return nil
}

// GetIntegrationConfiguration retrieves an integration from the user's
// "integrations" collection.
func (f *FirestoreProvider) GetIntegrationConfiguration(ctx context.Context, userID, integrationID int64) (types.IntegrationConfiguration, error) {
	coll, err := f.getCollection(userID, "integrations")
	if err != nil {
		return types.IntegrationConfiguration{}, err
	}
	doc, err := coll.Doc(strconv.FormatInt(integrationID, 10)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.IntegrationConfiguration{}, fmt.Errorf("%w: %d:%d", ErrIntegrationNotFound, userID, integrationID)
		}
		return types.IntegrationConfiguration{}, fmt.Errorf("failed to get integration %d: %w", integrationID, err)
	}
	var c types.IntegrationConfiguration
	if err := decodeJSONDoc(ctx, doc, &c); err != nil {
		return types.IntegrationConfiguration{}, err
	}
	return c, nil
}

// ListIntegrationConfigurations retrieves all of a user's integrations.
// Malformed documents are skipped.
func (f *FirestoreProvider) ListIntegrationConfigurations(ctx context.Context, userID int64) ([]types.IntegrationConfiguration, error) {
	coll, err := f.getCollection(userID, "integrations")
	if err != nil {
		return nil, err
	}
	iter := coll.OrderBy(firestore.DocumentID, firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var configs []types.IntegrationConfiguration
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating integrations: %w", err)
		}
		var c types.IntegrationConfiguration
		if err := decodeJSONDoc(ctx, doc, &c); err != nil {
			continue
		}
		configs = append(configs, c)
	}
	return configs, nil
}

// SaveIntegrationConfiguration creates or replaces an integration.
func (f *FirestoreProvider) SaveIntegrationConfiguration(ctx context.Context, config types.IntegrationConfiguration) error {
	jsonBytes, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal integration: %w", err)
	}
	coll, err := f.getCollection(config.UserID, "integrations")
	if err != nil {
		return err
	}
	_, err = coll.Doc(strconv.FormatInt(config.ID, 10)).Set(ctx, map[string]interface{}{
		"json":              string(jsonBytes),
		"serviceIdentifier": config.ServiceIdentifier,
		"modified":          config.Modified,
	})
	if err != nil {
		return fmt.Errorf("failed to save integration: %w", err)
	}
	return nil
}

// DeleteIntegrationConfiguration removes an integration. Deleting a missing
// integration is not an error.
func (f *FirestoreProvider) DeleteIntegrationConfiguration(ctx context.Context, userID, integrationID int64) error {
	coll, err := f.getCollection(userID, "integrations")
	if err != nil {
		return err
	}
	if _, err := coll.Doc(strconv.FormatInt(integrationID, 10)).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete integration %d: %w", integrationID, err)
	}
	return nil
}

// GetDatumStreamConfiguration retrieves a datum stream from the user's
// "datum_streams" collection.
func (f *FirestoreProvider) GetDatumStreamConfiguration(ctx context.Context, userID, streamID int64) (types.DatumStreamConfiguration, error) {
	coll, err := f.getCollection(userID, "datum_streams")
	if err != nil {
		return types.DatumStreamConfiguration{}, err
	}
	doc, err := coll.Doc(strconv.FormatInt(streamID, 10)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.DatumStreamConfiguration{}, fmt.Errorf("%w: %d:%d", ErrDatumStreamNotFound, userID, streamID)
		}
		return types.DatumStreamConfiguration{}, fmt.Errorf("failed to get datum stream %d: %w", streamID, err)
	}
	var c types.DatumStreamConfiguration
	if err := decodeJSONDoc(ctx, doc, &c); err != nil {
		return types.DatumStreamConfiguration{}, err
	}
	return c, nil
}

// SaveDatumStreamConfiguration creates or replaces a datum stream.
func (f *FirestoreProvider) SaveDatumStreamConfiguration(ctx context.Context, config types.DatumStreamConfiguration) error {
	jsonBytes, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal datum stream: %w", err)
	}
	coll, err := f.getCollection(config.UserID, "datum_streams")
	if err != nil {
		return err
	}
	_, err = coll.Doc(strconv.FormatInt(config.ID, 10)).Set(ctx, map[string]interface{}{
		"json":          string(jsonBytes),
		"integrationId": config.IntegrationID,
	})
	if err != nil {
		return fmt.Errorf("failed to save datum stream: %w", err)
	}
	return nil
}

// GetControlConfiguration retrieves a control from the top-level "controls"
// collection, keyed by node and control ID.
func (f *FirestoreProvider) GetControlConfiguration(ctx context.Context, nodeID int64, controlID string) (types.ControlConfiguration, error) {
	docID, err := controlDocID(nodeID, controlID)
	if err != nil {
		return types.ControlConfiguration{}, err
	}
	doc, err := f.client.Collection("controls").Doc(docID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.ControlConfiguration{}, fmt.Errorf("%w: %s", ErrControlNotFound, docID)
		}
		return types.ControlConfiguration{}, fmt.Errorf("failed to get control %s: %w", docID, err)
	}
	var c types.ControlConfiguration
	if err := decodeJSONDoc(ctx, doc, &c); err != nil {
		return types.ControlConfiguration{}, err
	}
	return c, nil
}

// SaveControlConfiguration creates or replaces a control.
func (f *FirestoreProvider) SaveControlConfiguration(ctx context.Context, config types.ControlConfiguration) error {
	docID, err := controlDocID(config.NodeID, config.ControlID)
	if err != nil {
		return err
	}
	jsonBytes, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal control: %w", err)
	}
	_, err = f.client.Collection("controls").Doc(docID).Set(ctx, map[string]interface{}{
		"json":          string(jsonBytes),
		"userId":        config.UserID,
		"integrationId": config.IntegrationID,
	})
	if err != nil {
		return fmt.Errorf("failed to save control %s: %w", docID, err)
	}
	return nil
}

// AddEvent appends an audit event to the user's "events" collection. Events
// are created, never updated, so an existing ID is an error.
func (f *FirestoreProvider) AddEvent(ctx context.Context, userID int64, event types.AuditEvent) error {
	if event.ID == "" {
		return fmt.Errorf("event missing id")
	}
	jsonBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	coll, err := f.getCollection(userID, "events")
	if err != nil {
		return err
	}
	_, err = coll.Doc(event.ID).Create(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"timestamp": event.Timestamp,
		"tags":      event.Tags,
	})
	if err != nil {
		return fmt.Errorf("failed to add event: %w", err)
	}
	return nil
}

// GetEvents retrieves the user's audit events with start <= timestamp < end.
func (f *FirestoreProvider) GetEvents(ctx context.Context, userID int64, start, end time.Time) ([]types.AuditEvent, error) {
	coll, err := f.getCollection(userID, "events")
	if err != nil {
		return nil, err
	}
	iter := coll.
		Where("timestamp", ">=", start).
		Where("timestamp", "<", end).
		OrderBy("timestamp", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var events []types.AuditEvent
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating events: %w", err)
		}
		var e types.AuditEvent
		if err := decodeJSONDoc(ctx, doc, &e); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}
