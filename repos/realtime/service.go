package realtime

import (
	"context"
	"encoding/json"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"
	"golang.org/x/xerrors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Service is the Firestore-backed named-path store. Each organization owns
// one document per path; the document is always replaced whole.
type Service struct {
	Client *firestore.Client
	log    zerolog.Logger
}

// NewService creates a new service on top of an initialized Firestore client.
func NewService(client *firestore.Client, logger zerolog.Logger) *Service {
	return &Service{
		Client: client,
		log:    logger,
	}
}

func (s *Service) pathRef(organizationID, path string) *firestore.DocumentRef {
	return s.Client.Collection("Organizations").Doc(organizationID).Collection("State").Doc(path)
}

// Publish replaces the document stored at {organizationID}/{path}.
func (s *Service) Publish(ctx context.Context, organizationID, path string, doc json.RawMessage) error {
	_, err := s.pathRef(organizationID, path).Set(ctx, document{
		Data:      string(doc),
		UpdatedAt: time.Now(),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("failed to write document to Firestore")
		return err
	}
	return nil
}

// Watch streams the latest full value at {organizationID}/{path} into
// sink: once immediately with the current value and again on every remote
// change. A missing document is delivered as JSON null. The goroutine
// exits when ctx is cancelled.
func (s *Service) Watch(ctx context.Context, organizationID, path string, sink func(path string, doc json.RawMessage)) {
	go func() {
		it := s.pathRef(organizationID, path).Snapshots(ctx)
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				if status.Code(err) == codes.Canceled {
					return
				}
				s.log.Warn().Err(err).Str("path", path).Msg("snapshot stream ended")
				return
			}

			if !snap.Exists() {
				sink(path, json.RawMessage("null"))
				continue
			}

			var d document
			if err := snap.DataTo(&d); err != nil {
				// If this fails, we have an inconsistency error as we control both
				// the data written to Firestore and the shape of our document struct.
				s.log.Error().Err(err).Str("path", path).Msg("consistency error decoding document")
				continue
			}
			sink(path, json.RawMessage(d.Data))
		}
	}()
}

// Probe verifies the organization's state is reachable with the current
// credentials. Ordinary publishes fail silently by design; this is the one
// operation that surfaces a human-readable diagnostic.
func (s *Service) Probe(ctx context.Context, organizationID string) error {
	_, err := s.pathRef(organizationID, "users").Get(ctx)
	switch status.Code(err) {
	case codes.OK, codes.NotFound:
		return nil
	case codes.PermissionDenied:
		return xerrors.Errorf("access to organization %q was denied, check the console credentials: %w", organizationID, err)
	default:
		return xerrors.Errorf("organization %q is not reachable: %w", organizationID, err)
	}
}
