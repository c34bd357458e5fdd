// Package firestore implements the token and history stores on Google Cloud
// Firestore.
package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tinywideclouds/go-push-dispatch-service/pkg/notification"
)

const (
	tokensCollection = "device_tokens"

	// Firestore caps the number of values in an "in" filter.
	maxInValues = 30
)

// TokenStore implements dispatch.TokenStore on a flat device_tokens
// collection. Each document id is derived from the (user, token) pair, so
// the pair is unique by construction.
type TokenStore struct {
	client *firestore.Client
	now    func() time.Time
}

func NewTokenStore(client *firestore.Client) *TokenStore {
	return &TokenStore{client: client, now: time.Now}
}

func (s *TokenStore) Upsert(ctx context.Context, userID, deviceToken string, platform notification.Platform) (notification.DeviceRegistration, error) {
	ref := s.tokenRef(userID, deviceToken)
	var saved notification.DeviceRegistration

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		now := s.now().UTC()
		reg := notification.DeviceRegistration{
			UserID:      userID,
			DeviceToken: deviceToken,
			Platform:    platform,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		snap, err := tx.Get(ref)
		switch {
		case err == nil:
			var existing notification.DeviceRegistration
			if err := snap.DataTo(&existing); err != nil {
				return err
			}
			reg.CreatedAt = existing.CreatedAt
		case status.Code(err) != codes.NotFound:
			return err
		}

		saved = reg
		return tx.Set(ref, reg)
	})
	if err != nil {
		return notification.DeviceRegistration{}, fmt.Errorf("firestore upsert token: %w", err)
	}
	return saved, nil
}

func (s *TokenStore) FindByUser(ctx context.Context, userID string) ([]notification.DeviceRegistration, error) {
	q := s.client.Collection(tokensCollection).Where("user_id", "==", userID)
	return readRegistrations(q.Documents(ctx))
}

// FindByUsers issues one "in" query per chunk of ids.
func (s *TokenStore) FindByUsers(ctx context.Context, userIDs []string) ([]notification.DeviceRegistration, error) {
	regs := make([]notification.DeviceRegistration, 0)
	for start := 0; start < len(userIDs); start += maxInValues {
		end := min(start+maxInValues, len(userIDs))
		q := s.client.Collection(tokensCollection).Where("user_id", "in", userIDs[start:end])
		chunk, err := readRegistrations(q.Documents(ctx))
		if err != nil {
			return nil, err
		}
		regs = append(regs, chunk...)
	}
	return regs, nil
}

func (s *TokenStore) DeleteOne(ctx context.Context, userID, deviceToken string) (*notification.DeviceRegistration, error) {
	ref := s.tokenRef(userID, deviceToken)
	var removed *notification.DeviceRegistration

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		removed = nil
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return nil
		}
		if err != nil {
			return err
		}
		var reg notification.DeviceRegistration
		if err := snap.DataTo(&reg); err != nil {
			return err
		}
		removed = &reg
		return tx.Delete(ref)
	})
	if err != nil {
		return nil, fmt.Errorf("firestore delete token: %w", err)
	}
	return removed, nil
}

// DeleteAllForUser enqueues every delete on a BulkWriter and reports each
// write that failed on commit.
func (s *TokenStore) DeleteAllForUser(ctx context.Context, userID string) error {
	iter := s.client.Collection(tokensCollection).Where("user_id", "==", userID).Documents(ctx)
	defer iter.Stop()

	bw := s.client.BulkWriter(ctx)
	var jobs []writeJob
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			bw.End()
			return fmt.Errorf("firestore iteration failed: %w", err)
		}
		job, err := bw.Delete(doc.Ref)
		if err != nil {
			bw.End()
			return fmt.Errorf("firestore enqueue delete: %w", err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	if err := jobErrors(jobs); err != nil {
		return fmt.Errorf("firestore delete tokens for user %s: %w", userID, err)
	}
	return nil
}

// writeJob is the result side of a *firestore.BulkWriterJob.
type writeJob interface {
	Results() (*firestore.WriteResult, error)
}

// jobErrors blocks until every job has a result and joins the failures.
func jobErrors(jobs []writeJob) error {
	var errs []error
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *TokenStore) All(ctx context.Context) ([]notification.DeviceRegistration, error) {
	return readRegistrations(s.client.Collection(tokensCollection).Documents(ctx))
}

// Ping reads at most one document to prove the database is reachable.
func (s *TokenStore) Ping(ctx context.Context) error {
	iter := s.client.Collection(tokensCollection).Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return err
	}
	return nil
}

func (s *TokenStore) tokenRef(userID, deviceToken string) *firestore.DocumentRef {
	return s.client.Collection(tokensCollection).Doc(hashToken(userID, deviceToken))
}

func readRegistrations(iter *firestore.DocumentIterator) ([]notification.DeviceRegistration, error) {
	defer iter.Stop()

	regs := make([]notification.DeviceRegistration, 0)
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore iteration failed: %w", err)
		}
		var reg notification.DeviceRegistration
		if err := doc.DataTo(&reg); err != nil {
			return nil, fmt.Errorf("firestore decode token %s: %w", doc.Ref.ID, err)
		}
		regs = append(regs, reg)
	}
	return regs, nil
}

// hashToken keeps document ids short and free of characters Firestore
// rejects in ids.
func hashToken(userID, deviceToken string) string {
	sum := sha256.Sum256([]byte(userID + "\x00" + deviceToken))
	return hex.EncodeToString(sum[:])
}
