package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/linkstashapp/linkstash-sync/internal/domain"
)

// instanceKey is the singleton key for this client installation's record.
var instanceKey = []byte("instance:config")

// ErrInstanceNotFound is returned when no instance record exists.
var ErrInstanceNotFound = errors.New("instance not found")

// GetInstance retrieves the singleton client instance record.
// Returns ErrInstanceNotFound if none exists.
func (s *Store) GetInstance(_ context.Context) (*domain.Instance, error) {
	var instance domain.Instance

	err := s.get(instanceKey, &instance)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrInstanceNotFound
		}
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}

	return &instance, nil
}

// InitializeInstance ensures a client instance record exists, creating one
// with a fresh random id on first run. The id identifies this installation
// to the remote API across sessions.
func (s *Store) InitializeInstance(ctx context.Context) (*domain.Instance, error) {
	instance, err := s.GetInstance(ctx)
	if err == nil {
		return instance, nil
	}
	if !errors.Is(err, ErrInstanceNotFound) {
		return nil, fmt.Errorf("failed to initialize instance: %w", err)
	}

	instance = &domain.Instance{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
	}

	if err := s.set(instanceKey, instance); err != nil {
		return nil, fmt.Errorf("failed to create instance: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("client instance created", "id", instance.ID)
	}

	return instance, nil
}
