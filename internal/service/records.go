package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/autenticador/accounts-api/internal/models"
	"github.com/autenticador/accounts-api/internal/repository"
)

// RecordService implements the admin-facing data record operations
type RecordService struct {
	records repository.RecordRepository
	logger  *logrus.Logger
}

func NewRecordService(records repository.RecordRepository, logger *logrus.Logger) *RecordService {
	return &RecordService{records: records, logger: logger}
}

// List returns all records. A fetch failure yields an empty slice, never an
// error.
func (s *RecordService) List(ctx context.Context) []models.DataRecord {
	records, err := s.records.List(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list records")
		return []models.DataRecord{}
	}
	return records
}

// Create stores a new key/value entry
func (s *RecordService) Create(ctx context.Context, key, value string) *models.RecordResult {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	if key == "" || value == "" {
		return &models.RecordResult{Result: models.Fail(msgRequiredField)}
	}

	record := &models.DataRecord{
		RecordID: uuid.New().String(),
		Key:      key,
		Value:    value,
	}

	if err := s.records.Create(ctx, record); err != nil {
		s.logger.WithError(err).Error("Failed to create record")
		return &models.RecordResult{Result: models.Fail(errMessage(err, "Could not create the record."))}
	}

	return &models.RecordResult{Result: models.Ok("Record created successfully."), Record: record}
}

// Update rewrites an existing entry. A zero-row update fails distinctly.
func (s *RecordService) Update(ctx context.Context, id, key, value string) *models.RecordResult {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	if key == "" || value == "" {
		return &models.RecordResult{Result: models.Fail(msgRequiredField)}
	}

	record, err := s.records.Update(ctx, id, key, value)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &models.RecordResult{Result: models.Fail("Could not update the record.")}
		}
		s.logger.WithError(err).WithField("record_id", id).Error("Failed to update record")
		return &models.RecordResult{Result: models.Fail(errMessage(err, "Could not update the record."))}
	}

	return &models.RecordResult{Result: models.Ok("Record updated successfully."), Record: record}
}

// Delete removes an entry. A zero-row delete fails distinctly.
func (s *RecordService) Delete(ctx context.Context, id string) models.Result {
	removed, err := s.records.Delete(ctx, id)
	if err != nil {
		s.logger.WithError(err).WithField("record_id", id).Error("Failed to delete record")
		return models.Fail(errMessage(err, "Could not delete the record."))
	}
	if !removed {
		return models.Fail("Could not delete the record.")
	}

	return models.Ok("Record deleted successfully.")
}
