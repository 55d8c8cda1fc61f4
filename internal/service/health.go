package service

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/autenticador/accounts-api/internal/models"
	"github.com/autenticador/accounts-api/internal/repository"
)

// HealthService runs the two unrelated connectivity checks: a local network
// probe with no backend dependency, and a count probe against both tables.
type HealthService struct {
	users        repository.UserRepository
	records      repository.RecordRepository
	probeAddr    string
	probeTimeout time.Duration
	logger       *logrus.Logger
	dial         func(network, addr string, timeout time.Duration) (net.Conn, error)
}

func NewHealthService(users repository.UserRepository, records repository.RecordRepository, probeAddr string, probeTimeout time.Duration, logger *logrus.Logger) *HealthService {
	return &HealthService{
		users:        users,
		records:      records,
		probeAddr:    probeAddr,
		probeTimeout: probeTimeout,
		logger:       logger,
		dial:         net.DialTimeout,
	}
}

// CheckNetwork measures round-trip time to the configured probe address.
// It never touches the backend store.
func (s *HealthService) CheckNetwork(ctx context.Context) *models.NetworkSnapshot {
	started := time.Now()

	snapshot := &models.NetworkSnapshot{
		ProbeAddr: s.probeAddr,
		CheckedAt: started.UTC().Format(time.RFC3339),
	}

	conn, err := s.dial("tcp", s.probeAddr, s.probeTimeout)
	if err != nil {
		snapshot.Detail = err.Error()
		return snapshot
	}
	defer conn.Close()

	snapshot.Online = true
	snapshot.RTTMs = time.Since(started).Milliseconds()
	return snapshot
}

// CheckDatabase issues count probes against both tables concurrently and
// reports success only when neither errored
func (s *HealthService) CheckDatabase(ctx context.Context) *models.HealthResult {
	started := time.Now()

	var (
		wg          sync.WaitGroup
		userCount   int
		recordCount int
		userErr     error
		recordErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		userCount, userErr = s.users.Count(ctx)
	}()
	go func() {
		defer wg.Done()
		recordCount, recordErr = s.records.Count(ctx)
	}()
	wg.Wait()

	result := &models.HealthResult{
		LatencyMs: time.Since(started).Milliseconds(),
		CheckedAt: started.UTC().Format(time.RFC3339),
	}

	// Surface the first available error detail
	firstErr := userErr
	if firstErr == nil {
		firstErr = recordErr
	}

	if firstErr != nil {
		s.logger.WithError(firstErr).Warn("Database health probe failed")
		result.Result = models.Fail("Database connection failed.")
		result.Detail = firstErr.Error()
		return result
	}

	result.Result = models.Ok("Database connection established.")
	result.Stats = &models.HealthStats{
		Users:       userCount,
		DataRecords: recordCount,
	}
	return result
}
