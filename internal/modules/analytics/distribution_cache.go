package analytics

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Series names for cached simulation distributions.
const (
	SeriesROI    = "roi"
	SeriesImpact = "impact"
)

// DistributionCache keeps the full sorted outcome series of completed
// simulations in cache.db so percentile re-queries never re-run a
// simulation. Entries are disposable: losing one only costs the re-query
// capability for that run.
type DistributionCache struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewDistributionCache creates a new distribution cache
func NewDistributionCache(db *sql.DB, log zerolog.Logger) *DistributionCache {
	return &DistributionCache{
		db:  db,
		log: log.With().Str("repository", "distribution_cache").Logger(),
	}
}

// Store encodes one sorted series under (runID, series), replacing any
// previous blob for that key.
func (c *DistributionCache) Store(runID, series string, sorted []float64) error {
	payload, err := msgpack.Marshal(sorted)
	if err != nil {
		return fmt.Errorf("failed to encode %s distribution: %w", series, err)
	}

	_, err = c.db.Exec(`
		INSERT INTO simulation_distributions (run_id, series, iterations, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, series) DO UPDATE SET
			iterations = excluded.iterations,
			payload = excluded.payload,
			created_at = excluded.created_at
	`, runID, series, len(sorted), payload, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store %s distribution: %w", series, err)
	}

	c.log.Debug().
		Str("run_id", runID).
		Str("series", series).
		Int("iterations", len(sorted)).
		Msg("Distribution cached")
	return nil
}

// Load returns the sorted series for (runID, series), or nil on a miss.
func (c *DistributionCache) Load(runID, series string) ([]float64, error) {
	var payload []byte
	err := c.db.QueryRow(
		"SELECT payload FROM simulation_distributions WHERE run_id = ? AND series = ?",
		runID, series,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s distribution: %w", series, err)
	}

	var sorted []float64
	if err := msgpack.Unmarshal(payload, &sorted); err != nil {
		return nil, fmt.Errorf("failed to decode %s distribution: %w", series, err)
	}
	return sorted, nil
}
