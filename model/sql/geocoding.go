package sql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/muelltonne/muellbot/logger"
	"github.com/muelltonne/muellbot/model"
)

var log = logger.New("geocodingService")

// geocodingService persists resolved location keys so they survive
// restarts. Only successful resolutions are stored, negative results live
// exclusively in the short-lived memory cache.
type geocodingService struct {
	*sqlx.DB
}

func NewGeocodingService(db *sqlx.DB) *geocodingService {
	return &geocodingService{
		DB: db,
	}
}

func (db *geocodingService) GetLocation(ctx context.Context, canonical string) (model.LocationKey, error) {
	const query = `SELECT location_key
	FROM geocode_cache
	WHERE address = ?;`

	var key string
	err := db.GetContext(ctx, &key, query, canonical)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", model.ErrNotFound
		}
		return "", err
	}

	return model.LocationKey(key), nil
}

func (db *geocodingService) SaveLocation(ctx context.Context, canonical string, key model.LocationKey) error {
	const query = `INSERT INTO geocode_cache (address, location_key)
	VALUES (?, ?)
	ON DUPLICATE KEY UPDATE location_key = VALUES(location_key);`

	_, err := db.ExecContext(ctx, query, canonical, string(key))
	return err
}
