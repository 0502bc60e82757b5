package repository

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/ferreiralabs/zapcrm-backend/internal/model"
)

type SettingRepositoryInterface interface {
	// Pacing resolves the company's pacing settings, falling back to the
	// static defaults for keys that are absent or malformed.
	Pacing(ctx context.Context, companyID int) (model.PacingSettings, error)
}

type SettingRepository struct {
	DB *sql.DB
}

// Setting keys as stored in the settings table.
const (
	keyRandomInterval      = "randomMessageInterval"
	keyLongerIntervalAfter = "longerIntervalAfter"
	keyGreaterInterval     = "greaterInterval"
	keyFixedInterval       = "fixedMessageInterval"
)

func (r *SettingRepository) Pacing(ctx context.Context, companyID int) (model.PacingSettings, error) {
	pacing := model.DefaultPacing()

	query := `
        SELECT key, value FROM settings
        WHERE company_id = $1 AND key IN ($2, $3, $4, $5)
    `
	rows, err := r.DB.QueryContext(ctx, query, companyID,
		keyRandomInterval, keyLongerIntervalAfter, keyGreaterInterval, keyFixedInterval)
	if err != nil {
		return pacing, err
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return pacing, err
		}
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			continue
		}
		switch key {
		case keyRandomInterval:
			pacing.RandomMessageInterval = n
		case keyLongerIntervalAfter:
			pacing.LongerIntervalAfter = n
		case keyGreaterInterval:
			pacing.GreaterInterval = n
		case keyFixedInterval:
			pacing.FixedMessageInterval = n
		}
	}
	return pacing, rows.Err()
}

var _ SettingRepositoryInterface = (*SettingRepository)(nil)
