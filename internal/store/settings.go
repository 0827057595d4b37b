package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/atapcerdas/atapbot/internal/schema"
)

// DefaultContacts is used whenever the settings lookup fails or a key is
// missing. Rendered handoff messages must never lack contact details.
var DefaultContacts = schema.ContactSettings{
	WhatsApp:       "+62 812-0000-0000",
	Email:          "halo@atapcerdas.id",
	Address:        "Jl. Raya Industri No. 12, Bekasi",
	OperatingHours: "Senin-Sabtu 08.00-17.00 WIB",
}

// GetContactSettings reads the contact key-value settings, substituting the
// static defaults for missing keys. Lookup failure is recoverable: the
// defaults are returned along with the error for logging.
func (s *Store) GetContactSettings(ctx context.Context) (schema.ContactSettings, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, value FROM contact_settings`)
	if err != nil {
		return DefaultContacts, fmt.Errorf("read contact settings: %w", err)
	}
	defer rows.Close()

	out := DefaultContacts
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return DefaultContacts, fmt.Errorf("scan contact setting: %w", err)
		}
		if value == "" {
			continue
		}
		switch key {
		case "whatsapp":
			out.WhatsApp = value
		case "email":
			out.Email = value
		case "address":
			out.Address = value
		case "operating_hours":
			out.OperatingHours = value
		default:
			s.logger.Debug("unknown contact setting", zap.String("key", key))
		}
	}
	if err := rows.Err(); err != nil {
		return DefaultContacts, fmt.Errorf("iterate contact settings: %w", err)
	}
	return out, nil
}

// SetContactSetting upserts one contact key.
func (s *Store) SetContactSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO contact_settings (key, value) VALUES ($1, $2)
        ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
    `, key, value)
	if err != nil {
		return fmt.Errorf("set contact setting: %w", err)
	}
	return nil
}
