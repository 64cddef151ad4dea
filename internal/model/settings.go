package model

import "time"

// FrontConfig is a payment_front_configs row: the public front-end that
// serves payment pages. At most one row is expected to be active.
type FrontConfig struct {
	ID                uint64    `db:"id"`                  // payment_front_configs.id
	Name              string    `db:"name"`                // payment_front_configs.name
	BaseURL           string    `db:"base_url"`            // payment_front_configs.base_url
	PaymentPath       string    `db:"payment_path"`        // payment_front_configs.payment_path
	Active            bool      `db:"active"`              // payment_front_configs.active
	AutoSendReminders bool      `db:"auto_send_reminders"` // payment_front_configs.auto_send_reminders
	UpdatedAt         time.Time `db:"updated_at"`          // payment_front_configs.updated_at
}

// SystemParameter is a string key/value business setting.
type SystemParameter struct {
	Key       string    `db:"param_key"`  // system_parameters.param_key
	Value     string    `db:"value"`      // system_parameters.value
	UpdatedAt time.Time `db:"updated_at"` // system_parameters.updated_at
}
