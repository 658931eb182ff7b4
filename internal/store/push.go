package store

import (
	"database/sql"
	"fmt"

	"github.com/cairnhealth/cairn/internal/model"
)

type PushStore struct {
	db *sql.DB
}

func NewPushStore(db *sql.DB) *PushStore {
	return &PushStore{db: db}
}

const subColumns = `id, user_uid, endpoint, p256dh_key, auth_key, device_name, created_at`

func (s *PushStore) CreateSubscription(userUID, endpoint, p256dh, auth, deviceName string) (*model.PushSubscription, error) {
	result, err := s.db.Exec(
		`INSERT INTO push_subscriptions (user_uid, endpoint, p256dh_key, auth_key, device_name)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET p256dh_key = excluded.p256dh_key, auth_key = excluded.auth_key, device_name = excluded.device_name`,
		userUID, endpoint, p256dh, auth, deviceName,
	)
	if err != nil {
		return nil, fmt.Errorf("create push subscription: %w", err)
	}
	id, _ := result.LastInsertId()

	// LastInsertId may be 0 on conflict update; re-query by endpoint
	if id == 0 {
		return s.getByEndpoint(endpoint)
	}
	return s.GetByID(id)
}

func (s *PushStore) GetByID(id int64) (*model.PushSubscription, error) {
	row := s.db.QueryRow(`SELECT `+subColumns+` FROM push_subscriptions WHERE id = ?`, id)
	return scanSubscription(row)
}

func (s *PushStore) getByEndpoint(endpoint string) (*model.PushSubscription, error) {
	row := s.db.QueryRow(`SELECT `+subColumns+` FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	return scanSubscription(row)
}

func (s *PushStore) ListByUser(userUID string) ([]model.PushSubscription, error) {
	rows, err := s.db.Query(
		`SELECT `+subColumns+` FROM push_subscriptions WHERE user_uid = ? ORDER BY created_at DESC`,
		userUID,
	)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []model.PushSubscription
	for rows.Next() {
		var sub model.PushSubscription
		if err := rows.Scan(&sub.ID, &sub.UserUID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey,
			&sub.DeviceName, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *PushStore) DeleteSubscription(id int64, userUID string) error {
	_, err := s.db.Exec(`DELETE FROM push_subscriptions WHERE id = ? AND user_uid = ?`, id, userUID)
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return nil
}

// DeleteByEndpoint drops a subscription the push service reported as expired.
func (s *PushStore) DeleteByEndpoint(endpoint string) error {
	_, err := s.db.Exec(`DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	if err != nil {
		return fmt.Errorf("delete push subscription by endpoint: %w", err)
	}
	return nil
}

func scanSubscription(row *sql.Row) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := row.Scan(&sub.ID, &sub.UserUID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey,
		&sub.DeviceName, &sub.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get push subscription: %w", err)
	}
	return &sub, nil
}
