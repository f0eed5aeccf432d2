package storage

import (
	"context"
	"fmt"
	"time"
)

// InsertReading archives one parameter observation.
func (p *PostgresClient) InsertReading(ctx context.Context, r Reading) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO readings (module, parameter, channel, digital, analog, taken_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.Module, r.Parameter, r.Channel, r.Digital, r.Analog, r.TakenAt)

	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}

	return nil
}

// RecentReadings returns the latest readings for one (module, parameter,
// channel) entry, newest first.
func (p *PostgresClient) RecentReadings(ctx context.Context, module, parameter string, channel, limit int) ([]Reading, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := p.pool.Query(ctx, `
		SELECT id, module, parameter, channel, digital, analog, taken_at
		FROM readings
		WHERE module = $1 AND parameter = $2 AND channel = $3
		ORDER BY taken_at DESC
		LIMIT $4
	`, module, parameter, channel, limit)

	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var readings []Reading
	for rows.Next() {
		var r Reading
		if err := rows.Scan(&r.ID, &r.Module, &r.Parameter, &r.Channel,
			&r.Digital, &r.Analog, &r.TakenAt); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, r)
	}

	return readings, rows.Err()
}

// InsertEvent records a module event.
func (p *PostgresClient) InsertEvent(ctx context.Context, e ModuleEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO module_events (module, kind, parameter, channel, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.Module, e.Kind, e.Parameter, e.Channel, e.Detail, e.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	return nil
}

// RecentEvents returns the latest events for a module, newest first.
func (p *PostgresClient) RecentEvents(ctx context.Context, module string, limit int) ([]ModuleEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := p.pool.Query(ctx, `
		SELECT id, module, kind, COALESCE(parameter, ''), channel, COALESCE(detail, ''), created_at
		FROM module_events
		WHERE module = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, module, limit)

	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []ModuleEvent
	for rows.Next() {
		var e ModuleEvent
		if err := rows.Scan(&e.ID, &e.Module, &e.Kind, &e.Parameter,
			&e.Channel, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}

	return events, rows.Err()
}
