package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/sourcing-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the local
// and test backend; semantics match the Postgres driver.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Single connection: pragmas are per-connection, and concurrent writers
	// then queue in database/sql instead of hitting SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS events (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	customer_id TEXT NOT NULL,
	stage       TEXT NOT NULL DEFAULT 'invited',
	mode        TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS assignments (
	id                 TEXT PRIMARY KEY,
	event_id           TEXT NOT NULL REFERENCES events(id),
	carrier_id         TEXT NOT NULL,
	carrier_name       TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL DEFAULT 'invited',
	invited_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	submitted_at       DATETIME,
	awarded_at         DATETIME,
	awarded_by         TEXT NOT NULL DEFAULT '',
	not_awarded_reason TEXT NOT NULL DEFAULT '',
	lane_scope         TEXT,
	bid_docs           TEXT,
	proposed_tariff_id TEXT NOT NULL DEFAULT '',
	created_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (event_id, carrier_id)
);

CREATE TABLE IF NOT EXISTS tariff_families (
	id             TEXT PRIMARY KEY,
	customer_id    TEXT NOT NULL,
	carrier_id     TEXT NOT NULL,
	ownership_type TEXT NOT NULL DEFAULT 'primary',
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (customer_id, carrier_id, ownership_type)
);

CREATE TABLE IF NOT EXISTS tariffs (
	id           TEXT PRIMARY KEY,
	family_id    TEXT NOT NULL REFERENCES tariff_families(id),
	carrier_id   TEXT NOT NULL,
	customer_ids TEXT NOT NULL,
	csp_event_id TEXT NOT NULL,
	mode         TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'proposed',
	reference_id TEXT NOT NULL,
	effective_at DATETIME,
	expires_at   DATETIME,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS notes (
	id            TEXT PRIMARY KEY,
	assignment_id TEXT NOT NULL REFERENCES assignments(id),
	author_id     TEXT NOT NULL,
	body          TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS notifications (
	id              TEXT PRIMARY KEY,
	recipient_id    TEXT NOT NULL,
	type            TEXT NOT NULL,
	note_id         TEXT NOT NULL,
	assignment_id   TEXT NOT NULL,
	event_id        TEXT NOT NULL,
	author_id       TEXT NOT NULL,
	body            TEXT NOT NULL,
	idempotency_key TEXT NOT NULL UNIQUE,
	delivered       INTEGER NOT NULL DEFAULT 0,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS activity_log (
	id            TEXT PRIMARY KEY,
	assignment_id TEXT NOT NULL DEFAULT '',
	event_id      TEXT NOT NULL DEFAULT '',
	actor         TEXT NOT NULL,
	action        TEXT NOT NULL,
	detail        TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_assignments_event_id ON assignments(event_id);
CREATE INDEX IF NOT EXISTS idx_assignments_status ON assignments(status);
CREATE INDEX IF NOT EXISTS idx_notes_assignment_id ON notes(assignment_id);
CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id);
CREATE INDEX IF NOT EXISTS idx_activity_assignment_id ON activity_log(assignment_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateEvent(ctx context.Context, ev *model.SourcingEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Stage == "" {
		ev.Stage = model.StageInvited
	}
	now := time.Now().UTC()
	ev.CreatedAt = now
	ev.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, name, customer_id, stage, mode, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Name, ev.CustomerID, string(ev.Stage), ev.Mode, ev.CreatedAt, ev.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: create event")
}

func (s *SQLiteStore) GetEvent(ctx context.Context, id string) (*model.SourcingEvent, error) {
	ev := &model.SourcingEvent{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, customer_id, stage, mode, created_at, updated_at FROM events WHERE id = ?`, id,
	).Scan(&ev.ID, &ev.Name, &ev.CustomerID, &ev.Stage, &ev.Mode, &ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, eris.Wrapf(model.ErrNotFound, "sqlite: event %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get event %s", id)
	}
	return ev, nil
}

func (s *SQLiteStore) UpdateEventStage(ctx context.Context, id string, from, to model.EventStage) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET stage = ?, updated_at = ? WHERE id = ? AND stage = ?`,
		string(to), time.Now().UTC(), id, string(from),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update event stage %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		if _, gerr := s.GetEvent(ctx, id); gerr != nil {
			return gerr
		}
		return eris.Wrapf(model.ErrConflict, "sqlite: event %s stage changed since read", id)
	}
	return nil
}

func (s *SQLiteStore) ListEvents(ctx context.Context, limit, offset int) ([]model.SourcingEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, customer_id, stage, mode, created_at, updated_at
		FROM events ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list events")
	}
	defer rows.Close()

	var out []model.SourcingEvent
	for rows.Next() {
		var ev model.SourcingEvent
		if err := rows.Scan(&ev.ID, &ev.Name, &ev.CustomerID, &ev.Stage, &ev.Mode, &ev.CreatedAt, &ev.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan event")
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CreateAssignment(ctx context.Context, a *model.CarrierAssignment) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Status == "" {
		a.Status = model.StatusInvited
	}
	now := time.Now().UTC()
	if a.InvitedAt.IsZero() {
		a.InvitedAt = now
	}
	a.CreatedAt = now
	a.UpdatedAt = now

	laneScope, err := json.Marshal(a.LaneScope)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal lane_scope")
	}
	bidDocs, err := json.Marshal(a.BidDocs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal bid_docs")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO assignments (id, event_id, carrier_id, carrier_name, status, invited_at,
			lane_scope, bid_docs, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.EventID, a.CarrierID, a.CarrierName, string(a.Status), a.InvitedAt,
		string(laneScope), string(bidDocs), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return eris.Wrapf(model.ErrConflict, "sqlite: carrier %s already assigned to event %s", a.CarrierID, a.EventID)
	}
	return eris.Wrap(err, "sqlite: create assignment")
}

func (s *SQLiteStore) GetAssignment(ctx context.Context, id string) (*model.CarrierAssignment, error) {
	a := &model.CarrierAssignment{}
	var laneScope, bidDocs sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, event_id, carrier_id, carrier_name, status, invited_at,
			submitted_at, awarded_at, awarded_by, not_awarded_reason, lane_scope, bid_docs,
			proposed_tariff_id, created_at, updated_at
		FROM assignments WHERE id = ?`, id,
	).Scan(&a.ID, &a.EventID, &a.CarrierID, &a.CarrierName, &a.Status, &a.InvitedAt,
		&a.SubmittedAt, &a.AwardedAt, &a.AwardedBy, &a.NotAwardedReason, &laneScope, &bidDocs,
		&a.ProposedTariffID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, eris.Wrapf(model.ErrNotFound, "sqlite: assignment %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get assignment %s", id)
	}
	if laneScope.Valid && laneScope.String != "" {
		if err := json.Unmarshal([]byte(laneScope.String), &a.LaneScope); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal lane_scope")
		}
	}
	if bidDocs.Valid && bidDocs.String != "" {
		if err := json.Unmarshal([]byte(bidDocs.String), &a.BidDocs); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal bid_docs")
		}
	}
	return a, nil
}

func (s *SQLiteStore) ListAssignments(ctx context.Context, filter AssignmentFilter) ([]model.CarrierAssignment, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM assignments
		WHERE (? = '' OR event_id = ?) AND (? = '' OR status = ?)
		ORDER BY invited_at ASC LIMIT ? OFFSET ?`,
		filter.EventID, filter.EventID, string(filter.Status), string(filter.Status), limit, filter.Offset)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list assignments")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan assignment id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list assignments rows")
	}

	out := make([]model.CarrierAssignment, 0, len(ids))
	for _, id := range ids {
		a, err := s.GetAssignment(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}

func (s *SQLiteStore) CountAwarded(ctx context.Context, eventID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM assignments WHERE event_id = ? AND status = 'awarded'`, eventID,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: count awarded for event %s", eventID)
	}
	return n, nil
}

func (s *SQLiteStore) TransitionStatus(ctx context.Context, assignmentID string, t Transition) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(t.Expected)), ",")
	args := []any{string(t.To), t.StampSubmittedAt, time.Now().UTC(), t.NotAwardedReason, t.NotAwardedReason, time.Now().UTC(), assignmentID}
	for _, st := range t.Expected {
		args = append(args, string(st))
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE assignments SET
			status = ?,
			submitted_at = CASE WHEN ? AND submitted_at IS NULL THEN ? ELSE submitted_at END,
			not_awarded_reason = CASE WHEN ? <> '' THEN ? ELSE not_awarded_reason END,
			updated_at = ?
		WHERE id = ? AND status IN (`+placeholders+`)`, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: transition assignment %s", assignmentID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		if _, gerr := s.GetAssignment(ctx, assignmentID); gerr != nil {
			return gerr
		}
		return eris.Wrapf(model.ErrConflict, "sqlite: assignment %s status changed since read", assignmentID)
	}
	return nil
}

// AwardAssignment runs the award transaction. The compare-and-swap update is
// the first statement so concurrent awards serialize on the write lock; the
// loser's update matches zero rows and the transaction rolls back without
// touching the tariff tables.
func (s *SQLiteStore) AwardAssignment(ctx context.Context, p AwardParams) (*AwardOutcome, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: award: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()

	res, err := tx.ExecContext(ctx, `
		UPDATE assignments SET status = 'awarded', awarded_at = ?, awarded_by = ?, updated_at = ?
		WHERE id = ? AND status IN ('under_review', 'revision_requested')`,
		now, p.AwardedBy, now, p.AssignmentID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: award: update status")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: award: rows affected")
	}
	if n == 0 {
		// Classify: missing row, already awarded, or wrong source status.
		var status string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM assignments WHERE id = ?`, p.AssignmentID).Scan(&status)
		if err == sql.ErrNoRows {
			return nil, eris.Wrapf(model.ErrNotFound, "sqlite: award: assignment %s", p.AssignmentID)
		}
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: award: read status")
		}
		if model.AssignmentStatus(status) == model.StatusAwarded {
			return nil, eris.Wrapf(model.ErrConflict, "sqlite: assignment %s already awarded", p.AssignmentID)
		}
		return nil, eris.Wrapf(model.ErrPreconditionFailed,
			"sqlite: assignment %s is %s, award requires under_review or revision_requested", p.AssignmentID, status)
	}

	var (
		eventID, carrierID string
		laneScopeRaw       sql.NullString
	)
	err = tx.QueryRowContext(ctx,
		`SELECT event_id, carrier_id, lane_scope FROM assignments WHERE id = ?`, p.AssignmentID,
	).Scan(&eventID, &carrierID, &laneScopeRaw)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: award: read assignment")
	}

	var customerID, eventStage, eventMode string
	err = tx.QueryRowContext(ctx,
		`SELECT customer_id, stage, mode FROM events WHERE id = ?`, eventID,
	).Scan(&customerID, &eventStage, &eventMode)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, eris.Wrapf(model.ErrNotFound, "sqlite: award: event %s", eventID)
		}
		return nil, eris.Wrap(err, "sqlite: award: read event")
	}
	if model.EventStage(eventStage) != model.StageAwardFinalization {
		return nil, eris.Wrapf(model.ErrPreconditionFailed,
			"sqlite: event %s is in stage %s, award requires award_tariff_finalization", eventID, eventStage)
	}

	// Find-or-create the primary family.
	familyCreated := false
	var familyID string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM tariff_families WHERE customer_id = ? AND carrier_id = ? AND ownership_type = 'primary'`,
		customerID, carrierID).Scan(&familyID)
	switch {
	case err == sql.ErrNoRows:
		familyID = uuid.New().String()
		familyCreated = true
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tariff_families (id, customer_id, carrier_id, ownership_type, created_at)
			VALUES (?, ?, ?, 'primary', ?)`,
			familyID, customerID, carrierID, now); err != nil {
			return nil, eris.Wrap(err, "sqlite: award: create tariff family")
		}
	case err != nil:
		return nil, eris.Wrap(err, "sqlite: award: resolve tariff family")
	}

	mode := eventMode
	if laneScopeRaw.Valid && laneScopeRaw.String != "" {
		var ls model.LaneScope
		if err := json.Unmarshal([]byte(laneScopeRaw.String), &ls); err != nil {
			return nil, eris.Wrap(err, "sqlite: award: unmarshal lane_scope")
		}
		if ls.Mode != "" {
			mode = ls.Mode
		}
	}

	tariffID := uuid.New().String()
	referenceID := TariffReference(tariffID, now)
	customerIDs, err := json.Marshal([]string{customerID})
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: award: marshal customer_ids")
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO tariffs (id, family_id, carrier_id, customer_ids, csp_event_id, mode, status, reference_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 'proposed', ?, ?)`,
		tariffID, familyID, carrierID, string(customerIDs), eventID, mode, referenceID, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: award: create tariff")
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE assignments SET proposed_tariff_id = ? WHERE id = ?`, tariffID, p.AssignmentID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: award: back-link tariff")
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: award: commit")
	}

	return &AwardOutcome{
		TariffID:       tariffID,
		TariffFamilyID: familyID,
		ReferenceID:    referenceID,
		FamilyCreated:  familyCreated,
		AwardedAt:      now,
	}, nil
}

func (s *SQLiteStore) GetTariff(ctx context.Context, id string) (*model.Tariff, error) {
	t := &model.Tariff{}
	var customerIDs string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, family_id, carrier_id, customer_ids, csp_event_id, mode, status, reference_id,
			effective_at, expires_at, created_at
		FROM tariffs WHERE id = ?`, id,
	).Scan(&t.ID, &t.FamilyID, &t.CarrierID, &customerIDs, &t.CSPEventID, &t.Mode, &t.Status,
		&t.ReferenceID, &t.EffectiveAt, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, eris.Wrapf(model.ErrNotFound, "sqlite: tariff %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get tariff %s", id)
	}
	if customerIDs != "" {
		if err := json.Unmarshal([]byte(customerIDs), &t.CustomerIDs); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal customer_ids")
		}
	}
	return t, nil
}

func (s *SQLiteStore) GetTariffFamily(ctx context.Context, customerID, carrierID string, ownership model.OwnershipType) (*model.TariffFamily, error) {
	f := &model.TariffFamily{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, customer_id, carrier_id, ownership_type, created_at
		FROM tariff_families WHERE customer_id = ? AND carrier_id = ? AND ownership_type = ?`,
		customerID, carrierID, string(ownership),
	).Scan(&f.ID, &f.CustomerID, &f.CarrierID, &f.OwnershipType, &f.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, eris.Wrapf(model.ErrNotFound, "sqlite: tariff family %s/%s", customerID, carrierID)
		}
		return nil, eris.Wrap(err, "sqlite: get tariff family")
	}
	return f, nil
}

func (s *SQLiteStore) AddNote(ctx context.Context, n *model.Note) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (id, assignment_id, author_id, body, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		n.ID, n.AssignmentID, n.AuthorID, n.Body, n.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: add note")
}

func (s *SQLiteStore) ListNotes(ctx context.Context, assignmentID string) ([]model.Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, assignment_id, author_id, body, created_at
		FROM notes WHERE assignment_id = ? ORDER BY created_at ASC`, assignmentID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list notes")
	}
	defer rows.Close()

	var out []model.Note
	for rows.Next() {
		var n model.Note
		if err := rows.Scan(&n.ID, &n.AssignmentID, &n.AuthorID, &n.Body, &n.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan note")
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) EnqueueNotifications(ctx context.Context, ns []model.Notification) (int, error) {
	inserted := 0
	for i := range ns {
		n := &ns[i]
		if n.ID == "" {
			n.ID = uuid.New().String()
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = time.Now().UTC()
		}
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO notifications (id, recipient_id, type, note_id, assignment_id, event_id,
				author_id, body, idempotency_key, delivered, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
			ON CONFLICT (idempotency_key) DO NOTHING`,
			n.ID, n.RecipientID, string(n.Type), n.NoteID, n.AssignmentID, n.EventID,
			n.AuthorID, n.Body, n.IdempotencyKey, n.CreatedAt,
		)
		if err != nil {
			return inserted, eris.Wrapf(err, "sqlite: enqueue notification for %s", n.RecipientID)
		}
		rn, err := res.RowsAffected()
		if err != nil {
			return inserted, eris.Wrap(err, "sqlite: rows affected")
		}
		inserted += int(rn)
	}
	return inserted, nil
}

func (s *SQLiteStore) ListUndelivered(ctx context.Context, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recipient_id, type, note_id, assignment_id, event_id, author_id, body,
			idempotency_key, delivered, created_at
		FROM notifications WHERE delivered = 0 ORDER BY created_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list undelivered")
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Type, &n.NoteID, &n.AssignmentID, &n.EventID,
			&n.AuthorID, &n.Body, &n.IdempotencyKey, &n.Delivered, &n.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan notification")
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) MarkDelivered(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET delivered = 1 WHERE id IN (`+placeholders+`)`, args...)
	return eris.Wrap(err, "sqlite: mark delivered")
}

func (s *SQLiteStore) AppendActivity(ctx context.Context, e *model.ActivityEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	e.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_log (id, assignment_id, event_id, actor, action, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.AssignmentID, e.EventID, e.Actor, e.Action, e.Detail, e.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: append activity")
}

func (s *SQLiteStore) ListActivity(ctx context.Context, assignmentID string, limit int) ([]model.ActivityEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, assignment_id, event_id, actor, action, detail, created_at
		FROM activity_log WHERE assignment_id = ? ORDER BY created_at DESC LIMIT ?`,
		assignmentID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list activity")
	}
	defer rows.Close()

	var out []model.ActivityEntry
	for rows.Next() {
		var e model.ActivityEntry
		if err := rows.Scan(&e.ID, &e.AssignmentID, &e.EventID, &e.Actor, &e.Action, &e.Detail, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan activity")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
