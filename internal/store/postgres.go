package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/sourcing-cli/internal/db"
	"github.com/sells-group/sourcing-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_assignment": `SELECT ` + assignmentColumns + ` FROM assignments WHERE id = $1`,
	"get_event":      `SELECT id, name, customer_id, stage, mode, created_at, updated_at FROM events WHERE id = $1`,
	"count_awarded":  `SELECT count(*) FROM assignments WHERE event_id = $1 AND status = 'awarded'`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, maxConns, minConns int32) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	if maxConns <= 0 {
		maxConns = 10
	}
	if minConns <= 0 {
		minConns = 2
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS events (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	customer_id TEXT NOT NULL,
	stage       TEXT NOT NULL DEFAULT 'invited',
	mode        TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS assignments (
	id                 TEXT PRIMARY KEY,
	event_id           TEXT NOT NULL REFERENCES events(id),
	carrier_id         TEXT NOT NULL,
	carrier_name       TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL DEFAULT 'invited',
	invited_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	submitted_at       TIMESTAMPTZ,
	awarded_at         TIMESTAMPTZ,
	awarded_by         TEXT NOT NULL DEFAULT '',
	not_awarded_reason TEXT NOT NULL DEFAULT '',
	lane_scope         JSONB,
	bid_docs           JSONB,
	proposed_tariff_id TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (event_id, carrier_id)
);

CREATE TABLE IF NOT EXISTS tariff_families (
	id             TEXT PRIMARY KEY,
	customer_id    TEXT NOT NULL,
	carrier_id     TEXT NOT NULL,
	ownership_type TEXT NOT NULL DEFAULT 'primary',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (customer_id, carrier_id, ownership_type)
);

CREATE TABLE IF NOT EXISTS tariffs (
	id           TEXT PRIMARY KEY,
	family_id    TEXT NOT NULL REFERENCES tariff_families(id),
	carrier_id   TEXT NOT NULL,
	customer_ids JSONB NOT NULL,
	csp_event_id TEXT NOT NULL,
	mode         TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'proposed',
	reference_id TEXT NOT NULL,
	effective_at TIMESTAMPTZ,
	expires_at   TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS notes (
	id            TEXT PRIMARY KEY,
	assignment_id TEXT NOT NULL REFERENCES assignments(id),
	author_id     TEXT NOT NULL,
	body          TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
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
	delivered       BOOLEAN NOT NULL DEFAULT false,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS activity_log (
	id            TEXT PRIMARY KEY,
	assignment_id TEXT NOT NULL DEFAULT '',
	event_id      TEXT NOT NULL DEFAULT '',
	actor         TEXT NOT NULL,
	action        TEXT NOT NULL,
	detail        TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_assignments_event_id ON assignments(event_id);
CREATE INDEX IF NOT EXISTS idx_assignments_status ON assignments(status);
CREATE INDEX IF NOT EXISTS idx_notes_assignment_id ON notes(assignment_id);
CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id);
CREATE INDEX IF NOT EXISTS idx_notifications_undelivered ON notifications(delivered) WHERE NOT delivered;
CREATE INDEX IF NOT EXISTS idx_activity_assignment_id ON activity_log(assignment_id);
`

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const assignmentColumns = `id, event_id, carrier_id, carrier_name, status, invited_at,
	submitted_at, awarded_at, awarded_by, not_awarded_reason, lane_scope, bid_docs,
	proposed_tariff_id, created_at, updated_at`

func scanAssignment(row pgx.Row) (*model.CarrierAssignment, error) {
	a := &model.CarrierAssignment{}
	var laneScope, bidDocs []byte
	err := row.Scan(
		&a.ID, &a.EventID, &a.CarrierID, &a.CarrierName, &a.Status, &a.InvitedAt,
		&a.SubmittedAt, &a.AwardedAt, &a.AwardedBy, &a.NotAwardedReason, &laneScope, &bidDocs,
		&a.ProposedTariffID, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(laneScope) > 0 {
		if err := json.Unmarshal(laneScope, &a.LaneScope); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal lane_scope")
		}
	}
	if len(bidDocs) > 0 {
		if err := json.Unmarshal(bidDocs, &a.BidDocs); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal bid_docs")
		}
	}
	return a, nil
}

// CreateEvent inserts a sourcing event. A missing ID or stage is filled in.
func (s *PostgresStore) CreateEvent(ctx context.Context, ev *model.SourcingEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Stage == "" {
		ev.Stage = model.StageInvited
	}
	now := time.Now().UTC()
	ev.CreatedAt = now
	ev.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO events (id, name, customer_id, stage, mode, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, ev.Name, ev.CustomerID, string(ev.Stage), ev.Mode, ev.CreatedAt, ev.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: create event")
}

// GetEvent fetches an event by id.
func (s *PostgresStore) GetEvent(ctx context.Context, id string) (*model.SourcingEvent, error) {
	ev := &model.SourcingEvent{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, customer_id, stage, mode, created_at, updated_at FROM events WHERE id = $1`, id,
	).Scan(&ev.ID, &ev.Name, &ev.CustomerID, &ev.Stage, &ev.Mode, &ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "postgres: event %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get event %s", id)
	}
	return ev, nil
}

// UpdateEventStage advances an event's stage conditionally on its current
// stage, so a concurrent advancement surfaces as a conflict.
func (s *PostgresStore) UpdateEventStage(ctx context.Context, id string, from, to model.EventStage) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE events SET stage = $1, updated_at = now() WHERE id = $2 AND stage = $3`,
		string(to), id, string(from),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update event stage %s", id)
	}
	if tag.RowsAffected() == 0 {
		if _, gerr := s.GetEvent(ctx, id); gerr != nil {
			return gerr
		}
		return eris.Wrapf(model.ErrConflict, "postgres: event %s stage changed since read", id)
	}
	return nil
}

// ListEvents returns events newest first.
func (s *PostgresStore) ListEvents(ctx context.Context, limit, offset int) ([]model.SourcingEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, customer_id, stage, mode, created_at, updated_at
		FROM events ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list events")
	}
	defer rows.Close()

	var out []model.SourcingEvent
	for rows.Next() {
		var ev model.SourcingEvent
		if err := rows.Scan(&ev.ID, &ev.Name, &ev.CustomerID, &ev.Stage, &ev.Mode, &ev.CreatedAt, &ev.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan event")
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// CreateAssignment inserts a carrier assignment in status invited.
func (s *PostgresStore) CreateAssignment(ctx context.Context, a *model.CarrierAssignment) error {
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
		return eris.Wrap(err, "postgres: marshal lane_scope")
	}
	bidDocs, err := json.Marshal(a.BidDocs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal bid_docs")
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO assignments (id, event_id, carrier_id, carrier_name, status, invited_at,
			lane_scope, bid_docs, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.EventID, a.CarrierID, a.CarrierName, string(a.Status), a.InvitedAt,
		laneScope, bidDocs, a.CreatedAt, a.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return eris.Wrapf(model.ErrConflict, "postgres: carrier %s already assigned to event %s", a.CarrierID, a.EventID)
	}
	return eris.Wrap(err, "postgres: create assignment")
}

// GetAssignment fetches an assignment by id.
func (s *PostgresStore) GetAssignment(ctx context.Context, id string) (*model.CarrierAssignment, error) {
	a, err := scanAssignment(s.pool.QueryRow(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "postgres: assignment %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get assignment %s", id)
	}
	return a, nil
}

// ListAssignments returns assignments matching the filter, oldest invite first.
func (s *PostgresStore) ListAssignments(ctx context.Context, filter AssignmentFilter) ([]model.CarrierAssignment, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+assignmentColumns+` FROM assignments
		WHERE ($1 = '' OR event_id = $1) AND ($2 = '' OR status = $2)
		ORDER BY invited_at ASC LIMIT $3 OFFSET $4`,
		filter.EventID, string(filter.Status), limit, filter.Offset)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list assignments")
	}
	defer rows.Close()

	var out []model.CarrierAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan assignment")
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// CountAwarded returns the number of awarded assignments on an event.
func (s *PostgresStore) CountAwarded(ctx context.Context, eventID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM assignments WHERE event_id = $1 AND status = 'awarded'`, eventID,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: count awarded for event %s", eventID)
	}
	return n, nil
}

// TransitionStatus applies a conditional single-row status update. The write
// lands only while the stored status is one of t.Expected; otherwise the
// caller lost a race (ErrConflict) or the row is gone (ErrNotFound).
func (s *PostgresStore) TransitionStatus(ctx context.Context, assignmentID string, t Transition) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE assignments SET
			status = $1,
			submitted_at = CASE WHEN $2 AND submitted_at IS NULL THEN now() ELSE submitted_at END,
			not_awarded_reason = CASE WHEN $3 <> '' THEN $3 ELSE not_awarded_reason END,
			updated_at = now()
		WHERE id = $4 AND status = ANY($5)`,
		string(t.To), t.StampSubmittedAt, t.NotAwardedReason, assignmentID, statusStrings(t.Expected),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: transition assignment %s", assignmentID)
	}
	if tag.RowsAffected() == 0 {
		if _, gerr := s.GetAssignment(ctx, assignmentID); gerr != nil {
			return gerr
		}
		return eris.Wrapf(model.ErrConflict, "postgres: assignment %s status changed since read", assignmentID)
	}
	return nil
}

func statusStrings(statuses []model.AssignmentStatus) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}

// isSerializationFailure reports whether err is a serialization failure or
// deadlock abort. At serializable isolation the loser of a concurrent award
// surfaces as SQLSTATE 40001 rather than a zero-row CAS.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
}

// AwardAssignment executes the award as a single serializable transaction:
// a compare-and-swap on the assignment status, tariff-family find-or-create,
// tariff creation, and the proposed-tariff back-link. Either every step
// commits or none do.
func (s *PostgresStore) AwardAssignment(ctx context.Context, p AwardParams) (*AwardOutcome, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, eris.Wrap(err, "postgres: award: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Current stored state, inside the transaction — never a stale read.
	var (
		eventID, carrierID, status string
		laneScopeRaw               []byte
	)
	err = tx.QueryRow(ctx,
		`SELECT event_id, carrier_id, status, lane_scope FROM assignments WHERE id = $1`,
		p.AssignmentID,
	).Scan(&eventID, &carrierID, &status, &laneScopeRaw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "postgres: award: assignment %s", p.AssignmentID)
		}
		return nil, eris.Wrap(err, "postgres: award: read assignment")
	}

	if model.AssignmentStatus(status) == model.StatusAwarded {
		return nil, eris.Wrapf(model.ErrConflict, "postgres: assignment %s already awarded", p.AssignmentID)
	}
	if st := model.AssignmentStatus(status); st != model.StatusUnderReview && st != model.StatusRevisionRequested {
		return nil, eris.Wrapf(model.ErrPreconditionFailed,
			"postgres: assignment %s is %s, award requires under_review or revision_requested", p.AssignmentID, status)
	}

	var customerID, eventStage, eventMode string
	err = tx.QueryRow(ctx,
		`SELECT customer_id, stage, mode FROM events WHERE id = $1`, eventID,
	).Scan(&customerID, &eventStage, &eventMode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "postgres: award: event %s", eventID)
		}
		return nil, eris.Wrap(err, "postgres: award: read event")
	}
	if model.EventStage(eventStage) != model.StageAwardFinalization {
		return nil, eris.Wrapf(model.ErrPreconditionFailed,
			"postgres: event %s is in stage %s, award requires award_tariff_finalization", eventID, eventStage)
	}

	now := time.Now().UTC()

	// Step 1: compare-and-swap the status. Zero rows means a concurrent
	// award (or other transition) won the race.
	tag, err := tx.Exec(ctx, `
		UPDATE assignments SET status = 'awarded', awarded_at = $1, awarded_by = $2, updated_at = $1
		WHERE id = $3 AND status IN ('under_review', 'revision_requested')`,
		now, p.AwardedBy, p.AssignmentID,
	)
	if err != nil {
		if isSerializationFailure(err) {
			return nil, eris.Wrapf(model.ErrConflict, "postgres: lost award race for assignment %s: %v", p.AssignmentID, err)
		}
		return nil, eris.Wrap(err, "postgres: award: update status")
	}
	if tag.RowsAffected() == 0 {
		return nil, eris.Wrapf(model.ErrConflict, "postgres: lost award race for assignment %s", p.AssignmentID)
	}

	// Step 2: find-or-create the primary tariff family.
	var familyID string
	var familyCreated bool
	err = tx.QueryRow(ctx, `
		INSERT INTO tariff_families (id, customer_id, carrier_id, ownership_type, created_at)
		VALUES ($1, $2, $3, 'primary', $4)
		ON CONFLICT (customer_id, carrier_id, ownership_type)
		DO UPDATE SET ownership_type = EXCLUDED.ownership_type
		RETURNING id, (xmax = 0)`,
		uuid.New().String(), customerID, carrierID, now,
	).Scan(&familyID, &familyCreated)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: award: resolve tariff family")
	}

	// Step 3: create the proposed tariff. Mode comes from the lane scope
	// when present, else from the event.
	mode := eventMode
	if len(laneScopeRaw) > 0 {
		var ls model.LaneScope
		if err := json.Unmarshal(laneScopeRaw, &ls); err != nil {
			return nil, eris.Wrap(err, "postgres: award: unmarshal lane_scope")
		}
		if ls.Mode != "" {
			mode = ls.Mode
		}
	}

	tariffID := uuid.New().String()
	referenceID := TariffReference(tariffID, now)
	customerIDs, err := json.Marshal([]string{customerID})
	if err != nil {
		return nil, eris.Wrap(err, "postgres: award: marshal customer_ids")
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO tariffs (id, family_id, carrier_id, customer_ids, csp_event_id, mode, status, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'proposed', $7, $8)`,
		tariffID, familyID, carrierID, customerIDs, eventID, mode, referenceID, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: award: create tariff")
	}

	// Step 4: back-link the tariff on the assignment.
	_, err = tx.Exec(ctx,
		`UPDATE assignments SET proposed_tariff_id = $1 WHERE id = $2`,
		tariffID, p.AssignmentID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: award: back-link tariff")
	}

	if err := tx.Commit(ctx); err != nil {
		if isSerializationFailure(err) {
			return nil, eris.Wrapf(model.ErrConflict, "postgres: lost award race for assignment %s: %v", p.AssignmentID, err)
		}
		return nil, eris.Wrap(err, "postgres: award: commit")
	}

	return &AwardOutcome{
		TariffID:       tariffID,
		TariffFamilyID: familyID,
		ReferenceID:    referenceID,
		FamilyCreated:  familyCreated,
		AwardedAt:      now,
	}, nil
}

// GetTariff fetches a tariff by id.
func (s *PostgresStore) GetTariff(ctx context.Context, id string) (*model.Tariff, error) {
	t := &model.Tariff{}
	var customerIDs []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, family_id, carrier_id, customer_ids, csp_event_id, mode, status, reference_id,
			effective_at, expires_at, created_at
		FROM tariffs WHERE id = $1`, id,
	).Scan(&t.ID, &t.FamilyID, &t.CarrierID, &customerIDs, &t.CSPEventID, &t.Mode, &t.Status,
		&t.ReferenceID, &t.EffectiveAt, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "postgres: tariff %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get tariff %s", id)
	}
	if len(customerIDs) > 0 {
		if err := json.Unmarshal(customerIDs, &t.CustomerIDs); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal customer_ids")
		}
	}
	return t, nil
}

// GetTariffFamily fetches a family by its unique triple.
func (s *PostgresStore) GetTariffFamily(ctx context.Context, customerID, carrierID string, ownership model.OwnershipType) (*model.TariffFamily, error) {
	f := &model.TariffFamily{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, customer_id, carrier_id, ownership_type, created_at
		FROM tariff_families WHERE customer_id = $1 AND carrier_id = $2 AND ownership_type = $3`,
		customerID, carrierID, string(ownership),
	).Scan(&f.ID, &f.CustomerID, &f.CarrierID, &f.OwnershipType, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "postgres: tariff family %s/%s", customerID, carrierID)
		}
		return nil, eris.Wrap(err, "postgres: get tariff family")
	}
	return f, nil
}

// AddNote appends a note to an assignment's note log.
func (s *PostgresStore) AddNote(ctx context.Context, n *model.Note) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.CreatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notes (id, assignment_id, author_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		n.ID, n.AssignmentID, n.AuthorID, n.Body, n.CreatedAt,
	)
	return eris.Wrap(err, "postgres: add note")
}

// ListNotes returns an assignment's notes oldest first.
func (s *PostgresStore) ListNotes(ctx context.Context, assignmentID string) ([]model.Note, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, assignment_id, author_id, body, created_at
		FROM notes WHERE assignment_id = $1 ORDER BY created_at ASC`, assignmentID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list notes")
	}
	defer rows.Close()

	var out []model.Note
	for rows.Next() {
		var n model.Note
		if err := rows.Scan(&n.ID, &n.AssignmentID, &n.AuthorID, &n.Body, &n.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan note")
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// EnqueueNotifications inserts notification rows, skipping any whose
// idempotency key already exists. Returns the number actually inserted,
// so a retried fanout reports zero new rows instead of duplicating.
func (s *PostgresStore) EnqueueNotifications(ctx context.Context, ns []model.Notification) (int, error) {
	inserted := 0
	for i := range ns {
		n := &ns[i]
		if n.ID == "" {
			n.ID = uuid.New().String()
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = time.Now().UTC()
		}
		tag, err := s.pool.Exec(ctx, `
			INSERT INTO notifications (id, recipient_id, type, note_id, assignment_id, event_id,
				author_id, body, idempotency_key, delivered, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false, $10)
			ON CONFLICT (idempotency_key) DO NOTHING`,
			n.ID, n.RecipientID, string(n.Type), n.NoteID, n.AssignmentID, n.EventID,
			n.AuthorID, n.Body, n.IdempotencyKey, n.CreatedAt,
		)
		if err != nil {
			return inserted, eris.Wrapf(err, "postgres: enqueue notification for %s", n.RecipientID)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// ListUndelivered returns pending notifications oldest first.
func (s *PostgresStore) ListUndelivered(ctx context.Context, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, recipient_id, type, note_id, assignment_id, event_id, author_id, body,
			idempotency_key, delivered, created_at
		FROM notifications WHERE NOT delivered ORDER BY created_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list undelivered")
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Type, &n.NoteID, &n.AssignmentID, &n.EventID,
			&n.AuthorID, &n.Body, &n.IdempotencyKey, &n.Delivered, &n.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan notification")
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkDelivered flags notifications as delivered.
func (s *PostgresStore) MarkDelivered(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE notifications SET delivered = true WHERE id = ANY($1)`, ids)
	return eris.Wrap(err, "postgres: mark delivered")
}

// AppendActivity writes one audit-trail entry.
func (s *PostgresStore) AppendActivity(ctx context.Context, e *model.ActivityEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	e.CreatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO activity_log (id, assignment_id, event_id, actor, action, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.AssignmentID, e.EventID, e.Actor, e.Action, e.Detail, e.CreatedAt,
	)
	return eris.Wrap(err, "postgres: append activity")
}

// ListActivity returns an assignment's audit entries newest first.
func (s *PostgresStore) ListActivity(ctx context.Context, assignmentID string, limit int) ([]model.ActivityEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, assignment_id, event_id, actor, action, detail, created_at
		FROM activity_log WHERE assignment_id = $1 ORDER BY created_at DESC LIMIT $2`,
		assignmentID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list activity")
	}
	defer rows.Close()

	var out []model.ActivityEntry
	for rows.Next() {
		var e model.ActivityEntry
		if err := rows.Scan(&e.ID, &e.AssignmentID, &e.EventID, &e.Actor, &e.Action, &e.Detail, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan activity")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
