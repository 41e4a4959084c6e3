package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sourcing-cli/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seedEvent(t *testing.T, s Store, stage model.EventStage) *model.SourcingEvent {
	t.Helper()
	ev := &model.SourcingEvent{
		Name:       "Midwest FTL 2026",
		CustomerID: "cust-1",
		Stage:      stage,
		Mode:       "ftl",
	}
	require.NoError(t, s.CreateEvent(context.Background(), ev))
	return ev
}

func seedAssignment(t *testing.T, s Store, eventID, carrierID string, status model.AssignmentStatus) *model.CarrierAssignment {
	t.Helper()
	ctx := context.Background()
	a := &model.CarrierAssignment{EventID: eventID, CarrierID: carrierID, CarrierName: "Carrier " + carrierID}
	require.NoError(t, s.CreateAssignment(ctx, a))
	if status != model.StatusInvited {
		require.NoError(t, s.TransitionStatus(ctx, a.ID, Transition{
			To:               status,
			Expected:         model.ActiveStatuses,
			StampSubmittedAt: true,
		}))
	}
	got, err := s.GetAssignment(ctx, a.ID)
	require.NoError(t, err)
	return got
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("CreateAndGetEvent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		ev := seedEvent(t, s, model.StageInvited)
		assert.NotEmpty(t, ev.ID)

		got, err := s.GetEvent(ctx, ev.ID)
		require.NoError(t, err)
		assert.Equal(t, "Midwest FTL 2026", got.Name)
		assert.Equal(t, model.StageInvited, got.Stage)
		assert.Equal(t, "ftl", got.Mode)
	})

	t.Run("GetEventNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetEvent(context.Background(), "nonexistent")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("UpdateEventStage", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		ev := seedEvent(t, s, model.StagePlanning)
		require.NoError(t, s.UpdateEventStage(ctx, ev.ID, model.StagePlanning, model.StageRFPSent))

		got, err := s.GetEvent(ctx, ev.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StageRFPSent, got.Stage)

		// Stale from-stage loses.
		err = s.UpdateEventStage(ctx, ev.ID, model.StagePlanning, model.StageRFPSent)
		assert.ErrorIs(t, err, model.ErrConflict)
	})

	t.Run("CreateAssignmentDuplicateCarrier", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		ev := seedEvent(t, s, model.StageInvited)
		seedAssignment(t, s, ev.ID, "carrier-1", model.StatusInvited)

		err := s.CreateAssignment(ctx, &model.CarrierAssignment{EventID: ev.ID, CarrierID: "carrier-1"})
		assert.ErrorIs(t, err, model.ErrConflict)
	})

	t.Run("TransitionStampsSubmittedAtOnce", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		ev := seedEvent(t, s, model.StageBidsReceived)
		a := seedAssignment(t, s, ev.ID, "carrier-1", model.StatusInvited)
		require.Nil(t, a.SubmittedAt)

		require.NoError(t, s.TransitionStatus(ctx, a.ID, Transition{
			To:               model.StatusSubmitted,
			Expected:         []model.AssignmentStatus{model.StatusInvited},
			StampSubmittedAt: true,
		}))
		got, err := s.GetAssignment(ctx, a.ID)
		require.NoError(t, err)
		require.NotNil(t, got.SubmittedAt)
		first := *got.SubmittedAt

		// Bounce out and back in; the stamp must not move.
		require.NoError(t, s.TransitionStatus(ctx, a.ID, Transition{
			To:       model.StatusUnderReview,
			Expected: []model.AssignmentStatus{model.StatusSubmitted},
		}))
		require.NoError(t, s.TransitionStatus(ctx, a.ID, Transition{
			To:               model.StatusSubmitted,
			Expected:         []model.AssignmentStatus{model.StatusUnderReview},
			StampSubmittedAt: true,
		}))

		got, err = s.GetAssignment(ctx, a.ID)
		require.NoError(t, err)
		require.NotNil(t, got.SubmittedAt)
		assert.True(t, got.SubmittedAt.Equal(first), "submitted_at must keep its first value")
	})

	t.Run("TransitionExpectedMismatch", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		ev := seedEvent(t, s, model.StageBidsReceived)
		a := seedAssignment(t, s, ev.ID, "carrier-1", model.StatusSubmitted)

		err := s.TransitionStatus(ctx, a.ID, Transition{
			To:       model.StatusUnderReview,
			Expected: []model.AssignmentStatus{model.StatusInvited},
		})
		assert.ErrorIs(t, err, model.ErrConflict)
	})

	t.Run("TransitionNotFound", func(t *testing.T) {
		s := newStore(t)
		err := s.TransitionStatus(context.Background(), "nonexistent", Transition{
			To:       model.StatusSubmitted,
			Expected: model.ActiveStatuses,
		})
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("AwardHappyPath", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		ev := seedEvent(t, s, model.StageAwardFinalization)
		a := seedAssignment(t, s, ev.ID, "carrier-1", model.StatusUnderReview)

		out, err := s.AwardAssignment(ctx, AwardParams{AssignmentID: a.ID, AwardedBy: "user-9"})
		require.NoError(t, err)
		assert.True(t, out.FamilyCreated)
		assert.NotEmpty(t, out.TariffID)
		assert.Contains(t, out.ReferenceID, "TRF-")

		got, err := s.GetAssignment(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusAwarded, got.Status)
		assert.Equal(t, "user-9", got.AwardedBy)
		require.NotNil(t, got.AwardedAt)
		assert.Equal(t, out.TariffID, got.ProposedTariffID)

		tariff, err := s.GetTariff(ctx, out.TariffID)
		require.NoError(t, err)
		assert.Equal(t, model.TariffProposed, tariff.Status)
		assert.Equal(t, out.TariffFamilyID, tariff.FamilyID)
		assert.Equal(t, ev.ID, tariff.CSPEventID)
		assert.Equal(t, "ftl", tariff.Mode)
		assert.Equal(t, []string{"cust-1"}, tariff.CustomerIDs)

		family, err := s.GetTariffFamily(ctx, "cust-1", "carrier-1", model.OwnershipPrimary)
		require.NoError(t, err)
		assert.Equal(t, out.TariffFamilyID, family.ID)
	})

	t.Run("AwardReusesExistingFamily", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		ev := seedEvent(t, s, model.StageAwardFinalization)
		a1 := seedAssignment(t, s, ev.ID, "carrier-1", model.StatusUnderReview)
		out1, err := s.AwardAssignment(ctx, AwardParams{AssignmentID: a1.ID, AwardedBy: "user-9"})
		require.NoError(t, err)
		assert.True(t, out1.FamilyCreated)

		// Second event for the same customer and carrier.
		ev2 := seedEvent(t, s, model.StageAwardFinalization)
		a2 := seedAssignment(t, s, ev2.ID, "carrier-1", model.StatusRevisionRequested)
		out2, err := s.AwardAssignment(ctx, AwardParams{AssignmentID: a2.ID, AwardedBy: "user-9"})
		require.NoError(t, err)
		assert.False(t, out2.FamilyCreated)
		assert.Equal(t, out1.TariffFamilyID, out2.TariffFamilyID)
		assert.NotEqual(t, out1.TariffID, out2.TariffID)
	})

	t.Run("AwardAlreadyAwarded", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		ev := seedEvent(t, s, model.StageAwardFinalization)
		a := seedAssignment(t, s, ev.ID, "carrier-1", model.StatusUnderReview)

		_, err := s.AwardAssignment(ctx, AwardParams{AssignmentID: a.ID, AwardedBy: "user-9"})
		require.NoError(t, err)

		_, err = s.AwardAssignment(ctx, AwardParams{AssignmentID: a.ID, AwardedBy: "user-9"})
		assert.ErrorIs(t, err, model.ErrConflict)

		// Exactly one tariff and one back-link survive.
		got, err := s.GetAssignment(ctx, a.ID)
		require.NoError(t, err)
		assert.NotEmpty(t, got.ProposedTariffID)
	})

	t.Run("AwardWrongStatus", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		ev := seedEvent(t, s, model.StageAwardFinalization)
		a := seedAssignment(t, s, ev.ID, "carrier-1", model.StatusInvited)

		_, err := s.AwardAssignment(ctx, AwardParams{AssignmentID: a.ID, AwardedBy: "user-9"})
		assert.ErrorIs(t, err, model.ErrPreconditionFailed)

		got, err := s.GetAssignment(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusInvited, got.Status)
		assert.Empty(t, got.ProposedTariffID)
	})

	t.Run("AwardWrongStage", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		ev := seedEvent(t, s, model.StageBidsReceived)
		a := seedAssignment(t, s, ev.ID, "carrier-1", model.StatusUnderReview)

		_, err := s.AwardAssignment(ctx, AwardParams{AssignmentID: a.ID, AwardedBy: "user-9"})
		assert.ErrorIs(t, err, model.ErrPreconditionFailed)

		// Status flip must not survive the rollback.
		got, err := s.GetAssignment(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusUnderReview, got.Status)
	})

	t.Run("AwardNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.AwardAssignment(context.Background(), AwardParams{AssignmentID: "nonexistent", AwardedBy: "user-9"})
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("ConcurrentAwardSingleWinner", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		ev := seedEvent(t, s, model.StageAwardFinalization)
		a := seedAssignment(t, s, ev.ID, "carrier-1", model.StatusUnderReview)

		const n = 8
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = s.AwardAssignment(ctx, AwardParams{AssignmentID: a.ID, AwardedBy: "user-9"})
			}(i)
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
			} else {
				assert.ErrorIs(t, err, model.ErrConflict)
			}
		}
		assert.Equal(t, 1, wins, "exactly one award must win")

		n2, err := s.CountAwarded(ctx, ev.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n2)
	})

	t.Run("NotAwardedReasonPersists", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		ev := seedEvent(t, s, model.StageAwardFinalization)
		a := seedAssignment(t, s, ev.ID, "carrier-1", model.StatusUnderReview)

		require.NoError(t, s.TransitionStatus(ctx, a.ID, Transition{
			To:               model.StatusNotAwarded,
			Expected:         model.ActiveStatuses,
			NotAwardedReason: "rates 12% above target",
		}))

		got, err := s.GetAssignment(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusNotAwarded, got.Status)
		assert.Equal(t, "rates 12% above target", got.NotAwardedReason)
	})

	t.Run("ListAssignmentsFilter", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		ev := seedEvent(t, s, model.StageBidsReceived)
		seedAssignment(t, s, ev.ID, "carrier-1", model.StatusInvited)
		seedAssignment(t, s, ev.ID, "carrier-2", model.StatusSubmitted)
		seedAssignment(t, s, ev.ID, "carrier-3", model.StatusSubmitted)

		all, err := s.ListAssignments(ctx, AssignmentFilter{EventID: ev.ID})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		submitted, err := s.ListAssignments(ctx, AssignmentFilter{EventID: ev.ID, Status: model.StatusSubmitted})
		require.NoError(t, err)
		assert.Len(t, submitted, 2)
	})

	t.Run("LaneScopeRoundTrip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		ev := seedEvent(t, s, model.StageInvited)
		a := &model.CarrierAssignment{
			EventID:   ev.ID,
			CarrierID: "carrier-1",
			LaneScope: model.LaneScope{
				Origins:      []string{"Chicago, IL"},
				Destinations: []string{"Dallas, TX"},
				Mode:         "reefer",
				AnnualVolume: 1200,
				VolumeUnit:   "loads",
			},
		}
		require.NoError(t, s.CreateAssignment(ctx, a))

		got, err := s.GetAssignment(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, a.LaneScope, got.LaneScope)
	})

	t.Run("NotesAndActivity", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		ev := seedEvent(t, s, model.StageBidsReceived)
		a := seedAssignment(t, s, ev.ID, "carrier-1", model.StatusSubmitted)

		note := &model.Note{AssignmentID: a.ID, AuthorID: "user-1", Body: "strong lane coverage"}
		require.NoError(t, s.AddNote(ctx, note))
		assert.NotEmpty(t, note.ID)

		notes, err := s.ListNotes(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, notes, 1)
		assert.Equal(t, "strong lane coverage", notes[0].Body)

		require.NoError(t, s.AppendActivity(ctx, &model.ActivityEntry{
			AssignmentID: a.ID,
			EventID:      ev.ID,
			Actor:        "user-1",
			Action:       model.ActionNoteAdded,
		}))
		entries, err := s.ListActivity(ctx, a.ID, 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, model.ActionNoteAdded, entries[0].Action)
	})

	t.Run("NotificationIdempotency", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		ns := []model.Notification{
			{
				RecipientID:    "user-2",
				Type:           model.NotificationMention,
				NoteID:         "note-1",
				AssignmentID:   "assign-1",
				EventID:        "event-1",
				AuthorID:       "user-1",
				Body:           "@Jane Doe please review",
				IdempotencyKey: model.NotificationKey("note-1", "user-2"),
			},
			{
				RecipientID:    "user-3",
				Type:           model.NotificationMention,
				NoteID:         "note-1",
				AssignmentID:   "assign-1",
				EventID:        "event-1",
				AuthorID:       "user-1",
				Body:           "@Jane Doe please review",
				IdempotencyKey: model.NotificationKey("note-1", "user-3"),
			},
		}

		inserted, err := s.EnqueueNotifications(ctx, ns)
		require.NoError(t, err)
		assert.Equal(t, 2, inserted)

		// Retry inserts nothing new.
		for i := range ns {
			ns[i].ID = ""
		}
		inserted, err = s.EnqueueNotifications(ctx, ns)
		require.NoError(t, err)
		assert.Equal(t, 0, inserted)

		pending, err := s.ListUndelivered(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 2)

		require.NoError(t, s.MarkDelivered(ctx, []string{pending[0].ID}))
		pending, err = s.ListUndelivered(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, pending, 1)
	})
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func TestTariffReference(t *testing.T) {
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	ref := TariffReference("a1b2c3d4-e5f6-7890-abcd-ef1234567890", at)
	assert.Equal(t, "TRF-2026-A1B2C3", ref)

	// Deterministic for the same tariff.
	assert.Equal(t, ref, TariffReference("a1b2c3d4-e5f6-7890-abcd-ef1234567890", at))
}
