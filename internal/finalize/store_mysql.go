package finalize

import (
    "context"
    "database/sql"
    "time"

    "github.com/novinclub/benefits-server/internal/model"
    "github.com/novinclub/benefits-server/internal/repository"
)

// SQLStore implements Store on top of the MySQL repositories.  It is the
// production persistence collaborator; tests substitute mocks.
type SQLStore struct {
    db           *sql.DB
    reservations *repository.ReservationRepo
    tours        *repository.TourRepo
}

// NewSQLStore wires a SQLStore over the shared database handle.
func NewSQLStore(db *sql.DB, reservations *repository.ReservationRepo, tours *repository.TourRepo) *SQLStore {
    return &SQLStore{db: db, reservations: reservations, tours: tours}
}

// Begin opens a transaction scope.
func (s *SQLStore) Begin(ctx context.Context) (Tx, error) {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    return &sqlTx{tx: tx, reservations: s.reservations, tours: s.tours}, nil
}

type sqlTx struct {
    tx           *sql.Tx
    reservations *repository.ReservationRepo
    tours        *repository.TourRepo
    done         bool
}

func (t *sqlTx) Reservation(ctx context.Context, id uint64) (*model.Reservation, error) {
    return t.reservations.GetByIDTx(ctx, t.tx, id, true)
}

func (t *sqlTx) Tour(ctx context.Context, id uint64) (*model.Tour, error) {
    return t.tours.GetByIDTx(ctx, t.tx, id, false)
}

// LockTour takes the tour's row lock for the remainder of the
// transaction.  Concurrent finalizations of different reservations on the
// same tour queue here, which closes the check-then-act race on the
// aggregate capacity counts.
func (t *sqlTx) LockTour(ctx context.Context, tourID uint64) error {
    const q = `SELECT id FROM tours WHERE id = ? FOR UPDATE`
    var id uint64
    return t.tx.QueryRowContext(ctx, q, tourID).Scan(&id)
}

func (t *sqlTx) CountActiveParticipants(ctx context.Context, tourID uint64, windowID *uint64, excludeReservationID uint64) (int, error) {
    return t.reservations.CountActiveParticipantsTx(ctx, t.tx, tourID, windowID, excludeReservationID)
}

func (t *sqlTx) OtherActiveReservations(ctx context.Context, tourID uint64, nationalID string, excludeReservationID uint64) ([]repository.ActiveReservationSummary, error) {
    return t.reservations.OtherActiveReservationsTx(ctx, t.tx, tourID, nationalID, excludeReservationID)
}

func (t *sqlTx) UpdateParticipantAmounts(ctx context.Context, participants []model.Participant) error {
    return t.reservations.UpdateParticipantAmountsTx(ctx, t.tx, participants)
}

func (t *sqlTx) InsertSnapshots(ctx context.Context, snaps []model.PriceSnapshot) error {
    return t.reservations.InsertSnapshotsTx(ctx, t.tx, snaps)
}

func (t *sqlTx) MarkHeld(ctx context.Context, res *model.Reservation, billID uint64, billNumber string, total int64, expiresAt time.Time) error {
    return t.reservations.MarkHeldTx(ctx, t.tx, res, billID, billNumber, total, expiresAt)
}

func (t *sqlTx) Commit() error {
    t.done = true
    return t.tx.Commit()
}

func (t *sqlTx) Rollback() error {
    if t.done {
        return nil
    }
    t.done = true
    return t.tx.Rollback()
}
