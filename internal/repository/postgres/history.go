package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kirinyoku/cineseat/internal/domain"
)

type HistoryRepo struct {
	db DB
}

func (r *HistoryRepo) Append(ctx context.Context, entries ...domain.TicketHistory) error {
	const op = "postgres.HistoryRepo.Append"

	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(
			`INSERT INTO ticket_history(ticket_id, old_status, new_status, action, action_by, note, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			e.TicketID, e.OldStatus, e.NewStatus, e.Action, e.ActionBy, e.Note, e.CreatedAt,
		)
	}

	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// ListByTicket returns the audit trail of one ticket, newest first.
func (r *HistoryRepo) ListByTicket(ctx context.Context, ticketID uuid.UUID) ([]domain.TicketHistory, error) {
	const op = "postgres.HistoryRepo.ListByTicket"

	rows, err := r.db.Query(ctx,
		`SELECT id, ticket_id, old_status, new_status, action, action_by, note, created_at
		 FROM ticket_history
		 WHERE ticket_id = $1
		 ORDER BY created_at DESC, id DESC`,
		ticketID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TicketHistory, error) {
		var h domain.TicketHistory
		err := row.Scan(&h.ID, &h.TicketID, &h.OldStatus, &h.NewStatus, &h.Action, &h.ActionBy, &h.Note, &h.CreatedAt)
		return h, err
	})
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

// List is the box-office audit query. Every filter field is optional.
func (r *HistoryRepo) List(ctx context.Context, f domain.HistoryFilter) ([]domain.HistoryRecord, error) {
	const op = "postgres.HistoryRepo.List"

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.BranchID != nil {
		where = append(where, "s.branch_id = "+arg(*f.BranchID))
	}
	if f.Day != nil {
		y, m, d := f.Day.UTC().Date()
		start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		where = append(where, "h.created_at >= "+arg(start))
		where = append(where, "h.created_at < "+arg(start.AddDate(0, 0, 1)))
	}
	if f.ActionBy != "" {
		where = append(where, "h.action_by = "+arg(f.ActionBy))
	}
	if f.Action != "" {
		where = append(where, "h.action = "+arg(f.Action))
	}

	var sb strings.Builder
	sb.WriteString(`SELECT h.id, h.ticket_id, h.old_status, h.new_status, h.action, h.action_by, h.note, h.created_at,
	       t.ticket_number, t.seat_label, s.id, s.branch_id, s.starts_at
	 FROM ticket_history h
	 JOIN tickets t ON t.id = h.ticket_id
	 JOIN showtimes s ON s.id = t.showtime_id`)
	if len(where) > 0 {
		sb.WriteString("\n WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString("\n ORDER BY h.created_at DESC, h.id DESC")
	if f.Limit > 0 {
		sb.WriteString("\n LIMIT " + arg(f.Limit))
	}
	if f.Offset > 0 {
		sb.WriteString("\n OFFSET " + arg(f.Offset))
	}

	rows, err := r.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.HistoryRecord, error) {
		var h domain.HistoryRecord
		err := row.Scan(
			&h.ID, &h.TicketID, &h.OldStatus, &h.NewStatus, &h.Action, &h.ActionBy, &h.Note, &h.CreatedAt,
			&h.TicketNumber, &h.SeatLabel, &h.ShowtimeID, &h.BranchID, &h.StartsAt,
		)
		return h, err
	})
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}
