/*
loan.go - Row operations for loan terms and scheduled payments

InsertLoanTerm is a plain INSERT so the unique index on
credit_subline_id can fire; violations surface as
loan.ErrDuplicateLoanTerm. Schedule rows are bulk-inserted inside the
caller's transaction so a half-written schedule can never commit.
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/althea/credit-engine/amortization"
	"github.com/althea/credit-engine/lifecycle"
	"github.com/althea/credit-engine/loan"
)

// =============================================================================
// LOAN TERMS
// =============================================================================

const loanTermColumns = `id, credit_subline_id, term_length, repayment_frequency,
		payment_due_day, start_date, status, created_at, updated_at`

func (s queries) GetLoanTerm(ctx context.Context, id string) (*loan.LoanTerm, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+loanTermColumns+`
		FROM loan_terms WHERE id = ?
	`, id)

	term, err := scanLoanTerm(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loan term %s: %w", id, lifecycle.ErrNotFound)
	}
	return term, err
}

func (s queries) GetLoanTermBySubline(ctx context.Context, sublineID string) (*loan.LoanTerm, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+loanTermColumns+`
		FROM loan_terms WHERE credit_subline_id = ?
	`, sublineID)

	term, err := scanLoanTerm(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loan term for subline %s: %w", sublineID, lifecycle.ErrNotFound)
	}
	return term, err
}

func (s queries) InsertLoanTerm(ctx context.Context, term *loan.LoanTerm) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO loan_terms (`+loanTermColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		term.ID,
		term.CreditSublineID,
		term.TermLength,
		string(term.Frequency),
		term.PaymentDueDay,
		formatTime(term.StartDate),
		string(term.Status),
		formatTime(term.Created),
		formatTime(term.Updated),
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("subline %s: %w", term.CreditSublineID, loan.ErrDuplicateLoanTerm)
	}
	if err != nil {
		return fmt.Errorf("failed to insert loan term %s: %w", term.ID, err)
	}
	return nil
}

func (s queries) UpdateLoanTerm(ctx context.Context, term *loan.LoanTerm) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE loan_terms
		SET term_length = ?, repayment_frequency = ?, payment_due_day = ?,
			start_date = ?, status = ?, updated_at = ?
		WHERE id = ?
	`,
		term.TermLength,
		string(term.Frequency),
		term.PaymentDueDay,
		formatTime(term.StartDate),
		string(term.Status),
		formatTime(term.Updated),
		term.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update loan term %s: %w", term.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update loan term %s: %w", term.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("loan term %s: %w", term.ID, lifecycle.ErrNotFound)
	}
	return nil
}

func scanLoanTerm(row rowScanner) (*loan.LoanTerm, error) {
	var (
		term                   loan.LoanTerm
		freqStr, statusStr     string
		startStr               string
		createdStr, updatedStr string
	)
	if err := row.Scan(&term.ID, &term.CreditSublineID, &term.TermLength, &freqStr,
		&term.PaymentDueDay, &startStr, &statusStr, &createdStr, &updatedStr); err != nil {
		return nil, err
	}

	term.Frequency = amortization.Frequency(freqStr)
	term.Status = loan.TermStatus(statusStr)

	var err error
	if term.StartDate, err = parseTime(startStr); err != nil {
		return nil, err
	}
	if term.Created, err = parseTime(createdStr); err != nil {
		return nil, err
	}
	if term.Updated, err = parseTime(updatedStr); err != nil {
		return nil, err
	}
	return &term, nil
}

// =============================================================================
// SCHEDULED PAYMENTS
// =============================================================================

const scheduledPaymentColumns = `id, loan_term_id, due_date, amount_due,
		principal_component, interest_component, payment_status, actual_payment_date`

func (s queries) InsertScheduledPayments(ctx context.Context, payments []loan.ScheduledPayment) error {
	if len(payments) == 0 {
		return nil
	}

	// Single multi-row insert. Schedules top out at a few hundred rows,
	// well under SQLite's variable limit.
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`INSERT INTO scheduled_payments (` + scheduledPaymentColumns + `) VALUES `)
	for i, p := range payments {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			p.ID,
			p.LoanTermID,
			formatTime(p.DueDate),
			p.AmountDue.String(),
			p.PrincipalComponent.String(),
			p.InterestComponent.String(),
			string(p.Status),
			nullTime(p.ActualPaymentDate),
		)
	}

	if _, err := s.q.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("failed to insert scheduled payments: %w", err)
	}
	return nil
}

func (s queries) ListScheduledPayments(ctx context.Context, loanTermID string) ([]loan.ScheduledPayment, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+scheduledPaymentColumns+`
		FROM scheduled_payments WHERE loan_term_id = ? ORDER BY due_date, id
	`, loanTermID)
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled payments: %w", err)
	}
	defer rows.Close()

	var payments []loan.ScheduledPayment
	for rows.Next() {
		p, err := scanScheduledPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func (s queries) GetScheduledPayment(ctx context.Context, id string) (*loan.ScheduledPayment, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+scheduledPaymentColumns+`
		FROM scheduled_payments WHERE id = ?
	`, id)

	p, err := scanScheduledPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scheduled payment %s: %w", id, lifecycle.ErrNotFound)
	}
	return p, err
}

func (s queries) UpdateScheduledPayment(ctx context.Context, p *loan.ScheduledPayment) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE scheduled_payments
		SET payment_status = ?, actual_payment_date = ?
		WHERE id = ?
	`,
		string(p.Status),
		nullTime(p.ActualPaymentDate),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update scheduled payment %s: %w", p.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update scheduled payment %s: %w", p.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("scheduled payment %s: %w", p.ID, lifecycle.ErrNotFound)
	}
	return nil
}

func scanScheduledPayment(row rowScanner) (*loan.ScheduledPayment, error) {
	var (
		p                          loan.ScheduledPayment
		dueStr                     string
		amount, principal, interest string
		statusStr                  string
		actualStr                  sql.NullString
	)
	if err := row.Scan(&p.ID, &p.LoanTermID, &dueStr, &amount,
		&principal, &interest, &statusStr, &actualStr); err != nil {
		return nil, err
	}

	p.Status = loan.PaymentStatus(statusStr)

	var err error
	if p.DueDate, err = parseTime(dueStr); err != nil {
		return nil, err
	}
	if p.AmountDue, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("failed to parse amount due: %w", err)
	}
	if p.PrincipalComponent, err = decimal.NewFromString(principal); err != nil {
		return nil, fmt.Errorf("failed to parse principal component: %w", err)
	}
	if p.InterestComponent, err = decimal.NewFromString(interest); err != nil {
		return nil, fmt.Errorf("failed to parse interest component: %w", err)
	}
	if p.ActualPaymentDate, err = parseNullTime(actualStr); err != nil {
		return nil, err
	}
	return &p, nil
}
