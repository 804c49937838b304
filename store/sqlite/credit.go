/*
credit.go - Row operations for credit lines, sublines, and adjustments

All methods hang off queries so they run identically against the root
*sql.DB and an in-flight *sql.Tx. Save* methods are upserts keyed on id;
Get* methods map sql.ErrNoRows to lifecycle.ErrNotFound.
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/althea/credit-engine/credit"
	"github.com/althea/credit-engine/lifecycle"
)

// =============================================================================
// CREDIT LINES
// =============================================================================

const creditLineColumns = `id, credit_limit, currency, start_date, end_date, status, created_at`

func (s queries) GetCreditLine(ctx context.Context, id string) (*credit.CreditLine, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+creditLineColumns+`
		FROM credit_lines WHERE id = ?
	`, id)

	line, err := scanCreditLine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("credit line %s: %w", id, lifecycle.ErrNotFound)
	}
	return line, err
}

func (s queries) ListCreditLines(ctx context.Context) ([]credit.CreditLine, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+creditLineColumns+`
		FROM credit_lines ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list credit lines: %w", err)
	}
	defer rows.Close()

	var lines []credit.CreditLine
	for rows.Next() {
		line, err := scanCreditLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, *line)
	}
	return lines, rows.Err()
}

func (s queries) SaveCreditLine(ctx context.Context, line *credit.CreditLine) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO credit_lines (`+creditLineColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			credit_limit = excluded.credit_limit,
			currency = excluded.currency,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			status = excluded.status
	`,
		line.ID,
		line.CreditLimit.String(),
		string(line.Currency),
		formatTime(line.StartDate),
		nullTime(line.EndDate),
		string(line.Status),
		formatTime(line.Created),
	)
	if err != nil {
		return fmt.Errorf("failed to save credit line %s: %w", line.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCreditLine(row rowScanner) (*credit.CreditLine, error) {
	var (
		line                          credit.CreditLine
		limit, startStr, createdStr   string
		endStr                        sql.NullString
		currencyStr, statusStr        string
	)
	if err := row.Scan(&line.ID, &limit, &currencyStr, &startStr, &endStr, &statusStr, &createdStr); err != nil {
		return nil, err
	}

	var err error
	if line.CreditLimit, err = decimal.NewFromString(limit); err != nil {
		return nil, fmt.Errorf("failed to parse credit limit: %w", err)
	}
	if line.StartDate, err = parseTime(startStr); err != nil {
		return nil, err
	}
	if line.EndDate, err = parseNullTime(endStr); err != nil {
		return nil, err
	}
	if line.Created, err = parseTime(createdStr); err != nil {
		return nil, err
	}
	line.Currency = credit.Currency(currencyStr)
	line.Status = credit.LineStatus(statusStr)
	return &line, nil
}

// =============================================================================
// CREDIT SUBLINES
// =============================================================================

const sublineColumns = `id, credit_line_id, subline_type, subline_amount, amount_disbursed,
		outstanding_balance, interest_rate, status, created_at, updated_at`

func (s queries) GetCreditSubline(ctx context.Context, id string) (*credit.CreditSubline, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+sublineColumns+`
		FROM credit_sublines WHERE id = ?
	`, id)

	sub, err := scanCreditSubline(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("credit subline %s: %w", id, lifecycle.ErrNotFound)
	}
	return sub, err
}

func (s queries) ListCreditSublines(ctx context.Context, lineID string) ([]credit.CreditSubline, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+sublineColumns+`
		FROM credit_sublines WHERE credit_line_id = ? ORDER BY created_at, id
	`, lineID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credit sublines: %w", err)
	}
	defer rows.Close()

	var subs []credit.CreditSubline
	for rows.Next() {
		sub, err := scanCreditSubline(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

func (s queries) SaveCreditSubline(ctx context.Context, sub *credit.CreditSubline) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO credit_sublines (`+sublineColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			subline_type = excluded.subline_type,
			subline_amount = excluded.subline_amount,
			amount_disbursed = excluded.amount_disbursed,
			outstanding_balance = excluded.outstanding_balance,
			interest_rate = excluded.interest_rate,
			status = excluded.status,
			updated_at = excluded.updated_at
	`,
		sub.ID,
		sub.CreditLineID,
		nullString(sub.SublineType),
		sub.SublineAmount.String(),
		sub.AmountDisbursed.String(),
		sub.OutstandingBalance.String(),
		sub.InterestRate.String(),
		string(sub.Status),
		formatTime(sub.Created),
		formatTime(sub.Updated),
	)
	if err != nil {
		return fmt.Errorf("failed to save credit subline %s: %w", sub.ID, err)
	}
	return nil
}

func scanCreditSubline(row rowScanner) (*credit.CreditSubline, error) {
	var (
		sub                             credit.CreditSubline
		sublineType                     sql.NullString
		amount, disbursed, outstanding  string
		rate, statusStr                 string
		createdStr, updatedStr          string
	)
	if err := row.Scan(&sub.ID, &sub.CreditLineID, &sublineType, &amount, &disbursed,
		&outstanding, &rate, &statusStr, &createdStr, &updatedStr); err != nil {
		return nil, err
	}

	sub.SublineType = sublineType.String
	sub.Status = credit.SublineStatus(statusStr)

	var err error
	if sub.SublineAmount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("failed to parse subline amount: %w", err)
	}
	if sub.AmountDisbursed, err = decimal.NewFromString(disbursed); err != nil {
		return nil, fmt.Errorf("failed to parse amount disbursed: %w", err)
	}
	if sub.OutstandingBalance, err = decimal.NewFromString(outstanding); err != nil {
		return nil, fmt.Errorf("failed to parse outstanding balance: %w", err)
	}
	if sub.InterestRate, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("failed to parse interest rate: %w", err)
	}
	if sub.Created, err = parseTime(createdStr); err != nil {
		return nil, err
	}
	if sub.Updated, err = parseTime(updatedStr); err != nil {
		return nil, err
	}
	return &sub, nil
}

// =============================================================================
// LINE ADJUSTMENTS
// =============================================================================

const lineAdjustmentColumns = `id, credit_line_id, previous_limit, previous_status, new_limit,
		new_end_date, new_status, new_currency, adjustment_status, effective_date, reason, created_at`

func (s queries) GetLineAdjustment(ctx context.Context, id string) (*credit.LineAdjustment, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+lineAdjustmentColumns+`
		FROM line_adjustments WHERE id = ?
	`, id)

	adj, err := scanLineAdjustment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("line adjustment %s: %w", id, lifecycle.ErrNotFound)
	}
	return adj, err
}

func (s queries) ListLineAdjustments(ctx context.Context, lineID string) ([]credit.LineAdjustment, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+lineAdjustmentColumns+`
		FROM line_adjustments WHERE credit_line_id = ? ORDER BY created_at, id
	`, lineID)
	if err != nil {
		return nil, fmt.Errorf("failed to list line adjustments: %w", err)
	}
	defer rows.Close()

	var adjs []credit.LineAdjustment
	for rows.Next() {
		adj, err := scanLineAdjustment(rows)
		if err != nil {
			return nil, err
		}
		adjs = append(adjs, *adj)
	}
	return adjs, rows.Err()
}

func (s queries) SaveLineAdjustment(ctx context.Context, adj *credit.LineAdjustment) error {
	var newLimit, newStatus, newCurrency any
	if adj.NewLimit != nil {
		newLimit = adj.NewLimit.String()
	}
	if adj.NewStatus != nil {
		newStatus = string(*adj.NewStatus)
	}
	if adj.NewCurrency != nil {
		newCurrency = string(*adj.NewCurrency)
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO line_adjustments (`+lineAdjustmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			adjustment_status = excluded.adjustment_status,
			effective_date = excluded.effective_date
	`,
		adj.ID,
		adj.CreditLineID,
		adj.PreviousLimit.String(),
		string(adj.PreviousStatus),
		newLimit,
		nullTime(adj.NewEndDate),
		newStatus,
		newCurrency,
		string(adj.AdjustmentStatus),
		formatTime(adj.EffectiveDate),
		adj.Reason,
		formatTime(adj.Created),
	)
	if err != nil {
		return fmt.Errorf("failed to save line adjustment %s: %w", adj.ID, err)
	}
	return nil
}

func scanLineAdjustment(row rowScanner) (*credit.LineAdjustment, error) {
	var (
		adj                               credit.LineAdjustment
		prevLimit, prevStatus             string
		newLimit, newEnd, newStat, newCur sql.NullString
		adjStatus, effStr, createdStr     string
	)
	if err := row.Scan(&adj.ID, &adj.CreditLineID, &prevLimit, &prevStatus, &newLimit,
		&newEnd, &newStat, &newCur, &adjStatus, &effStr, &adj.Reason, &createdStr); err != nil {
		return nil, err
	}

	var err error
	if adj.PreviousLimit, err = decimal.NewFromString(prevLimit); err != nil {
		return nil, fmt.Errorf("failed to parse previous limit: %w", err)
	}
	adj.PreviousStatus = credit.LineStatus(prevStatus)
	adj.AdjustmentStatus = lifecycle.Status(adjStatus)

	if newLimit.Valid {
		d, err := decimal.NewFromString(newLimit.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse proposed limit: %w", err)
		}
		adj.NewLimit = &d
	}
	if adj.NewEndDate, err = parseNullTime(newEnd); err != nil {
		return nil, err
	}
	if newStat.Valid {
		st := credit.LineStatus(newStat.String)
		adj.NewStatus = &st
	}
	if newCur.Valid {
		cur := credit.Currency(newCur.String)
		adj.NewCurrency = &cur
	}
	if adj.EffectiveDate, err = parseTime(effStr); err != nil {
		return nil, err
	}
	if adj.Created, err = parseTime(createdStr); err != nil {
		return nil, err
	}
	return &adj, nil
}

// =============================================================================
// AMOUNT / RATE / STATUS ADJUSTMENTS
// =============================================================================

// The three subline adjustment tables share one shape: parent reference,
// initial value, adjusted value, lifecycle columns. The scan and save
// bodies differ only in table name and value parsing.

func (s queries) GetAmountAdjustment(ctx context.Context, id string) (*credit.AmountAdjustment, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, credit_subline_id, initial_amount, adjusted_amount,
			adjustment_status, effective_date, reason, created_at
		FROM amount_adjustments WHERE id = ?
	`, id)

	adj, err := scanAmountAdjustment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("amount adjustment %s: %w", id, lifecycle.ErrNotFound)
	}
	return adj, err
}

func (s queries) ListAmountAdjustments(ctx context.Context, sublineID string) ([]credit.AmountAdjustment, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, credit_subline_id, initial_amount, adjusted_amount,
			adjustment_status, effective_date, reason, created_at
		FROM amount_adjustments WHERE credit_subline_id = ? ORDER BY created_at, id
	`, sublineID)
	if err != nil {
		return nil, fmt.Errorf("failed to list amount adjustments: %w", err)
	}
	defer rows.Close()

	var adjs []credit.AmountAdjustment
	for rows.Next() {
		adj, err := scanAmountAdjustment(rows)
		if err != nil {
			return nil, err
		}
		adjs = append(adjs, *adj)
	}
	return adjs, rows.Err()
}

func (s queries) SaveAmountAdjustment(ctx context.Context, adj *credit.AmountAdjustment) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO amount_adjustments (id, credit_subline_id, initial_amount, adjusted_amount,
			adjustment_status, effective_date, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			adjustment_status = excluded.adjustment_status,
			effective_date = excluded.effective_date
	`,
		adj.ID,
		adj.CreditSublineID,
		adj.InitialAmount.String(),
		adj.AdjustedAmount.String(),
		string(adj.AdjustmentStatus),
		formatTime(adj.EffectiveDate),
		adj.Reason,
		formatTime(adj.Created),
	)
	if err != nil {
		return fmt.Errorf("failed to save amount adjustment %s: %w", adj.ID, err)
	}
	return nil
}

func scanAmountAdjustment(row rowScanner) (*credit.AmountAdjustment, error) {
	var (
		adj                           credit.AmountAdjustment
		initial, adjusted             string
		adjStatus, effStr, createdStr string
	)
	if err := row.Scan(&adj.ID, &adj.CreditSublineID, &initial, &adjusted,
		&adjStatus, &effStr, &adj.Reason, &createdStr); err != nil {
		return nil, err
	}

	var err error
	if adj.InitialAmount, err = decimal.NewFromString(initial); err != nil {
		return nil, fmt.Errorf("failed to parse initial amount: %w", err)
	}
	if adj.AdjustedAmount, err = decimal.NewFromString(adjusted); err != nil {
		return nil, fmt.Errorf("failed to parse adjusted amount: %w", err)
	}
	adj.AdjustmentStatus = lifecycle.Status(adjStatus)
	if adj.EffectiveDate, err = parseTime(effStr); err != nil {
		return nil, err
	}
	if adj.Created, err = parseTime(createdStr); err != nil {
		return nil, err
	}
	return &adj, nil
}

func (s queries) GetRateAdjustment(ctx context.Context, id string) (*credit.RateAdjustment, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, credit_subline_id, initial_rate, adjusted_rate,
			adjustment_status, effective_date, reason, created_at
		FROM rate_adjustments WHERE id = ?
	`, id)

	adj, err := scanRateAdjustment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rate adjustment %s: %w", id, lifecycle.ErrNotFound)
	}
	return adj, err
}

func (s queries) ListRateAdjustments(ctx context.Context, sublineID string) ([]credit.RateAdjustment, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, credit_subline_id, initial_rate, adjusted_rate,
			adjustment_status, effective_date, reason, created_at
		FROM rate_adjustments WHERE credit_subline_id = ? ORDER BY created_at, id
	`, sublineID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rate adjustments: %w", err)
	}
	defer rows.Close()

	var adjs []credit.RateAdjustment
	for rows.Next() {
		adj, err := scanRateAdjustment(rows)
		if err != nil {
			return nil, err
		}
		adjs = append(adjs, *adj)
	}
	return adjs, rows.Err()
}

func (s queries) SaveRateAdjustment(ctx context.Context, adj *credit.RateAdjustment) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO rate_adjustments (id, credit_subline_id, initial_rate, adjusted_rate,
			adjustment_status, effective_date, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			adjustment_status = excluded.adjustment_status,
			effective_date = excluded.effective_date
	`,
		adj.ID,
		adj.CreditSublineID,
		adj.InitialRate.String(),
		adj.AdjustedRate.String(),
		string(adj.AdjustmentStatus),
		formatTime(adj.EffectiveDate),
		adj.Reason,
		formatTime(adj.Created),
	)
	if err != nil {
		return fmt.Errorf("failed to save rate adjustment %s: %w", adj.ID, err)
	}
	return nil
}

func scanRateAdjustment(row rowScanner) (*credit.RateAdjustment, error) {
	var (
		adj                           credit.RateAdjustment
		initial, adjusted             string
		adjStatus, effStr, createdStr string
	)
	if err := row.Scan(&adj.ID, &adj.CreditSublineID, &initial, &adjusted,
		&adjStatus, &effStr, &adj.Reason, &createdStr); err != nil {
		return nil, err
	}

	var err error
	if adj.InitialRate, err = decimal.NewFromString(initial); err != nil {
		return nil, fmt.Errorf("failed to parse initial rate: %w", err)
	}
	if adj.AdjustedRate, err = decimal.NewFromString(adjusted); err != nil {
		return nil, fmt.Errorf("failed to parse adjusted rate: %w", err)
	}
	adj.AdjustmentStatus = lifecycle.Status(adjStatus)
	if adj.EffectiveDate, err = parseTime(effStr); err != nil {
		return nil, err
	}
	if adj.Created, err = parseTime(createdStr); err != nil {
		return nil, err
	}
	return &adj, nil
}

func (s queries) GetStatusAdjustment(ctx context.Context, id string) (*credit.StatusAdjustment, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, credit_subline_id, initial_status, adjusted_status,
			adjustment_status, effective_date, reason, created_at
		FROM status_adjustments WHERE id = ?
	`, id)

	adj, err := scanStatusAdjustment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("status adjustment %s: %w", id, lifecycle.ErrNotFound)
	}
	return adj, err
}

func (s queries) ListStatusAdjustments(ctx context.Context, sublineID string) ([]credit.StatusAdjustment, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, credit_subline_id, initial_status, adjusted_status,
			adjustment_status, effective_date, reason, created_at
		FROM status_adjustments WHERE credit_subline_id = ? ORDER BY created_at, id
	`, sublineID)
	if err != nil {
		return nil, fmt.Errorf("failed to list status adjustments: %w", err)
	}
	defer rows.Close()

	var adjs []credit.StatusAdjustment
	for rows.Next() {
		adj, err := scanStatusAdjustment(rows)
		if err != nil {
			return nil, err
		}
		adjs = append(adjs, *adj)
	}
	return adjs, rows.Err()
}

func (s queries) SaveStatusAdjustment(ctx context.Context, adj *credit.StatusAdjustment) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO status_adjustments (id, credit_subline_id, initial_status, adjusted_status,
			adjustment_status, effective_date, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			adjustment_status = excluded.adjustment_status,
			effective_date = excluded.effective_date
	`,
		adj.ID,
		adj.CreditSublineID,
		string(adj.InitialStatus),
		string(adj.AdjustedStatus),
		string(adj.AdjustmentStatus),
		formatTime(adj.EffectiveDate),
		adj.Reason,
		formatTime(adj.Created),
	)
	if err != nil {
		return fmt.Errorf("failed to save status adjustment %s: %w", adj.ID, err)
	}
	return nil
}

func scanStatusAdjustment(row rowScanner) (*credit.StatusAdjustment, error) {
	var (
		adj                           credit.StatusAdjustment
		initial, adjusted             string
		adjStatus, effStr, createdStr string
	)
	if err := row.Scan(&adj.ID, &adj.CreditSublineID, &initial, &adjusted,
		&adjStatus, &effStr, &adj.Reason, &createdStr); err != nil {
		return nil, err
	}

	adj.InitialStatus = credit.SublineStatus(initial)
	adj.AdjustedStatus = credit.SublineStatus(adjusted)
	adj.AdjustmentStatus = lifecycle.Status(adjStatus)

	var err error
	if adj.EffectiveDate, err = parseTime(effStr); err != nil {
		return nil, err
	}
	if adj.Created, err = parseTime(createdStr); err != nil {
		return nil, err
	}
	return &adj, nil
}
