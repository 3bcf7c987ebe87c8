// Package csvsource reads the operator-supplied claimant and cohort input
// files. Any malformed row aborts the whole read with a line-scoped error;
// a partially parsed input is never returned.
package csvsource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"

	"dropforge/internal/infra/merkle"
)

var (
	ErrBadHeader = errors.New("unexpected csv header")
	ErrEmptyFile = errors.New("input file has no data rows")
)

// RowError pins a validation failure to its input line.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

type ClaimantRow struct {
	Cohort       string
	Address      string
	AddressBytes [merkle.ClaimantSize]byte
	Entitlements uint64
	Line         int
}

type CohortRow struct {
	Cohort               string
	AmountPerEntitlement decimal.Decimal
	Line                 int
}

var claimantHeader = []string{"cohort", "claimant", "entitlements"}

func ReadClaimants(r io.Reader) ([]ClaimantRow, error) {
	records, err := readAll(r, claimantHeader)
	if err != nil {
		return nil, err
	}

	rows := make([]ClaimantRow, 0, len(records))
	for i, record := range records {
		line := i + 2 // 1-based, after the header
		cohort := strings.TrimSpace(record[0])
		if cohort == "" {
			return nil, &RowError{Line: line, Err: errors.New("empty cohort name")}
		}

		address := strings.TrimSpace(record[1])
		decoded, err := base58.Decode(address)
		if err != nil {
			return nil, &RowError{Line: line, Err: fmt.Errorf("claimant address: %w", err)}
		}
		if len(decoded) != merkle.ClaimantSize {
			return nil, &RowError{Line: line, Err: fmt.Errorf("claimant address decodes to %d bytes, want %d", len(decoded), merkle.ClaimantSize)}
		}

		entitlements, err := strconv.ParseUint(strings.TrimSpace(record[2]), 10, 64)
		if err != nil {
			return nil, &RowError{Line: line, Err: fmt.Errorf("entitlements: %w", err)}
		}
		if entitlements == 0 {
			return nil, &RowError{Line: line, Err: errors.New("entitlements must be positive")}
		}

		row := ClaimantRow{
			Cohort:       cohort,
			Address:      address,
			Entitlements: entitlements,
			Line:         line,
		}
		copy(row.AddressBytes[:], decoded)
		rows = append(rows, row)
	}
	return rows, nil
}

var cohortHeader = []string{"cohort", "amount_per_entitlement"}

func ReadCohorts(r io.Reader) ([]CohortRow, error) {
	records, err := readAll(r, cohortHeader)
	if err != nil {
		return nil, err
	}

	rows := make([]CohortRow, 0, len(records))
	for i, record := range records {
		line := i + 2
		cohort := strings.TrimSpace(record[0])
		if cohort == "" {
			return nil, &RowError{Line: line, Err: errors.New("empty cohort name")}
		}

		amount, err := decimal.NewFromString(strings.TrimSpace(record[1]))
		if err != nil {
			return nil, &RowError{Line: line, Err: fmt.Errorf("amount_per_entitlement: %w", err)}
		}
		if amount.IsNegative() {
			return nil, &RowError{Line: line, Err: errors.New("amount_per_entitlement must not be negative")}
		}

		rows = append(rows, CohortRow{Cohort: cohort, AmountPerEntitlement: amount, Line: line})
	}
	return rows, nil
}

func readAll(r io.Reader, header []string) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(header)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrBadHeader
	}
	for i, name := range header {
		if !strings.EqualFold(strings.TrimSpace(records[0][i]), name) {
			return nil, fmt.Errorf("%w: got %q, want %q", ErrBadHeader, records[0][i], name)
		}
	}
	if len(records) == 1 {
		return nil, ErrEmptyFile
	}
	return records[1:], nil
}
