package reporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bank-ledger-reconciler/internal/installments"
	"bank-ledger-reconciler/internal/ledger"
	"bank-ledger-reconciler/internal/matcher"
	"bank-ledger-reconciler/internal/models"
	"bank-ledger-reconciler/internal/provisioning"
	"bank-ledger-reconciler/pkg/errors"
	"bank-ledger-reconciler/pkg/logger"
)

var generatedAt = time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func newTestGenerator(t *testing.T, config *ReportConfig) *ReportGenerator {
	t.Helper()
	generator, err := NewReportGenerator(config)
	if err != nil {
		t.Fatalf("NewReportGenerator() error = %v", err)
	}
	return generator.WithClock(func() time.Time { return generatedAt })
}

func withFormat(format OutputFormat) *ReportConfig {
	config := DefaultReportConfig()
	config.Format = format
	return config
}

func createTestResult() *matcher.ReconciliationResult {
	matchedRow := models.BankTransaction{ID: "b1", PostingDate: date("2024-03-10"), Value: dec("-150"), Description: "TARIFA", AccountKey: "2205642886"}
	orphanRow := models.BankTransaction{ID: "b2", PostingDate: date("2024-03-11"), Value: dec("-80"), Description: "PIX ENVIADO", AccountKey: "99990001"}

	return &matcher.ReconciliationResult{
		BankRows: []matcher.AnnotatedBankRow{
			{
				LinkedBankTransaction: models.LinkedBankTransaction{BankTransaction: matchedRow, LinkedAccountCode: "1.1.1.01"},
				Matched:               true,
				CounterpartID:         "L1",
				PassName:              "exact",
			},
			{
				LinkedBankTransaction: models.LinkedBankTransaction{BankTransaction: orphanRow},
				UnmatchedReason:       matcher.UnmatchedReasonNoAccount,
			},
		},
		LedgerRows: []matcher.AnnotatedLedgerRow{
			{
				LedgerPosting: models.LedgerPosting{LedgerID: "L1", PostingDate: date("2024-03-10"), Amount: dec("150"),
					DebitAccount: "4.1.1", CreditAccount: "1.1.1.01", Narrative: "Tarifa"},
				Matched:       true,
				CounterpartID: "b1",
				PassName:      "exact",
			},
			{
				LedgerPosting: models.LedgerPosting{LedgerID: "L2", PostingDate: date("2024-03-12"), Amount: dec("40"),
					DebitAccount: "4.1.2", CreditAccount: "1.1.1.01", Narrative: "Juros"},
			},
		},
		Matches: []models.ReconciliationMatchRecord{
			{BankTransactionID: "b1", LedgerID: "L1", PassName: "exact", MatchedAt: generatedAt},
		},
		Summary: matcher.ReconciliationSummary{
			TotalBankRows:        2,
			TotalLedgerRows:      2,
			MatchedBankRows:      1,
			MatchedLedgerRows:    1,
			UnmatchedBankRows:    1,
			NoAccountBankRows:    1,
			LedgerSurplus:        1,
			TotalAmountMatched:   dec("150"),
			TotalAmountUnmatched: dec("80"),
			Passes:               []matcher.PassSummary{{Name: "exact", Matches: 1, Amount: dec("150")}},
		},
	}
}

func createTestProvisioning() *ProvisioningReport {
	return &ProvisioningReport{
		Proposals: []*provisioning.Proposal{
			{
				ID:          "p1",
				AccountKey:  "2205642886",
				WindowStart: date("2024-03-01"),
				WindowEnd:   date("2024-03-31"),
				Entries: []models.AdjustmentEntry{{
					ID: "e1", BatchID: "bt1", AccountKey: "2205642886", Date: date("2024-03-05"),
					Direction: models.DirectionProvision, Amount: dec("500"),
					DebitAccount: "1.1.1.01", CreditAccount: "2.1.9.01", Narrative: "Provisao saldo negativo",
					Origin: models.OriginNegativeBalanceAdjustment,
				}},
			},
			{ID: "p2", AccountKey: "00331234", WindowStart: date("2024-03-01"), WindowEnd: date("2024-03-31")},
		},
	}
}

func TestNewReportGenerator(t *testing.T) {
	tests := []struct {
		name        string
		config      *ReportConfig
		expectError bool
	}{
		{name: "default config", config: nil},
		{name: "valid config", config: DefaultReportConfig()},
		{name: "invalid format", config: &ReportConfig{Format: "pdf"}, expectError: true},
		{name: "negative list limit", config: &ReportConfig{Format: FormatConsole, MaxListItems: -1}, expectError: true},
		{name: "csv without delimiter", config: &ReportConfig{Format: FormatCSV}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generator, err := NewReportGenerator(tt.config)
			if tt.expectError {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if generator.GetConfiguration() == nil {
				t.Error("expected a configuration")
			}
		})
	}
}

func TestConsoleReconciliationReport(t *testing.T) {
	var buf bytes.Buffer
	if err := newTestGenerator(t, nil).Generate(createTestResult(), &buf); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	output := buf.String()

	expected := []string{
		"RECONCILIATION REPORT",
		"Generated: 2024-03-31T12:00:00Z",
		"Matched:   1 (50.0%)",
		"without a linked ledger account: 1",
		"=== MATCHES BY PASS ===",
		"=== UNMATCHED BANK ROWS ===",
		"PIX ENVIADO  [no linked account]",
		"=== LEDGER SURPLUS ===",
		"L2  12/03/2024",
	}
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("console report missing %q\n%s", want, output)
		}
	}
	if strings.Contains(output, "=== MATCHES ===") {
		t.Error("matches should be hidden by default")
	}
}

func TestConsoleListLimit(t *testing.T) {
	result := createTestResult()
	for i := 0; i < 3; i++ {
		row := result.BankRows[1]
		row.ID = row.ID + strings.Repeat("x", i+1)
		result.BankRows = append(result.BankRows, row)
	}

	config := DefaultReportConfig()
	config.MaxListItems = 2
	var buf bytes.Buffer
	if err := newTestGenerator(t, config).Generate(result, &buf); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !strings.Contains(buf.String(), "... and 2 more") {
		t.Errorf("expected the unmatched list to be truncated\n%s", buf.String())
	}
}

func TestJSONReconciliationReport(t *testing.T) {
	tests := []struct {
		name           string
		includeMatched bool
	}{
		{"without matches", false},
		{"with matches", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := withFormat(FormatJSON)
			config.IncludeMatched = tt.includeMatched

			var buf bytes.Buffer
			if err := newTestGenerator(t, config).Generate(createTestResult(), &buf); err != nil {
				t.Fatalf("Generate() error = %v", err)
			}

			var decoded struct {
				GeneratedAt string                     `json:"generated_at"`
				Report      map[string]json.RawMessage `json:"report"`
			}
			if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if decoded.GeneratedAt != "2024-03-31T12:00:00Z" {
				t.Errorf("unexpected generated_at %s", decoded.GeneratedAt)
			}

			var summary matcher.ReconciliationSummary
			if err := json.Unmarshal(decoded.Report["summary"], &summary); err != nil {
				t.Fatalf("invalid summary: %v", err)
			}
			if summary.TotalBankRows != 2 || !summary.TotalAmountMatched.Equal(dec("150")) {
				t.Errorf("unexpected summary %+v", summary)
			}

			_, hasMatches := decoded.Report["matches"]
			if hasMatches != tt.includeMatched {
				t.Errorf("matches present = %v, want %v", hasMatches, tt.includeMatched)
			}
			if _, ok := decoded.Report["ledger_surplus"]; !ok {
				t.Error("expected ledger_surplus in the report")
			}
		})
	}
}

func readCSV(t *testing.T, data string) [][]string {
	t.Helper()
	r := csv.NewReader(strings.NewReader(data))
	r.Comma = ';'
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	return records
}

func TestCSVReconciliationReport(t *testing.T) {
	var buf bytes.Buffer
	if err := newTestGenerator(t, withFormat(FormatCSV)).Generate(createTestResult(), &buf); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	records := readCSV(t, buf.String())
	if len(records) != 3 {
		t.Fatalf("expected header and 2 records, got %d", len(records))
	}
	if records[0][0] != "type" {
		t.Errorf("unexpected header %v", records[0])
	}
	if records[1][0] != "unmatched_bank" || records[1][8] != string(matcher.UnmatchedReasonNoAccount) {
		t.Errorf("unexpected bank record %v", records[1])
	}
	if records[2][0] != "ledger_surplus" || records[2][2] != "4.1.2/1.1.1.01" || records[2][4] != "40.00" {
		t.Errorf("unexpected surplus record %v", records[2])
	}
}

func TestProvisioningReport(t *testing.T) {
	var console bytes.Buffer
	if err := newTestGenerator(t, nil).Generate(createTestProvisioning(), &console); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	for _, want := range []string{"Entries:   1", "=== ACCOUNT 2205642886 ===", "provision", "500.00", "No adjustment needed"} {
		if !strings.Contains(console.String(), want) {
			t.Errorf("console report missing %q\n%s", want, console.String())
		}
	}

	var table bytes.Buffer
	if err := newTestGenerator(t, withFormat(FormatCSV)).Generate(createTestProvisioning(), &table); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	records := readCSV(t, table.String())
	if len(records) != 2 {
		t.Fatalf("expected header and 1 entry, got %d", len(records))
	}
	if records[1][2] != "e1" || records[1][6] != "500.00" || records[1][10] != "false" {
		t.Errorf("unexpected entry record %v", records[1])
	}
}

func TestInstallmentReport(t *testing.T) {
	report := &InstallmentReport{
		Proposals: []installments.MatchProposal{{
			InstallmentID: "123-002", Number: 2, InstallmentAmount: dec("300"), DueDate: date("2024-05-10"),
			BankTransactionID: "b9", BankAmount: dec("-299.50"), BankDate: date("2024-05-12"), Score: dec("0.9983"),
		}},
		Summaries: []installments.PlanSummary{{
			PlanNumber: "123", AsOf: date("2024-05-31"), Total: 4, Paid: 2, Overdue: 1, Pending: 1,
			Outstanding: dec("600"), PaidAmount: dec("599.50"),
		}},
	}

	var buf bytes.Buffer
	if err := newTestGenerator(t, nil).Generate(report, &buf); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	for _, want := range []string{"Installment 123-002", "score 0.9983", "=== PLAN 123 ===", "Outstanding: 600.00"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("console report missing %q\n%s", want, buf.String())
		}
	}
}

func TestImbalanceReport(t *testing.T) {
	balanced := ledger.CheckBatchBalance([]models.LedgerPosting{
		{LedgerID: "1", BatchID: "A", PostingDate: date("2024-03-01"), Amount: dec("10"), DebitAccount: "4.1", CreditAccount: "1.1"},
	}, decimal.Zero)
	unbalanced := ledger.CheckBatchBalance([]models.LedgerPosting{
		{LedgerID: "1", BatchID: "A", PostingDate: date("2024-03-01"), Amount: dec("10"), DebitAccount: "4.1"},
		{LedgerID: "2", BatchID: "A", PostingDate: date("2024-03-01"), Amount: dec("7"), CreditAccount: "1.1"},
	}, decimal.Zero)

	var buf bytes.Buffer
	if err := newTestGenerator(t, nil).Generate(balanced, &buf); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !strings.Contains(buf.String(), "All batches are balanced") {
		t.Errorf("expected balanced message\n%s", buf.String())
	}

	buf.Reset()
	if err := newTestGenerator(t, withFormat(FormatCSV)).Generate(unbalanced, &buf); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	records := readCSV(t, buf.String())
	if len(records) != 2 || records[1][0] != "A" || records[1][5] != "3.00" {
		t.Errorf("unexpected imbalance records %v", records)
	}
}

func TestBalanceReport(t *testing.T) {
	report := &BalanceReport{Comparisons: []ledger.BalanceComparison{
		{AccountKey: "2205642886", LedgerAccount: "1.1.1.01", Start: date("2024-03-01"), End: date("2024-03-31"),
			BankClosing: dec("100"), LedgerClosing: dec("100"), Status: ledger.StatusReconciled},
		{AccountKey: "00331234", LedgerAccount: "1.1.1.02", Start: date("2024-03-01"), End: date("2024-03-31"),
			BankClosing: dec("100"), LedgerClosing: dec("90"), Difference: dec("10"), Status: ledger.StatusUnreconciled},
	}}
	if report.Unreconciled() != 1 {
		t.Errorf("expected 1 unreconciled account, got %d", report.Unreconciled())
	}

	var buf bytes.Buffer
	if err := newTestGenerator(t, nil).Generate(report, &buf); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !strings.Contains(buf.String(), "Unreconciled: 1") || !strings.Contains(buf.String(), "Status: unreconciled") {
		t.Errorf("unexpected balance report\n%s", buf.String())
	}
}

func TestGenerateRejectsUnknownReports(t *testing.T) {
	generator := newTestGenerator(t, nil)

	tests := []struct {
		name   string
		report interface{}
		code   errors.ErrorCode
	}{
		{"nil", nil, errors.CodeMissingField},
		{"typed nil", (*matcher.ReconciliationResult)(nil), errors.CodeMissingField},
		{"unknown type", "text", errors.CodeInvalidData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := generator.Generate(tt.report, io.Discard)
			if !errors.HasCode(err, tt.code) {
				t.Errorf("expected %s, got %v", tt.code, err)
			}
		})
	}
}

// failOnce fails the first write and accepts the rest
type failOnce struct {
	bytes.Buffer
	failed bool
}

func (f *failOnce) Write(p []byte) (int, error) {
	if !f.failed {
		f.failed = true
		return 0, io.ErrShortWrite
	}
	return f.Buffer.Write(p)
}

func TestSafeReportGeneratorFallsBackToConsole(t *testing.T) {
	var logs bytes.Buffer
	safe, err := NewSafeReportGenerator(withFormat(FormatJSON), logger.NewBufferLogger(&logs))
	if err != nil {
		t.Fatalf("NewSafeReportGenerator() error = %v", err)
	}
	safe.WithClock(func() time.Time { return generatedAt })

	out := &failOnce{}
	if err := safe.GenerateReportSafely(createTestResult(), out); err != nil {
		t.Fatalf("GenerateReportSafely() error = %v", err)
	}
	if !strings.Contains(out.String(), "NOTE: Report generated in fallback format") ||
		!strings.Contains(out.String(), "RECONCILIATION REPORT") {
		t.Errorf("expected console fallback output\n%s", out.String())
	}
}

func TestSafeReportGeneratorRejectsBadInput(t *testing.T) {
	safe, err := NewSafeReportGenerator(nil, nil)
	if err != nil {
		t.Fatalf("NewSafeReportGenerator() error = %v", err)
	}

	if err := safe.GenerateReportSafely(createTestResult(), nil); !errors.HasCode(err, errors.CodeMissingField) {
		t.Errorf("expected missing writer error, got %v", err)
	}
	if err := safe.GenerateReportSafely(42, io.Discard); !errors.HasCode(err, errors.CodeInvalidData) {
		t.Errorf("expected invalid report error, got %v", err)
	}

	if _, err := NewSafeReportGenerator(&ReportConfig{Format: "xml"}, nil); !errors.HasCode(err, errors.CodeInvalidConfig) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestGenerateBackupPath(t *testing.T) {
	tests := map[string]string{
		"/tmp/report.csv": "/tmp/report_backup.csv",
		"out/result.json": "out/result_backup.json",
		"report":          "report_backup",
	}
	for in, want := range tests {
		if got := generateBackupPath(in); got != want {
			t.Errorf("generateBackupPath(%q) = %q, want %q", in, got, want)
		}
	}
}
