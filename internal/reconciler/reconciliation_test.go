package reconciler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bank-ledger-reconciler/internal/ledger"
	"bank-ledger-reconciler/internal/models"
	"bank-ledger-reconciler/internal/parsers"
	"bank-ledger-reconciler/pkg/errors"
)

const registryCSV = `banco;agencia;conta;descricao;conta_contabil;conta_saldo_negativo;saldo_inicial;data_saldo_inicial
001;2205;0000642886;BB Movimento;1.1.1.01;2.1.9.01;1.000,00;
237;33;1234;Bradesco;1.1.1.02;;;`

func writeFile(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%03d", n)
	}
}

func newTestService(t *testing.T) *ReconciliationService {
	t.Helper()
	service, err := NewReconciliationService(DefaultConfig())
	if err != nil {
		t.Fatalf("NewReconciliationService() error = %v", err)
	}
	clock := func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return service.WithClock(clock).WithIDGenerator(sequentialIDs())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		code   errors.ErrorCode
	}{
		{"default", func(*Config) {}, ""},
		{"no passes", func(c *Config) { c.Matching = nil }, errors.CodeMissingConfig},
		{"negative tolerance", func(c *Config) { c.BalanceTolerance = decimal.NewFromInt(-1) }, errors.CodeInvalidConfig},
		{"no workers", func(c *Config) { c.MaxConcurrentFiles = 0 }, errors.CodeInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.code == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if !errors.HasCode(err, tt.code) {
				t.Errorf("Validate() error = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestRequestValidation(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	start, end := day("2024-03-02"), day("2024-03-01")

	if _, err := service.Reconcile(ctx, nil); !errors.HasCode(err, errors.CodeMissingField) {
		t.Errorf("nil request: got %v", err)
	}
	if _, err := service.Reconcile(ctx, &ReconciliationRequest{RegistryFile: "r.csv", LedgerFile: "l.csv"}); !errors.HasCode(err, errors.CodeMissingField) {
		t.Errorf("missing statements: got %v", err)
	}
	_, err := service.Reconcile(ctx, &ReconciliationRequest{
		RegistryFile: "r.csv", StatementFiles: []string{"s.csv"}, LedgerFile: "l.csv",
		DateRange: DateRange{Start: &start, End: &end},
	})
	if !errors.HasCode(err, errors.CodeInvalidRange) {
		t.Errorf("inverted range: got %v", err)
	}

	_, err = service.ProposeProvisioning(ctx, &ProvisioningRequest{
		RegistryFile: "r.csv", Source: SourceLedger, Start: day("2024-03-01"), End: day("2024-03-02"),
	})
	if !errors.HasCode(err, errors.CodeMissingField) {
		t.Errorf("ledger source without ledger: got %v", err)
	}
	_, err = service.ProposeProvisioning(ctx, &ProvisioningRequest{
		RegistryFile: "r.csv", StatementFiles: []string{"s.csv"}, Source: "bank",
		Start: day("2024-03-01"), End: day("2024-03-02"),
	})
	if !errors.HasCode(err, errors.CodeInvalidData) {
		t.Errorf("unknown source: got %v", err)
	}
	_, err = service.ProposeProvisioning(ctx, &ProvisioningRequest{RegistryFile: "r.csv", StatementFiles: []string{"s.csv"}})
	if !errors.HasCode(err, errors.CodeMissingField) {
		t.Errorf("missing window: got %v", err)
	}

	if _, err := service.MatchInstallments(ctx, &InstallmentRequest{StatementFiles: []string{"s.csv"}}); !errors.HasCode(err, errors.CodeMissingField) {
		t.Errorf("missing installments: got %v", err)
	}
	if _, _, err := service.CheckLedger(ctx, "", DateRange{}); !errors.HasCode(err, errors.CodeMissingField) {
		t.Errorf("missing ledger: got %v", err)
	}
}

func TestReconcileMatchesAcrossStatementFiles(t *testing.T) {
	dir := t.TempDir()
	registry := writeFile(t, dir, "contas.csv", registryCSV)
	first := writeFile(t, dir, "extrato_marco.csv",
		"documento;data;valor;historico;agencia;conta",
		"1001;10/03/2024;-150,00;TARIFA;2205;642886",
	)
	// the second export repeats the first line and adds an unregistered account
	second := writeFile(t, dir, "extrato_marco_2.csv",
		"documento;data;valor;historico;agencia;conta",
		"1001;10/03/2024;-150,00;TARIFA;2205;642886",
		"9001;10/03/2024;-20,00;PIX ENVIADO;9999;1",
	)
	book := writeFile(t, dir, "razao.csv",
		"idlancamento;lote;data_lancamento;historico;valor;reduz_deb;reduz_cred",
		"L1;B1;10/03/2024;Tarifa bancaria;150,00;4.1.1;1.1.1.01",
		"L2;B2;11/03/2024;Despesa;40,00;4.1.2;1.1.1.01",
		"L3;B3;01/02/2024;Fora do periodo;10,00;4.1.2;1.1.1.01",
	)

	start, end := day("2024-03-01"), day("2024-03-31")
	outcome, err := newTestService(t).Reconcile(context.Background(), &ReconciliationRequest{
		RegistryFile:   registry,
		StatementFiles: []string{first, second},
		LedgerFile:     book,
		DateRange:      DateRange{Start: &start, End: &end},
	})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	if outcome.Statements.Inserted != 2 || outcome.Statements.Duplicates != 1 {
		t.Errorf("unexpected insert stats %+v", outcome.Statements)
	}
	if len(outcome.ParseStats) != 4 {
		t.Errorf("expected stats for 4 files, got %d", len(outcome.ParseStats))
	}

	s := outcome.Result.Summary
	if s.TotalBankRows != 2 || s.TotalLedgerRows != 2 {
		t.Fatalf("expected 2 bank and 2 ledger rows in the period, got %d and %d", s.TotalBankRows, s.TotalLedgerRows)
	}
	if s.MatchedBankRows != 1 || s.NoAccountBankRows != 1 || s.LedgerSurplus != 1 {
		t.Errorf("unexpected summary %+v", s)
	}
	if len(outcome.Result.Matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(outcome.Result.Matches))
	}
	match := outcome.Result.Matches[0]
	if match.LedgerID != "L1" || !strings.HasPrefix(match.PassName, "Pass 1") {
		t.Errorf("expected L1 matched in the first pass, got %+v", match)
	}
	if surplus := outcome.Result.Surplus(); len(surplus) != 1 || surplus[0].LedgerID != "L2" {
		t.Errorf("expected L2 as ledger surplus, got %+v", surplus)
	}
}

func TestReconcileMissingFile(t *testing.T) {
	dir := t.TempDir()
	registry := writeFile(t, dir, "contas.csv", registryCSV)
	book := writeFile(t, dir, "razao.csv", "idlancamento;data_lancamento;valor;reduz_deb;reduz_cred")

	_, err := newTestService(t).Reconcile(context.Background(), &ReconciliationRequest{
		RegistryFile:   registry,
		StatementFiles: []string{filepath.Join(dir, "missing.csv")},
		LedgerFile:     book,
	})
	if !errors.HasCode(err, errors.CodeFileNotFound) {
		t.Fatalf("expected file not found, got %v", err)
	}
}

func TestProvisioningCommitAndRerun(t *testing.T) {
	dir := t.TempDir()
	registry := writeFile(t, dir, "contas.csv", registryCSV)
	statement := writeFile(t, dir, "extrato.csv",
		"data;valor;historico;agencia;conta",
		"01/03/2024;-1.500,00;PAGAMENTO FORNECEDOR;2205;642886",
		"03/03/2024;-50,00;TARIFA;0033;1234",
	)

	service := newTestService(t)
	ctx := context.Background()

	outcome, err := service.ProposeProvisioning(ctx, &ProvisioningRequest{
		RegistryFile:   registry,
		StatementFiles: []string{statement},
		Start:          day("2024-03-01"),
		End:            day("2024-03-05"),
		Source:         SourceStatement,
		Commit:         true,
	})
	if err != nil {
		t.Fatalf("ProposeProvisioning() error = %v", err)
	}

	if len(outcome.Skipped) != 1 || outcome.Skipped[0] != "00331234" {
		t.Errorf("expected the account without contra account to be skipped, got %v", outcome.Skipped)
	}
	if len(outcome.Proposals) != 1 {
		t.Fatalf("expected 1 proposal, got %d", len(outcome.Proposals))
	}
	entries := outcome.Proposals[0].Entries
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Direction != models.DirectionProvision || !entries[0].Amount.Equal(decimal.NewFromInt(500)) ||
		!entries[0].Date.Equal(day("2024-03-01")) {
		t.Errorf("unexpected entry %+v", entries[0])
	}
	if entries[0].DebitAccount != "1.1.1.01" || entries[0].CreditAccount != "2.1.9.01" {
		t.Errorf("unexpected accounts %s/%s", entries[0].DebitAccount, entries[0].CreditAccount)
	}
	if len(outcome.Committed) != 1 || outcome.Journal.Len() != 1 {
		t.Fatalf("expected the entry in the journal, got %d commits and %d postings", len(outcome.Committed), outcome.Journal.Len())
	}

	// persist the journal and run again over the same window
	writer, err := parsers.NewWriter(parsers.DefaultOptions())
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	bookPath := filepath.Join(dir, "razao.csv")
	f, err := os.Create(bookPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := writer.WriteLedger(f, outcome.Journal.All()); err != nil {
		t.Fatalf("WriteLedger() error = %v", err)
	}
	f.Close()

	rerun, err := service.ProposeProvisioning(ctx, &ProvisioningRequest{
		RegistryFile:   registry,
		StatementFiles: []string{statement},
		LedgerFile:     bookPath,
		Accounts:       []string{"2205642886"},
		Start:          day("2024-03-01"),
		End:            day("2024-03-05"),
		Commit:         true,
	})
	if err != nil {
		t.Fatalf("rerun error = %v", err)
	}
	if len(rerun.Proposals) != 1 || !rerun.Proposals[0].IsEmpty() || len(rerun.Committed) != 0 {
		t.Errorf("expected nothing to book on rerun, got %+v", rerun.Proposals[0].Entries)
	}

	// a window starting after the overdraft inherits the provisioned level
	later, err := service.ProposeProvisioning(ctx, &ProvisioningRequest{
		RegistryFile:   registry,
		StatementFiles: []string{statement},
		Accounts:       []string{"2205642886"},
		Start:          day("2024-03-02"),
		End:            day("2024-03-05"),
	})
	if err != nil {
		t.Fatalf("later window error = %v", err)
	}
	if !later.Proposals[0].IsEmpty() {
		t.Errorf("expected no entries from day 2, got %+v", later.Proposals[0].Entries)
	}
}

func TestProvisioningUnknownAccount(t *testing.T) {
	dir := t.TempDir()
	registry := writeFile(t, dir, "contas.csv", registryCSV)
	statement := writeFile(t, dir, "extrato.csv", "data;valor;agencia;conta", "01/03/2024;-10,00;2205;642886")

	_, err := newTestService(t).ProposeProvisioning(context.Background(), &ProvisioningRequest{
		RegistryFile:   registry,
		StatementFiles: []string{statement},
		Accounts:       []string{"1111222"},
		Start:          day("2024-03-01"),
		End:            day("2024-03-01"),
	})
	if !errors.HasCode(err, errors.CodeInvalidData) {
		t.Fatalf("expected invalid data for unknown account, got %v", err)
	}
}

func TestMatchInstallments(t *testing.T) {
	dir := t.TempDir()
	schedule := writeFile(t, dir, "parcelas.csv",
		"parcelamento;parcela;vencimento;valor_originario;saldo_atualizado;situacao",
		"123;1;10/04/2024;300,00;;Paga",
		"123;2;10/05/2024;300,00;;A vencer",
		"123;3;10/06/2024;300,00;;A vencer",
	)
	plans := writeFile(t, dir, "planos.csv",
		"numero_parcelamento;orgao;valor_principal;valor_multa;valor_juros;conta_contabil_principal;conta_contabil_multa;conta_contabil_juros;conta_contabil_banco",
		"123;PGFN;700;200;100;2.1.4.01;4.2.1.01;4.2.1.02;1.1.1.01",
	)
	statement := writeFile(t, dir, "extrato.csv",
		"data;valor;historico;agencia;conta",
		"12/05/2024;-299,50;DARF PARCELAMENTO;2205;642886",
		"12/05/2024;299,50;ESTORNO;2205;642886",
	)

	service := newTestService(t)
	request := &InstallmentRequest{
		InstallmentFile: schedule,
		PlanFile:        plans,
		StatementFiles:  []string{statement},
		Account:         "2205-0000642886",
		AsOf:            day("2024-05-31"),
	}

	t.Run("propose", func(t *testing.T) {
		outcome, err := service.MatchInstallments(context.Background(), request)
		if err != nil {
			t.Fatalf("MatchInstallments() error = %v", err)
		}
		if len(outcome.Proposals) != 1 || outcome.Proposals[0].InstallmentID != "123-002" {
			t.Fatalf("expected installment 2 matched, got %+v", outcome.Proposals)
		}
		if len(outcome.Unmatched) != 1 || outcome.Unmatched[0].ID != "123-003" {
			t.Errorf("expected installment 3 still open, got %+v", outcome.Unmatched)
		}
		if outcome.Installments[1].IsPaid() || len(outcome.Postings) != 0 {
			t.Error("proposals must not change installments or book payments")
		}
		// installment 2 is past due on the summary date until it is applied
		if len(outcome.Summaries) != 1 || outcome.Summaries[0].Overdue != 1 || outcome.Summaries[0].Pending != 1 {
			t.Errorf("unexpected summaries %+v", outcome.Summaries)
		}
	})

	t.Run("apply", func(t *testing.T) {
		applied := *request
		applied.Apply = true
		outcome, err := service.MatchInstallments(context.Background(), &applied)
		if err != nil {
			t.Fatalf("MatchInstallments() error = %v", err)
		}

		paid := outcome.Installments[1]
		if !paid.IsPaid() || paid.PaidAt == nil || !paid.PaidAt.Equal(day("2024-05-12")) ||
			!paid.PaidAmount.Equal(decimal.RequireFromString("299.50")) {
			t.Errorf("unexpected paid installment %+v", paid)
		}

		if len(outcome.Postings) != 3 {
			t.Fatalf("expected principal, fine and interest postings, got %d", len(outcome.Postings))
		}
		total := decimal.Zero
		for _, p := range outcome.Postings {
			total = total.Add(p.Amount)
			if p.CreditAccount != "1.1.1.01" || p.Origin != models.OriginInstallment {
				t.Errorf("unexpected posting %s", p.String())
			}
		}
		if !total.Equal(decimal.RequireFromString("299.50")) {
			t.Errorf("postings should add up to the payment, got %s", total)
		}

		s := outcome.Summaries[0]
		if s.Total != 3 || s.Paid != 2 || s.Pending != 1 || !s.Outstanding.Equal(decimal.NewFromInt(300)) {
			t.Errorf("unexpected summary %+v", s)
		}
	})
}

func TestCheckLedger(t *testing.T) {
	dir := t.TempDir()
	book := writeFile(t, dir, "razao.csv",
		"idlancamento;lote;data_lancamento;historico;valor;reduz_deb;reduz_cred",
		"L1;A;10/03/2024;Simples;100,00;1.1;2.1",
		"L2;B;11/03/2024;Partida dobrada;100,00;1.2;",
		"L3;B;11/03/2024;Partida dobrada;90,00;;2.1",
		"L4;C;10/04/2024;Fora do periodo;100,00;1.2;",
	)

	start, end := day("2024-03-01"), day("2024-03-31")
	report, stats, err := newTestService(t).CheckLedger(context.Background(), book, DateRange{Start: &start, End: &end})
	if err != nil {
		t.Fatalf("CheckLedger() error = %v", err)
	}
	if stats.RecordsValid != 4 {
		t.Errorf("expected 4 postings read, got %d", stats.RecordsValid)
	}
	if report.BatchesChecked != 2 || report.Count() != 1 || report.Batches[0].BatchID != "B" {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestCompareBalances(t *testing.T) {
	dir := t.TempDir()
	registry := writeFile(t, dir, "contas.csv", registryCSV)
	statement := writeFile(t, dir, "extrato.csv",
		"data;valor;historico;agencia;conta",
		"01/03/2024;-1.500,00;PAGAMENTO;2205;642886",
		"05/03/2024;200,00;DEPOSITO;2205;642886",
		"05/03/2024;-10,00;TARIFA;0033;1234",
	)
	book := writeFile(t, dir, "razao.csv",
		"idlancamento;lote;data_lancamento;historico;valor;reduz_deb;reduz_cred;origem",
		"L1;B1;01/03/2024;Pagamento;1.500,00;4.1.1;1.1.1.01;",
		"L2;B2;05/03/2024;Deposito;200,00;1.1.1.01;3.1.1;",
		"L3;B3;01/03/2024;Provisao;500,00;1.1.1.01;2.1.9.01;negative_balance_adjustment",
	)

	comparisons, err := newTestService(t).CompareBalances(context.Background(), &BalanceRequest{
		RegistryFile:   registry,
		StatementFiles: []string{statement},
		LedgerFile:     book,
		Start:          day("2024-03-01"),
		End:            day("2024-03-05"),
	})
	if err != nil {
		t.Fatalf("CompareBalances() error = %v", err)
	}
	if len(comparisons) != 2 {
		t.Fatalf("expected 2 comparisons, got %d", len(comparisons))
	}

	bb := comparisons[0]
	if !bb.BankClosing.Equal(decimal.NewFromInt(-300)) || !bb.LedgerClosing.Equal(decimal.NewFromInt(-300)) {
		t.Errorf("unexpected closings bank %s ledger %s", bb.BankClosing, bb.LedgerClosing)
	}
	if !bb.LedgerDebits.Equal(decimal.NewFromInt(200)) || !bb.LedgerCredits.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("unexpected ledger movements %s/%s", bb.LedgerDebits, bb.LedgerCredits)
	}
	if bb.Status != ledger.StatusReconciled {
		t.Errorf("expected reconciled, got %s", bb.Status)
	}

	bradesco := comparisons[1]
	if bradesco.AccountKey != "00331234" || bradesco.Status != ledger.StatusUnreconciled ||
		!bradesco.Difference.Equal(decimal.NewFromInt(-10)) {
		t.Errorf("unexpected comparison %+v", bradesco)
	}
}
