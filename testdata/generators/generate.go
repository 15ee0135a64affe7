// Command generate writes a synthetic reconciliation dataset: an account
// registry, a month of bank statement rows, the ledger postings that should
// reconcile against them and an installment schedule paid from the account.
//
//	go run ./testdata/generators -output-dir ./generated -rows 500 -seed 42
//
// The ledger side is derived from the statements so every matching pass has
// work to do: most rows are copied exactly, some shifted by a day or by a few
// days, some off by a few cents, and a share is left without counterpart.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type account struct {
	bank, agency, number, description string
	primary, contra                   string
	opening                           decimal.Decimal
}

var accounts = []account{
	{"001", "2205", "0000642886", "BB Movimento", "1.1.1.01", "2.1.9.01", decimal.NewFromInt(1000)},
	{"237", "0033", "0001234", "Bradesco Cobranca", "1.1.1.02", "2.1.9.02", decimal.NewFromInt(250)},
}

var descriptions = []string{"TARIFA", "PIX ENVIADO", "PIX RECEBIDO", "TED", "BOLETO PAGO", "DEPOSITO", "IOF"}

type statementRow struct {
	doc     string
	date    time.Time
	value   decimal.Decimal
	history string
	acct    account
}

type generator struct {
	rng        *rand.Rand
	start      time.Time
	days       int
	rows       int
	unmatched  float64
	dayShift   float64
	centsDrift float64
}

func main() {
	var (
		outputDir  = flag.String("output-dir", "generated", "directory for the generated files")
		rows       = flag.Int("rows", 200, "statement rows to generate")
		month      = flag.String("month", "2024-03", "month covered by the statements (YYYY-MM)")
		unmatched  = flag.Float64("unmatched", 0.1, "share of statement rows without ledger counterpart")
		dayShift   = flag.Float64("day-shift", 0.15, "share of ledger postings booked on another day")
		centsDrift = flag.Float64("cents-drift", 0.05, "share of ledger postings off by a few cents")
		seed       = flag.Int64("seed", time.Now().UnixNano(), "random seed for reproducible generation")
	)
	flag.Parse()

	start, err := time.Parse("2006-01", *month)
	if err != nil {
		log.Fatalf("Invalid month: %v", err)
	}

	g := &generator{
		rng:        rand.New(rand.NewSource(*seed)),
		start:      start,
		days:       start.AddDate(0, 1, -1).Day(),
		rows:       *rows,
		unmatched:  *unmatched,
		dayShift:   *dayShift,
		centsDrift: *centsDrift,
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	statements := g.statements()
	files := map[string][][]string{
		"contas.csv":        g.registryRecords(),
		"extrato.csv":       g.statementRecords(statements),
		"razao.csv":         g.ledgerRecords(statements),
		"parcelas.csv":      g.installmentRecords(),
		"parcelamentos.csv": g.planRecords(),
	}
	for name, records := range files {
		path := filepath.Join(*outputDir, name)
		if err := writeCSV(path, records); err != nil {
			log.Fatalf("Failed to write %s: %v", path, err)
		}
		fmt.Printf("Generated %s (%d rows)\n", path, len(records)-1)
	}
	fmt.Printf("Seed used: %d\n", *seed)
}

func writeCSV(path string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	w.Comma = ';'
	if err := w.WriteAll(records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func brl(d decimal.Decimal) string {
	return strings.Replace(d.StringFixed(2), ".", ",", 1)
}

func brDate(t time.Time) string {
	return t.Format("02/01/2006")
}

func (g *generator) statements() []statementRow {
	out := make([]statementRow, g.rows)
	for i := range out {
		value := decimal.NewFromInt(g.rng.Int63n(500000) + 100).Shift(-2)
		history := descriptions[g.rng.Intn(len(descriptions))]
		if history != "PIX RECEBIDO" && history != "DEPOSITO" {
			value = value.Neg()
		}
		out[i] = statementRow{
			doc:     fmt.Sprintf("%06d", i+1),
			date:    g.start.AddDate(0, 0, g.rng.Intn(g.days)),
			value:   value,
			history: history,
			acct:    accounts[g.rng.Intn(len(accounts))],
		}
	}
	// payment of the installment due on the 10th, two days late
	return append(out, statementRow{
		doc:     fmt.Sprintf("%06d", g.rows+1),
		date:    time.Date(g.start.Year(), g.start.Month(), 12, 0, 0, 0, 0, time.UTC),
		value:   decimal.RequireFromString("-299.50"),
		history: "DARF PARCELAMENTO",
		acct:    accounts[0],
	})
}

func (g *generator) registryRecords() [][]string {
	records := [][]string{{"banco", "agencia", "conta", "descricao", "conta_contabil", "conta_saldo_negativo",
		"saldo_inicial", "data_saldo_inicial"}}
	opening := brDate(g.start.AddDate(0, 0, -1))
	for _, a := range accounts {
		records = append(records, []string{a.bank, a.agency, a.number, a.description, a.primary, a.contra,
			brl(a.opening), opening})
	}
	return records
}

func (g *generator) statementRecords(rows []statementRow) [][]string {
	records := [][]string{{"documento", "data", "valor", "historico", "agencia", "conta"}}
	for _, r := range rows {
		records = append(records, []string{r.doc, brDate(r.date), brl(r.value), r.history, r.acct.agency, r.acct.number})
	}
	return records
}

// ledgerRecords books each statement row against the primary account of its
// bank account. Credits on the bank become ledger debits and the other way round.
func (g *generator) ledgerRecords(rows []statementRow) [][]string {
	records := [][]string{{"idlancamento", "lote", "data_lancamento", "historico", "valor", "reduz_deb", "reduz_cred"}}
	for i, r := range rows {
		if g.rng.Float64() < g.unmatched {
			continue
		}

		date := r.date
		amount := r.value.Abs()
		switch p := g.rng.Float64(); {
		case p < g.dayShift/2:
			date = date.AddDate(0, 0, 1)
		case p < g.dayShift:
			date = date.AddDate(0, 0, 2+g.rng.Intn(4))
		case p < g.dayShift+g.centsDrift:
			amount = amount.Add(decimal.NewFromInt(int64(g.rng.Intn(5) + 1)).Shift(-2))
		}

		debit, credit := "4.1.1.01", r.acct.primary
		if r.value.IsPositive() {
			debit, credit = r.acct.primary, "3.1.1.01"
		}
		records = append(records, []string{
			fmt.Sprintf("L%06d", i+1),
			fmt.Sprintf("B%06d", i+1),
			brDate(date),
			strings.ToLower(r.history),
			brl(amount),
			debit,
			credit,
		})
	}
	return records
}

func (g *generator) installmentRecords() [][]string {
	records := [][]string{{"parcelamento", "parcela", "vencimento", "valor_originario", "saldo_atualizado", "situacao"}}
	for n := 1; n <= 12; n++ {
		status := "A vencer"
		if n < 3 {
			status = "Paga"
		}
		due := time.Date(g.start.Year(), g.start.Month(), 10, 0, 0, 0, 0, time.UTC).AddDate(0, n-3, 0)
		records = append(records, []string{"123", fmt.Sprint(n), brDate(due), "300,00", "", status})
	}
	return records
}

func (g *generator) planRecords() [][]string {
	return [][]string{
		{"numero_parcelamento", "orgao", "valor_principal", "valor_multa", "valor_juros",
			"conta_contabil_principal", "conta_contabil_multa", "conta_contabil_juros", "conta_contabil_banco"},
		{"123", "PGFN", "2520,00", "720,00", "360,00", "2.1.4.01", "4.2.1.01", "4.2.1.02", accounts[0].primary},
	}
}
