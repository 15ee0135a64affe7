package parsers

import (
	"fmt"
	"strings"
)

// Supported input encodings
const (
	EncodingUTF8   = "utf-8"
	EncodingLatin1 = "latin1"
)

// Options holds the file-level settings shared by every importer
type Options struct {
	Delimiter rune
	Encoding  string
	// MaxErrors stops an import after that many bad rows. Zero is unlimited.
	MaxErrors int
	// Sheet selects the XLSX worksheet. Empty means the first one.
	Sheet string
}

// DefaultOptions reads semicolon separated UTF-8 files
func DefaultOptions() Options {
	return Options{
		Delimiter: ';',
		Encoding:  EncodingUTF8,
	}
}

// NormalizeEncoding maps the usual spellings of an encoding name to the
// supported constants
func NormalizeEncoding(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf8", "utf-8":
		return EncodingUTF8
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1", "windows-1252", "cp1252":
		return EncodingLatin1
	default:
		return name
	}
}

// Validate checks that the options can be used to open a file
func (o Options) Validate() error {
	if o.Delimiter == 0 || o.Delimiter == '\n' || o.Delimiter == '\r' || o.Delimiter == '"' {
		return fmt.Errorf("invalid delimiter %q", o.Delimiter)
	}
	switch NormalizeEncoding(o.Encoding) {
	case EncodingUTF8, EncodingLatin1:
	default:
		return fmt.Errorf("unsupported encoding %q", o.Encoding)
	}
	if o.MaxErrors < 0 {
		return fmt.Errorf("max errors cannot be negative, got %d", o.MaxErrors)
	}
	return nil
}

// Column is one logical field of a layout and the header names it accepts
type Column struct {
	Name     string
	Aliases  []string
	Required bool
}

// Layout describes the columns an importer understands
type Layout struct {
	Name    string
	Columns []Column
}

// resolve maps each column name of the layout to its index in headers.
// Headers are compared after accent folding, so "Histórico" matches
// "historico".
func (l Layout) resolve(headers []string) (map[string]int, []string) {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		key := normalizeHeader(h)
		if _, seen := index[key]; !seen {
			index[key] = i
		}
	}

	columns := make(map[string]int, len(l.Columns))
	var missing []string
	for _, c := range l.Columns {
		found := -1
		for _, name := range append([]string{c.Name}, c.Aliases...) {
			if i, ok := index[normalizeHeader(name)]; ok {
				found = i
				break
			}
		}
		if found >= 0 {
			columns[c.Name] = found
		} else if c.Required {
			missing = append(missing, c.Name)
		}
	}
	return columns, missing
}

// requiredNames lists the required columns, for error messages
func (l Layout) requiredNames() []string {
	var names []string
	for _, c := range l.Columns {
		if c.Required {
			names = append(names, c.Name)
		}
	}
	return names
}

// Normalized layouts. Aliases cover the Portuguese headers of common exports.
var (
	BankStatementLayout = Layout{
		Name: "bank statement",
		Columns: []Column{
			{Name: "id", Aliases: []string{"documento", "doc", "numero", "source_id"}},
			{Name: "date", Aliases: []string{"data", "data_lancamento", "posting_date"}, Required: true},
			{Name: "value", Aliases: []string{"valor", "amount"}, Required: true},
			{Name: "description", Aliases: []string{"historico", "descricao", "lancamento"}},
			{Name: "bank", Aliases: []string{"banco", "bank_code", "codigo_banco"}},
			{Name: "branch", Aliases: []string{"agencia"}},
			{Name: "account", Aliases: []string{"conta", "conta_corrente"}},
			{Name: "account_key", Aliases: []string{"chave", "chave_conta"}},
		},
	}

	LedgerLayout = Layout{
		Name: "ledger",
		Columns: []Column{
			{Name: "ledger_id", Aliases: []string{"id", "idlancamento", "lancamento"}, Required: true},
			{Name: "batch_id", Aliases: []string{"lote", "batch"}},
			{Name: "date", Aliases: []string{"data", "data_lancamento", "posting_date"}, Required: true},
			{Name: "narrative", Aliases: []string{"historico", "descricao"}},
			{Name: "amount", Aliases: []string{"valor", "value"}, Required: true},
			{Name: "debit", Aliases: []string{"reduz_deb", "conta_debito", "debit_account"}},
			{Name: "credit", Aliases: []string{"reduz_cred", "conta_credito", "credit_account"}},
			{Name: "origin", Aliases: []string{"origem"}},
			{Name: "bank_account", Aliases: []string{"conta_bancaria", "linked_bank_account"}},
		},
	}

	RegistryLayout = Layout{
		Name: "account registry",
		Columns: []Column{
			{Name: "account_key", Aliases: []string{"chave", "chave_conta"}},
			{Name: "bank", Aliases: []string{"banco", "codigo_banco", "bank_code"}},
			{Name: "branch", Aliases: []string{"agencia"}},
			{Name: "account", Aliases: []string{"conta", "conta_corrente"}},
			{Name: "description", Aliases: []string{"descricao", "nome"}},
			{Name: "primary_account", Aliases: []string{"conta_contabil", "primary_account_code"}, Required: true},
			{Name: "contra_account", Aliases: []string{"conta_saldo_negativo", "contra_account_code"}},
			{Name: "opening_balance", Aliases: []string{"saldo_inicial"}},
			{Name: "opening_date", Aliases: []string{"data_saldo_inicial", "opening_balance_date"}},
		},
	}

	InstallmentLayout = Layout{
		Name: "installments",
		Columns: []Column{
			{Name: "id", Aliases: []string{"installment_id"}},
			{Name: "plan", Aliases: []string{"parcelamento", "numero_parcelamento", "plan_number"}, Required: true},
			{Name: "number", Aliases: []string{"parcela", "numero_parcela"}, Required: true},
			{Name: "due_date", Aliases: []string{"vencimento", "data_vencimento"}, Required: true},
			{Name: "original_amount", Aliases: []string{"valor_originario", "valor"}, Required: true},
			{Name: "updated_balance", Aliases: []string{"saldo_atualizado"}},
			{Name: "status", Aliases: []string{"situacao"}},
			{Name: "paid_at", Aliases: []string{"data_pagamento"}},
			{Name: "paid_amount", Aliases: []string{"valor_pago"}},
			{Name: "bank_transaction_id", Aliases: []string{"transacao_bancaria"}},
		},
	}

	PlanLayout = Layout{
		Name: "installment plans",
		Columns: []Column{
			{Name: "plan", Aliases: []string{"numero_parcelamento", "parcelamento", "number"}, Required: true},
			{Name: "agency", Aliases: []string{"orgao"}},
			{Name: "principal_amount", Aliases: []string{"valor_principal"}},
			{Name: "fine_amount", Aliases: []string{"valor_multa"}},
			{Name: "interest_amount", Aliases: []string{"valor_juros"}},
			{Name: "principal_account", Aliases: []string{"conta_contabil_principal"}},
			{Name: "fine_account", Aliases: []string{"conta_contabil_multa"}},
			{Name: "interest_account", Aliases: []string{"conta_contabil_juros"}},
			{Name: "bank_account", Aliases: []string{"conta_contabil_banco"}},
		},
	}
)
