package models

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func date(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestNormalizeAccountKey(t *testing.T) {
	tests := []struct {
		name    string
		branch  string
		account string
		want    string
	}{
		{"padded account", "2205", "0000642886", "2205642886"},
		{"plain account", "2205", "642886", "2205642886"},
		{"short branch", "205", "642886", "0205642886"},
		{"punctuation", "2205-1", "64.288-6", "22051642886"},
		{"all zero account", "2205", "000", "22050"},
		{"empty", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeAccountKey(tt.branch, tt.account); got != tt.want {
				t.Errorf("NormalizeAccountKey(%q, %q) = %q, want %q", tt.branch, tt.account, got, tt.want)
			}
		})
	}
}

func TestNormalizeAccountKeyIsDeterministic(t *testing.T) {
	a := NormalizeAccountKey("2205", "0000642886")
	b := NormalizeAccountKey("2205", "642886")
	if a != b || a != "2205642886" {
		t.Errorf("expected both keys to be 2205642886, got %q and %q", a, b)
	}
}

func TestNormalizeRawKey(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"22050000642886", "2205642886"},
		{"2205642886", "2205642886"},
		{"2205-0000642886", "2205642886"},
		{"1234", "1234"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := NormalizeRawKey(tt.raw); got != tt.want {
				t.Errorf("NormalizeRawKey(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestAssignTransactionIDs(t *testing.T) {
	row := NewBankTransaction("OFX1", date("2024-03-10"), decimal.NewFromInt(-150), "PIX", "001", "2205642886")
	other := NewBankTransaction("OFX2", date("2024-03-10"), decimal.NewFromInt(-150), "PIX", "001", "2205642886")

	input := []BankTransaction{row, row, other, row}
	got := AssignTransactionIDs(input)

	if len(got) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(got))
	}
	if input[0].ID != "" {
		t.Error("expected input rows to be left untouched")
	}

	seen := make(map[string]bool)
	for _, r := range got {
		if len(r.ID) != 32 {
			t.Errorf("expected md5 hex id, got %q", r.ID)
		}
		if seen[r.ID] {
			t.Errorf("duplicate id %s", r.ID)
		}
		seen[r.ID] = true
	}

	again := AssignTransactionIDs(input)
	for i := range got {
		if got[i].ID != again[i].ID {
			t.Errorf("row %d: ids differ between runs: %s vs %s", i, got[i].ID, again[i].ID)
		}
	}

	if got[0].ID != hashKey(row.identityKey()) {
		t.Error("expected first occurrence to hash the plain content key")
	}
	if got[1].ID != hashKey(row.identityKey()+"_DUP1") {
		t.Error("expected second occurrence to use the _DUP1 suffix")
	}
	if got[3].ID != hashKey(row.identityKey()+"_DUP2") {
		t.Error("expected third occurrence to use the _DUP2 suffix")
	}
}

func TestLedgerPostingAccounts(t *testing.T) {
	tests := []struct {
		name    string
		posting LedgerPosting
		want    []string
	}{
		{"both sides", LedgerPosting{DebitAccount: "D", CreditAccount: "C", LinkedBankAccount: "L"}, []string{"D", "C"}},
		{"credit only", LedgerPosting{CreditAccount: "C"}, []string{"C"}},
		{"same account twice", LedgerPosting{DebitAccount: "D", CreditAccount: "D"}, []string{"D"}},
		{"none", LedgerPosting{}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.posting.Accounts(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Accounts() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLedgerPostingTouches(t *testing.T) {
	p := LedgerPosting{DebitAccount: "101", CreditAccount: "202"}
	if !p.Touches("101") || !p.Touches("202") {
		t.Error("expected posting to touch both accounts")
	}
	if p.Touches("") || p.Touches("303") {
		t.Error("expected posting not to touch unrelated or empty accounts")
	}
}

func TestParseOrigin(t *testing.T) {
	tests := map[string]Origin{
		"Manual":                     OriginManual,
		"ajuste saldo negativo":      OriginNegativeBalanceAdjustment,
		"conta negativa":             OriginNegativeBalanceAdjustment,
		"Conta Contábil Negativa":    OriginNegativeBalanceAdjustment,
		" CONTA  CONTABIL NEGATIVA ": OriginNegativeBalanceAdjustment,
		"Parcelamento":               OriginInstallment,
		"":                           OriginImported,
		"whatever":                   OriginImported,
	}
	for in, want := range tests {
		if got := ParseOrigin(in); got != want {
			t.Errorf("ParseOrigin(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAccountRegistryLinkStatement(t *testing.T) {
	registry, err := NewAccountRegistry([]AccountRegistryEntry{
		{Branch: "2205", Account: "0000642886", PrimaryAccountCode: "1010"},
		{AccountKey: "33330001", PrimaryAccountCode: ""},
	})
	if err != nil {
		t.Fatalf("NewAccountRegistry() error = %v", err)
	}

	rows := []BankTransaction{
		{AccountKey: "2205642886"},
		{AccountKey: "3333000001"},
		{AccountKey: "9999123"},
	}
	linked := registry.LinkStatement(rows)

	if linked[0].LinkedAccountCode != "1010" {
		t.Errorf("expected registered account to link to 1010, got %q", linked[0].LinkedAccountCode)
	}
	if linked[1].LinkedAccountCode != "" {
		t.Errorf("expected account without primary code to stay unlinked, got %q", linked[1].LinkedAccountCode)
	}
	if linked[2].LinkedAccountCode != "" {
		t.Errorf("expected unregistered account to stay unlinked, got %q", linked[2].LinkedAccountCode)
	}
}

func TestAccountRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewAccountRegistry([]AccountRegistryEntry{
		{Branch: "2205", Account: "642886"},
		{AccountKey: "22050000642886"},
	})
	if err == nil {
		t.Error("expected duplicate key to be rejected")
	}
}

func TestHasProvisioningAccounts(t *testing.T) {
	e := AccountRegistryEntry{PrimaryAccountCode: "1010"}
	if e.HasProvisioningAccounts() {
		t.Error("expected missing contra account to be reported")
	}
	e.ContraAccountCode = "2020"
	if !e.HasProvisioningAccounts() {
		t.Error("expected both accounts to be configured")
	}
}

func TestParseBRLDecimal(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"1.234,56", "1234.56", false},
		{"-1234.56", "-1234.56", false},
		{"R$ 10,00", "10", false},
		{"1,234.56", "1234.56", false},
		{"(150,00)", "-150", false},
		{"-299,50", "-299.5", false},
		{"", "", true},
		{"abc", "", true},
		{"1,2,3", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBRLDecimal(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBRLDecimal(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("ParseBRLDecimal(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseDateWithFormats(t *testing.T) {
	want := date("2024-03-10")
	for _, in := range []string{"2024-03-10", "10/03/2024", "10032024", "2024-03-10 15:04:05"} {
		got, err := ParseDateWithFormats(in)
		if err != nil {
			t.Errorf("ParseDateWithFormats(%q) error = %v", in, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseDateWithFormats(%q) = %s, want %s", in, got, want)
		}
	}

	if _, err := ParseDateWithFormats("31/02/2024"); err == nil {
		t.Error("expected invalid calendar date to fail")
	}
}

func TestDaysBetween(t *testing.T) {
	if got := DaysBetween(date("2024-05-10"), date("2024-05-12")); got != 2 {
		t.Errorf("DaysBetween() = %d, want 2", got)
	}
	if got := DaysBetween(date("2024-05-12"), date("2024-05-10")); got != -2 {
		t.Errorf("DaysBetween() = %d, want -2", got)
	}
	if got := AbsDays(date("2024-05-12"), date("2024-05-10")); got != 2 {
		t.Errorf("AbsDays() = %d, want 2", got)
	}
}

func TestNormalizeInstallmentStatus(t *testing.T) {
	tests := map[string]InstallmentStatus{
		"Paga":      InstallmentPaid,
		"Liquidada": InstallmentPaid,
		"QUITADA":   InstallmentPaid,
		"Vencida":   InstallmentOverdue,
		"Devedora":  InstallmentDebtor,
		"A vencer":  InstallmentPending,
		"":          InstallmentPending,
	}
	for in, want := range tests {
		if got := NormalizeInstallmentStatus(in); got != want {
			t.Errorf("NormalizeInstallmentStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInstallmentAmount(t *testing.T) {
	i := Installment{OriginalAmount: decimal.NewFromInt(300)}
	if !i.Amount().Equal(decimal.NewFromInt(300)) {
		t.Errorf("expected original amount fallback, got %s", i.Amount())
	}
	i.UpdatedBalance = decimal.NewFromInt(320)
	if !i.Amount().Equal(decimal.NewFromInt(320)) {
		t.Errorf("expected updated balance, got %s", i.Amount())
	}
}

func TestAdjustmentRoundTrip(t *testing.T) {
	entry := AdjustmentEntry{
		ID:            "a1",
		BatchID:       "b1",
		AccountKey:    "2205642886",
		Date:          date("2024-03-10"),
		Direction:     DirectionReversal,
		Amount:        decimal.NewFromInt(200),
		DebitAccount:  "2020",
		CreditAccount: "1010",
		Origin:        OriginNegativeBalanceAdjustment,
	}

	if !entry.SignedAmount().Equal(decimal.NewFromInt(-200)) {
		t.Errorf("expected reversal to be negative, got %s", entry.SignedAmount())
	}

	back, err := AdjustmentFromPosting(entry.ToPosting(), "1010")
	if err != nil {
		t.Fatalf("AdjustmentFromPosting() error = %v", err)
	}
	if back.Direction != DirectionReversal || !back.Amount.Equal(entry.Amount) {
		t.Errorf("unexpected adjustment %+v", back)
	}

	if _, err := AdjustmentFromPosting(LedgerPosting{Origin: OriginManual}, "1010"); err == nil {
		t.Error("expected non-adjustment posting to be rejected")
	}
}
