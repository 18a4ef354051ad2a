// Package currency は金額を基準通貨に換算する。
package currency

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
	"gopkg.in/yaml.v3"
)

// ReferenceCode は組み込みレート表の基準通貨。
const ReferenceCode = "SAR"

var symbols = map[string]string{
	"SAR": "ر.س",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"CAD": "C$",
}

// Normalizer は静的なレート表で金額を基準通貨に換算する。
// 生成後は変更されないため、複数のgoroutineから安全に利用できる。
type Normalizer struct {
	reference string
	rates     map[string]decimal.Decimal
}

// DefaultRates は組み込みのレート表（1単位あたりのSAR）を返す。
func DefaultRates() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"SAR": decimal.NewFromInt(1),
		"USD": decimal.RequireFromString("3.75"),
		"EUR": decimal.RequireFromString("4.1"),
		"GBP": decimal.RequireFromString("4.8"),
		"CAD": decimal.RequireFromString("2.8"),
	}
}

// NewNormalizer はレート表からNormalizerを生成する。ratesはコピーして保持する。
func NewNormalizer(reference string, rates map[string]decimal.Decimal) *Normalizer {
	copied := make(map[string]decimal.Decimal, len(rates))
	for code, r := range rates {
		copied[strings.ToUpper(code)] = r
	}
	return &Normalizer{reference: strings.ToUpper(reference), rates: copied}
}

// NewDefaultNormalizer は組み込みレート表のNormalizerを生成する。
func NewDefaultNormalizer() *Normalizer {
	return NewNormalizer(ReferenceCode, DefaultRates())
}

// Reference は基準通貨コードを返す。
func (n *Normalizer) Reference() string {
	return n.reference
}

// Rate は通貨コードのレートを返す。未知の通貨は1として扱う。
func (n *Normalizer) Rate(code string) decimal.Decimal {
	if r, ok := n.rates[strings.ToUpper(code)]; ok {
		return r
	}
	return decimal.NewFromInt(1)
}

// ToReference は金額を基準通貨に換算する。失敗することはない。
func (n *Normalizer) ToReference(amount decimal.Decimal, code string) decimal.Decimal {
	return amount.Mul(n.Rate(code))
}

type ratesFile struct {
	Reference string             `yaml:"reference"`
	Rates     map[string]float64 `yaml:"rates"`
}

// LoadRates はYAMLのレート定義ファイルを読み込んでNormalizerを生成する。
//
//	reference: SAR
//	rates:
//	  USD: 3.75
//
// 基準通貨のレートは1でなければならない（省略時は1を補う）。
func LoadRates(path string) (*Normalizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("レートファイルの読み込みに失敗しました: %w", err)
	}
	var f ratesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("レートファイルの解析に失敗しました: %w", err)
	}
	if f.Reference == "" {
		f.Reference = ReferenceCode
	}
	ref := strings.ToUpper(f.Reference)
	if _, err := currency.ParseISO(ref); err != nil {
		return nil, fmt.Errorf("基準通貨コードが不正です %q: %w", f.Reference, err)
	}

	rates := make(map[string]decimal.Decimal, len(f.Rates)+1)
	for code, r := range f.Rates {
		upper := strings.ToUpper(code)
		if _, err := currency.ParseISO(upper); err != nil {
			return nil, fmt.Errorf("通貨コードが不正です %q: %w", code, err)
		}
		if r <= 0 {
			return nil, fmt.Errorf("%sのレートは正の値でなければなりません", upper)
		}
		rates[upper] = decimal.NewFromFloat(r)
	}
	if r, ok := rates[ref]; ok && !r.Equal(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("基準通貨%sのレートは1でなければなりません: %s", ref, r)
	}
	rates[ref] = decimal.NewFromInt(1)

	return NewNormalizer(ref, rates), nil
}

// Symbol は通貨記号を返す。既知でない場合は通貨コードを返す。
func Symbol(code string) string {
	if s, ok := symbols[strings.ToUpper(code)]; ok {
		return s
	}
	return strings.ToUpper(code)
}

var printer = message.NewPrinter(language.English)

// Format は金額を記号付き・小数2桁・桁区切りで整形する。
func Format(amount decimal.Decimal, code string) string {
	f, _ := amount.Round(2).Float64()
	formatted := printer.Sprint(number.Decimal(f, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
	return Symbol(code) + " " + formatted
}
