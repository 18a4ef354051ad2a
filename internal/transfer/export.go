package transfer

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/hitoshi/subman/internal/model"
)

// DefaultBaseName はエクスポートファイル名の既定の接頭辞。
const DefaultBaseName = "subscriptions"

// SheetName はxlsx出力のシート名。
const SheetName = "Subscriptions"

// Normalizer は金額を基準通貨に換算するインターフェース。
type Normalizer interface {
	ToReference(amount decimal.Decimal, code string) decimal.Decimal
	Reference() string
}

// referenceAmountColumn は基準通貨建て金額の列。見出しに基準通貨コードを含める。
const referenceAmountColumn = 3

var tableColumns = []struct {
	header string
	width  float64
}{
	{"Service Name", 20},
	{"Amount", 10},
	{"Currency", 8},
	{"Amount (%s)", 12},
	{"Frequency", 12},
	{"Next Payment", 12},
	{"Start Date", 12},
	{"Website", 25},
	{"Auto Renewal", 12},
	{"Labels", 20},
	{"Comment", 30},
	{"Created", 12},
	{"Updated", 12},
}

// ExportJSON は全項目を2スペースでインデントしたJSON配列として出力する。
func ExportJSON(subs []*model.Subscription) ([]byte, error) {
	records := make([]Record, len(subs))
	for i, sub := range subs {
		records[i] = FromSubscription(sub)
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("JSONの生成に失敗しました: %w", err)
	}
	return data, nil
}

// ExportTable は表示向けに整形した1シートのxlsxを出力する。
// 作成日・更新日はlocのタイムゾーンで日付に変換する。
func ExportTable(subs []*model.Subscription, n Normalizer, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("シート名の設定に失敗しました: %w", err)
	}

	header := make([]any, len(tableColumns))
	for i, col := range tableColumns {
		header[i] = col.header
		if i == referenceAmountColumn {
			header[i] = fmt.Sprintf(col.header, n.Reference())
		}
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(SheetName, name, name, col.width); err != nil {
			return nil, fmt.Errorf("列幅の設定に失敗しました: %w", err)
		}
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("ヘッダー行の書き込みに失敗しました: %w", err)
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(tableColumns))
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", style); err != nil {
		return nil, err
	}

	for i, sub := range subs {
		row := tableRow(sub, n, loc)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("%d行目の書き込みに失敗しました: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsxの生成に失敗しました: %w", err)
	}
	return buf.Bytes(), nil
}

func tableRow(sub *model.Subscription, n Normalizer, loc *time.Location) []any {
	startDate := ""
	if sub.StartDate != nil {
		startDate = sub.StartDate.Format(model.DateLayout)
	}
	autoRenewal := "No"
	if sub.AutoRenewal {
		autoRenewal = "Yes"
	}
	return []any{
		sub.Name,
		sub.Amount.InexactFloat64(),
		sub.Currency,
		n.ToReference(sub.Amount, sub.Currency).Round(2).InexactFloat64(),
		string(sub.Frequency),
		sub.NextPayment.Format(model.DateLayout),
		startDate,
		sub.URL,
		autoRenewal,
		strings.Join(sub.Labels, ", "),
		sub.Comment,
		sub.CreatedAt.In(loc).Format(model.DateLayout),
		sub.UpdatedAt.In(loc).Format(model.DateLayout),
	}
}

// ExportFilename は"subscriptions-2024-03-15.json"形式のファイル名を返す。
func ExportFilename(base, ext string, now time.Time) string {
	if base == "" {
		base = DefaultBaseName
	}
	return fmt.Sprintf("%s-%s.%s", base, now.UTC().Format(model.DateLayout), ext)
}
