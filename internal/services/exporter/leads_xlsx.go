// Package exporter はマーケティング向けのリードをExcelファイルに書き出します。
package exporter

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/trading-academy/academy-web/internal/models"
)

// ContentType はXLSXのMIMEタイプです。
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const leadsSheet = "Leads"

var baseHeader = []string{"id", "created_at", "name", "email", "phone", "score", "recommended_tier", "source"}

// WriteLeads はリードを1シートのXLSXとして w に書き出します。
// 回答は設問IDごとの列として、ヘッダーの後ろにID順で並べます。
func WriteLeads(w io.Writer, leads []models.Lead) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), leadsSheet); err != nil {
		return fmt.Errorf("シート名の設定に失敗しました: %w", err)
	}

	decoded := make([]map[string]string, len(leads))
	keySet := map[string]struct{}{}
	for i, l := range leads {
		answers := map[string]string{}
		if len(l.Answers) > 0 {
			if err := json.Unmarshal(l.Answers, &answers); err != nil {
				return fmt.Errorf("リード %s の回答を読み取れません: %w", l.ID, err)
			}
		}
		for k := range answers {
			keySet[k] = struct{}{}
		}
		decoded[i] = answers
	}
	answerKeys := make([]string, 0, len(keySet))
	for k := range keySet {
		answerKeys = append(answerKeys, k)
	}
	sort.Strings(answerKeys)

	header := make([]interface{}, 0, len(baseHeader)+len(answerKeys))
	for _, h := range baseHeader {
		header = append(header, h)
	}
	for _, k := range answerKeys {
		header = append(header, "answer_"+k)
	}
	if err := f.SetSheetRow(leadsSheet, "A1", &header); err != nil {
		return fmt.Errorf("ヘッダーの書き込みに失敗しました: %w", err)
	}

	for i, l := range leads {
		row := []interface{}{
			l.ID,
			l.CreatedAt.UTC().Format(time.RFC3339),
			l.Name,
			l.Email,
			l.Phone,
			l.Score,
			string(l.RecommendedTier),
			l.Source,
		}
		for _, k := range answerKeys {
			row = append(row, decoded[i][k])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("セル位置の計算に失敗しました: %w", err)
		}
		if err := f.SetSheetRow(leadsSheet, cell, &row); err != nil {
			return fmt.Errorf("行の書き込みに失敗しました: %w", err)
		}
	}

	if err := f.SetPanes(leadsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("ヘッダー行の固定に失敗しました: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("XLSXの書き出しに失敗しました: %w", err)
	}
	return nil
}
