// Package report выгружает статистику администратора в файл Excel.
package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Maksim200738-droid/rockvpn/internal/models"
)

// Листы отчёта.
const (
	SheetSummary       = "Сводка"
	SheetPayments      = "Платежи"
	SheetSubscriptions = "Подписки"
)

// WriteStats записывает статистику в xlsx: сводку, оплаты по тарифам и подписки по типам.
// Названия тарифов берутся из каталога, неизвестные ID выводятся как есть.
func WriteStats(w io.Writer, stats *models.Stats, tariffs models.Catalog, generatedAt time.Time) error {
	const op = "report.WriteStats"

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	summary := [][]any{
		{"Показатель", "Значение"},
		{"Сформирован", generatedAt.UTC().Format(time.DateTime)},
		{"Всего пользователей", stats.TotalUsers},
		{"Новых за сегодня", stats.NewUsersToday},
		{"Активных подписок", stats.ActiveSubscriptions},
		{"Выручка, ₽", stats.Revenue.InexactFloat64()},
	}
	if err := writeRows(f, SheetSummary, summary); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := writeCounts(f, SheetPayments, "Оплат", stats.PaymentsByTariff, tariffs); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := writeCounts(f, SheetSubscriptions, "Подписок", stats.SubscriptionsByType, tariffs); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func writeCounts(f *excelize.File, sheet, header string, counts map[string]int, tariffs models.Catalog) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := [][]any{{"Тариф", "Название", header}}
	for _, id := range ids {
		name := id
		if t, ok := tariffs[id]; ok {
			name = t.Name
		}
		rows = append(rows, []any{id, name, counts[id]})
	}
	return writeRows(f, sheet, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheet, "A", "C", 24)
}
