// Package xlsx - чтение выборки из Excel-книги для детекции колонок.
//
// Импорт из Excel проходит через ту же эвристику, что и подключенные
// источники: из книги читается заголовок и небольшая выборка строк,
// результат уходит в pkg/detect.
package xlsx

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/geogismaps/geoadapter/pkg/detect"
)

// DefaultSampleSize - строк данных в выборке по умолчанию
const DefaultSampleSize = 20

// Sample - заголовок и выборка строк листа
type Sample struct {
	SheetName string
	Headers   []string
	Rows      [][]string
}

// ReadSample читает заголовок и первые sampleSize строк данных листа.
// Пустое sheetName — активный лист книги.
func ReadSample(r io.Reader, sheetName string, sampleSize int) (*Sample, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheetName == "" {
		idx := f.GetActiveSheetIndex()
		sheetName = f.GetSheetName(idx)
	}
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}

	rows, err := f.Rows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheetName, err)
	}
	defer rows.Close()

	sample := &Sample{SheetName: sheetName}
	for rows.Next() {
		cells, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		if sample.Headers == nil {
			sample.Headers = cells
			continue
		}
		sample.Rows = append(sample.Rows, cells)
		if len(sample.Rows) >= sampleSize {
			break
		}
	}
	if sample.Headers == nil {
		return nil, fmt.Errorf("sheet %q is empty", sheetName)
	}
	return sample, nil
}

// DetectFields прогоняет выборку через эвристику детекции колонок
func (s *Sample) DetectFields() *detect.Result {
	return detect.Detect(s.Headers, s.Rows)
}
