package gsheets

import (
	"fmt"
	"strings"
)

// ColumnLetter конвертирует 1-индексированный номер колонки в буквенное
// имя spreadsheet-колонки по биективной base-26 схеме:
// 1→A, 2→B, ... 26→Z, 27→AA, 28→AB, ...
func ColumnLetter(n int) string {
	if n < 1 {
		return ""
	}
	var sb strings.Builder
	for n > 0 {
		n--
		sb.WriteByte(byte('A' + n%26))
		n /= 26
	}
	// Цифры накоплены младшими разрядами вперед — разворачиваем
	runes := []byte(sb.String())
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

// rowRange строит A1-диапазон одной строки листа:
// ("Sheet1", 3, 5) → "Sheet1!A3:E3"
func rowRange(sheet string, row, columns int) string {
	return fmt.Sprintf("%s!A%d:%s%d", sheet, row, ColumnLetter(columns), row)
}
