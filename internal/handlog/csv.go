package handlog

// csv.go: parser del export CSV completo de una mesa.
//
// El export trae cabecera "entry_at,msg,net_amount" pero el quoting upstream es
// inconsistente: algunas filas vienen con comillas dobladas y otras sin escapar.
// Cada fila se intenta leer con encoding/csv en modo lazy; si no da el número de
// columnas esperado, el mensaje se extrae quitando la primera y la última columna.
//
// El orden del archivo se detecta con los marcadores "-- starting hand #N": si el
// primero es mayor que el último, el archivo viene newest-first. Con menos de dos
// marcadores se usan los timestamps y, como último recurso, la heurística clásica
// (la primera fila es terminal si contiene "quits" o "collected").

import (
	"encoding/csv"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/alejandrodnm/pokeroracle/internal/domain"
)

const handDelimiter = "-- starting hand #"

// csvLayout describe qué columna contiene cada campo.
type csvLayout struct {
	columns int
	msg     int
	at      int // -1 si no hay columna de timestamp
}

var defaultLayout = csvLayout{columns: 3, msg: 1, at: 0}

// ParseBulkCSV parsea un export completo y devuelve las manos en orden ascendente.
// Es best-effort: las filas ilegibles se cuentan en SkippedRows y se descartan.
func ParseBulkCSV(text string) domain.GameSummary {
	var summary domain.GameSummary

	rows := splitRows(text)
	if len(rows) == 0 {
		return summary
	}

	layout := defaultLayout
	if l, ok := parseHeader(rows[0]); ok {
		layout = l
		rows = rows[1:]
	}

	lines := make([]domain.LogLine, 0, len(rows))
	for _, row := range rows {
		line, ok := parseRow(row, layout)
		if !ok {
			summary.SkippedRows++
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return summary
	}

	if bulkNewestFirst(lines) {
		summary.Reversed = true
		slices.Reverse(lines)
	}

	players := make(map[string]bool)
	for _, chunk := range splitHands(lines) {
		rec := ParseHand(chunk)
		if rec == nil {
			continue
		}
		for name := range rec.Players {
			players[name] = true
		}
		for _, name := range rec.Departed {
			players[name] = true
		}
		summary.Hands = append(summary.Hands, *rec)
	}

	sort.SliceStable(summary.Hands, func(i, j int) bool {
		return summary.Hands[i].HandNumber < summary.Hands[j].HandNumber
	})
	if n := len(summary.Hands); n > 0 {
		summary.FirstHand = summary.Hands[0].HandNumber
		summary.LastHand = summary.Hands[n-1].HandNumber
	}

	for name := range players {
		summary.Players = append(summary.Players, name)
	}
	sort.Strings(summary.Players)
	return summary
}

// splitRows separa el texto en filas no vacías (acepta \r\n).
func splitRows(text string) []string {
	var rows []string
	for _, row := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(row) != "" {
			rows = append(rows, row)
		}
	}
	return rows
}

// parseHeader reconoce la fila de cabecera y localiza las columnas de mensaje y timestamp.
func parseHeader(row string) (csvLayout, bool) {
	fields := strings.Split(strings.ToLower(row), ",")
	layout := csvLayout{columns: len(fields), msg: -1, at: -1}
	for i, f := range fields {
		switch strings.Trim(strings.TrimSpace(f), `"`) {
		case "msg", "entry", "message":
			layout.msg = i
		case "entry_at", "at", "created_at":
			layout.at = i
		}
	}
	if layout.msg < 0 {
		return csvLayout{}, false
	}
	return layout, true
}

// parseRow extrae mensaje y timestamp de una fila.
func parseRow(row string, layout csvLayout) (domain.LogLine, bool) {
	r := csv.NewReader(strings.NewReader(row))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	var fields []string
	if rec, err := r.Read(); err == nil && len(rec) == layout.columns {
		fields = rec
	} else {
		fields = splitLenient(row, layout)
	}
	if fields == nil {
		return domain.LogLine{}, false
	}

	msg := strings.TrimSpace(fields[layout.msg])
	if msg == "" {
		return domain.LogLine{}, false
	}
	line := domain.LogLine{Msg: msg}
	if layout.at >= 0 {
		line.At = ParseTimestamp(strings.Trim(strings.TrimSpace(fields[layout.at]), `"`))
	}
	return line, true
}

// splitLenient corta las columnas anteriores y posteriores al mensaje por comas
// y deja el resto (comas incluidas) como mensaje.
func splitLenient(row string, layout csvLayout) []string {
	fields := make([]string, layout.columns)

	rest := row
	for i := 0; i < layout.msg; i++ {
		idx := strings.Index(rest, ",")
		if idx < 0 {
			return nil
		}
		fields[i] = rest[:idx]
		rest = rest[idx+1:]
	}
	for i := layout.columns - 1; i > layout.msg; i-- {
		idx := strings.LastIndex(rest, ",")
		if idx < 0 {
			return nil
		}
		fields[i] = rest[idx+1:]
		rest = rest[:idx]
	}
	fields[layout.msg] = unquote(rest)
	return fields
}

// unquote quita las comillas exteriores y deshace el escapado "" → ".
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		s = s[1 : len(s)-1]
	}
	return strings.ReplaceAll(s, `""`, `"`)
}

// bulkNewestFirst decide si el archivo viene en orden inverso.
func bulkNewestFirst(lines []domain.LogLine) bool {
	var markers []int
	for _, l := range lines {
		if m := startRe.FindStringSubmatch(strings.TrimSpace(l.Msg)); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				markers = append(markers, n)
			}
		}
	}
	if len(markers) >= 2 && markers[0] != markers[len(markers)-1] {
		return markers[0] > markers[len(markers)-1]
	}

	first, last := lines[0].At, lines[len(lines)-1].At
	if !first.IsZero() && !last.IsZero() && !first.Equal(last) {
		return first.After(last)
	}

	head := strings.ToLower(lines[0].Msg)
	return strings.Contains(head, "quits") || strings.Contains(head, "collected")
}

// splitHands corta el flujo cronológico en una porción por mano.
// Las líneas anteriores al primer marcador (entradas a la mesa) se descartan.
func splitHands(lines []domain.LogLine) [][]domain.LogLine {
	var chunks [][]domain.LogLine
	var current []domain.LogLine
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l.Msg), handDelimiter) {
			if current != nil {
				chunks = append(chunks, current)
			}
			current = []domain.LogLine{l}
			continue
		}
		if current != nil {
			current = append(current, l)
		}
	}
	if current != nil {
		chunks = append(chunks, current)
	}
	return chunks
}
