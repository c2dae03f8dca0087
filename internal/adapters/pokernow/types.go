package pokernow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alejandrodnm/pokeroracle/internal/domain"
	"github.com/alejandrodnm/pokeroracle/internal/handlog"
)

// logEntry es una línea de la respuesta de log_v3.
// createdAt llega como entero (ms); algunas mesas antiguas devuelven "at" en ISO.
type logEntry struct {
	CreatedAt json.RawMessage `json:"createdAt"`
	At        json.RawMessage `json:"at"`
	Msg       string          `json:"msg"`
}

// logEnvelope es la variante envuelta de la respuesta: {"logs": [...]}.
type logEnvelope struct {
	Logs []logEntry `json:"logs"`
}

// decodeLog acepta tanto el array plano como el objeto envuelto.
func decodeLog(body []byte) ([]domain.LogLine, error) {
	body = bytes.TrimSpace(body)
	var entries []logEntry

	switch {
	case len(body) == 0:
		return nil, fmt.Errorf("empty body")
	case body[0] == '{':
		var env logEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		entries = env.Logs
	default:
		if err := json.Unmarshal(body, &entries); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
	}

	lines := make([]domain.LogLine, 0, len(entries))
	for _, e := range entries {
		ts := e.CreatedAt
		if len(ts) == 0 {
			ts = e.At
		}
		lines = append(lines, domain.LogLine{
			At:  handlog.ParseTimestamp(strings.Trim(string(ts), `"`)),
			Msg: e.Msg,
		})
	}
	return lines, nil
}
