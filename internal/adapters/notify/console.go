package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alejandrodnm/pokeroracle/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Notifier escribiendo en la terminal.
type Console struct {
	out   io.Writer
	table bool
	now   func() time.Time
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table, now: time.Now}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table, now: time.Now}
}

// Notify imprime el resumen del tick: una línea compacta o la tabla completa.
func (c *Console) Notify(_ context.Context, results []domain.SyncResult) error {
	stamp := c.now().Format("15:04:05")
	if len(results) == 0 {
		fmt.Fprintf(c.out, "[%s] no open autonomous markets\n", stamp)
		return nil
	}
	if c.table {
		c.printTable(stamp, results)
		return nil
	}
	c.printCompact(stamp, results)
	return nil
}

// Alert imprime un evento puntual en una línea.
func (c *Console) Alert(_ context.Context, e domain.Event) error {
	at := e.At
	if at.IsZero() {
		at = c.now()
	}
	fmt.Fprintf(c.out, "[%s] !! %s %s (table %s) markets=%s | %s: %s\n",
		at.Format("15:04:05"), strings.ToUpper(string(e.Kind)), e.TournamentID, e.TableID,
		strings.Join(e.MarketIDs, ","), e.Title, e.Message)
	return nil
}

// printCompact imprime el tick en una línea por torneo con cambios.
func (c *Console) printCompact(stamp string, results []domain.SyncResult) {
	counts := make(map[domain.SyncOutcome]int)
	for _, r := range results {
		counts[r.Outcome]++
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %d tournaments → synced:%d skipped:%d paused:%d proposed:%d failed:%d",
		stamp, len(results),
		counts[domain.SyncSynced], counts[domain.SyncSkipped], counts[domain.SyncPaused],
		counts[domain.SyncProposed], counts[domain.SyncFailed])

	for _, r := range results {
		if r.Outcome == domain.SyncSkipped || r.Outcome == domain.SyncLocked {
			continue
		}
		fmt.Fprintf(&sb, " | %s #%d %s", r.TournamentID, r.LatestHand, r.Outcome)
		if r.Verdict != nil && r.Verdict.Winner != "" {
			fmt.Fprintf(&sb, " winner=%s", r.Verdict.Winner)
		}
	}
	fmt.Fprintln(c.out, sb.String())
}

// printTable imprime una fila por torneo con el veredicto.
func (c *Console) printTable(stamp string, results []domain.SyncResult) {
	fmt.Fprintf(c.out, "\n[%s] sync tick: %d tournaments\n", stamp, len(results))

	table := tablewriter.NewWriter(c.out)
	table.Header("Tournament", "Table", "Mkts", "Synced", "Latest", "Outcome", "Status", "Conf", "Winner", "Detail")
	for _, r := range results {
		status, conf, winner, detail := "-", "-", "-", ""
		if v := r.Verdict; v != nil {
			status = string(v.Status)
			if v.IsPaused {
				status += " (paused)"
			}
			conf = fmt.Sprintf("%.1f", v.Confidence)
			if v.Winner != "" {
				winner = v.Winner
			}
			detail = v.Reasoning
		}
		if r.Err != nil {
			detail = r.Err.Error()
		}
		if len(r.Unmatched) > 0 {
			detail += fmt.Sprintf(" [unmatched: %s]", strings.Join(r.Unmatched, ","))
		}
		table.Append(
			r.TournamentID,
			r.TableID,
			fmt.Sprintf("%d", r.Markets),
			fmt.Sprintf("%d", r.MinSynced),
			fmt.Sprintf("%d", r.LatestHand),
			string(r.Outcome),
			status,
			conf,
			winner,
			truncate(detail, 60),
		)
	}
	table.Render()
}

// PrintHands imprime una fila por mano (modos -audit y -csv).
func (c *Console) PrintHands(title string, hands []domain.HandRecord) {
	fmt.Fprintf(c.out, "\n%s: %d hands\n", title, len(hands))
	if len(hands) == 0 {
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Dealer", "Active", "Stacks", "Actions", "All-in", "Winner", "Pot", "Hand")
	for _, h := range hands {
		winner, pot, desc := "-", "-", ""
		if w := h.Winner; w != nil {
			winner = w.Player
			pot = fmt.Sprintf("%d", w.Amount)
			desc = w.HandDescription
		}
		table.Append(
			fmt.Sprintf("%d", h.HandNumber),
			h.Dealer,
			fmt.Sprintf("%d", len(h.ActivePlayers())),
			truncate(stacksLabel(h), 48),
			fmt.Sprintf("%d", len(h.Actions)),
			allInLabel(h),
			winner,
			pot,
			desc,
		)
	}
	table.Render()
}

// PrintSummary imprime la cabecera de un export CSV parseado y sus manos.
func (c *Console) PrintSummary(s domain.GameSummary) {
	order := "chronological"
	if s.Reversed {
		order = "newest-first (reversed)"
	}
	fmt.Fprintf(c.out, "\nhands %d..%d | players: %s | file order: %s | skipped rows: %d\n",
		s.FirstHand, s.LastHand, strings.Join(s.Players, ", "), order, s.SkippedRows)
	c.PrintHands("export", s.Hands)
}

// --- helpers ---

func stacksLabel(h domain.HandRecord) string {
	names := h.PlayerNames()
	parts := make([]string, 0, len(names))
	for _, n := range names {
		stack, _ := h.Stack(n)
		parts = append(parts, fmt.Sprintf("%s:%d", n, stack))
	}
	return strings.Join(parts, " ")
}

func allInLabel(h domain.HandRecord) string {
	for _, a := range h.Actions {
		if a.AllIn {
			return "yes"
		}
	}
	return ""
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
