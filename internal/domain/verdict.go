package domain

// GameStatus es el estado de una mesa según el compilador de resolución.
type GameStatus string

const (
	GameRunning   GameStatus = "RUNNING"
	GameCompleted GameStatus = "COMPLETED"
)

// Verdict es el resultado de evaluar las dos últimas manos de una mesa.
// IsPaused es ortogonal a Status pero solo puede ser true con GameRunning.
type Verdict struct {
	Status        GameStatus
	IsPaused      bool
	Winner        string
	Confidence    float64
	Reasoning     string
	DecisionTrace string
	Hand          int // mano evaluada
}

// Completed devuelve true si el veredicto designa un ganador.
func (v Verdict) Completed() bool {
	return v.Status == GameCompleted && !v.IsPaused && v.Winner != ""
}

// RunningVerdict construye un veredicto RUNNING sin pausa.
func RunningVerdict(hand int, confidence float64, reasoning, trace string) Verdict {
	return Verdict{
		Status:        GameRunning,
		Confidence:    confidence,
		Reasoning:     reasoning,
		DecisionTrace: trace,
		Hand:          hand,
	}
}
