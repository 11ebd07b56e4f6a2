package progress

import (
	"encoding/json"
	"errors"
	"os"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/sayakr428/Paraphrasing-Using-ollama/internal/helper"
)

// Ledger is the set of row indices whose target columns are all transformed.
// Indices are only ever added.
type Ledger struct {
	path string
	done map[int]struct{}
}

// LoadLedger reads the JSON array at path. A missing or unreadable file yields an empty ledger.
func LoadLedger(path string) *Ledger {
	l := &Ledger{path: path, done: map[int]struct{}{}}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", path).Msg("Failed to read ledger, starting empty")
		}
		return l
	}
	var rows []int
	if err := json.Unmarshal(data, &rows); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Corrupt ledger, starting empty")
		return l
	}
	for _, r := range rows {
		l.done[r] = struct{}{}
	}
	return l
}

func (l *Ledger) Add(row int) {
	l.done[row] = struct{}{}
}

func (l *Ledger) Has(row int) bool {
	_, ok := l.done[row]
	return ok
}

func (l *Ledger) Len() int {
	return len(l.done)
}

// Rows returns the completed indices in ascending order.
func (l *Ledger) Rows() []int {
	rows := make([]int, 0, len(l.done))
	for r := range l.done {
		rows = append(rows, r)
	}
	slices.Sort(rows)
	return rows
}

// Remaining lists the indices in [0, total) not yet completed, in order.
func (l *Ledger) Remaining(total int) []int {
	var out []int
	for i := 0; i < total; i++ {
		if !l.Has(i) {
			out = append(out, i)
		}
	}
	return out
}

// Save overwrites the ledger file with the sorted indices.
func (l *Ledger) Save() error {
	data, err := json.Marshal(l.Rows())
	if err != nil {
		return err
	}
	return helper.WriteFileAtomic(l.path, data)
}
