package ai

import (
	"math/rand/v2"
	"strings"
	"sync"
)

const (
	KeySelectRandom = "random"
	KeySelectTurn   = "turn"
)

// APIKeyManager picks one key out of a comma separated key list.
type APIKeyManager struct {
	mode string

	mu    sync.Mutex
	turns map[string]int
}

func NewAPIKeyManager(mode string) *APIKeyManager {
	if mode != KeySelectTurn {
		mode = KeySelectRandom
	}
	return &APIKeyManager{mode: mode, turns: make(map[string]int)}
}

// Pick returns "" when keys holds no usable key. In turn mode each distinct
// key list keeps its own cursor.
func (m *APIKeyManager) Pick(keys string) string {
	list := splitKeys(keys)
	switch len(list) {
	case 0:
		return ""
	case 1:
		return list[0]
	}
	if m.mode == KeySelectRandom {
		return list[rand.IntN(len(list))]
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.turns[keys] % len(list)
	m.turns[keys] = idx + 1
	return list[idx]
}

func splitKeys(keys string) []string {
	parts := strings.Split(keys, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
