package usecase

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"
	"sync"

	"github.com/mmuslimabdulj/goat-rooms/internal/domain"
)

// Indonesian nouns for name suggestions
var nouns = []string{
	// Animals & Creatures
	"Kucing", "Ayam", "Bebek", "Angsa", "Kambing", "Kerbau", "Tupai", "Kelinci",
	"Komodo", "Cicak", "Lele", "Paus", "Jangkrik", "Kepiting", "Kukang", "Gajah",

	// Household Items
	"Kulkas", "Ricecooker", "Jemuran", "Bajaj", "Setrika", "Panci", "Cobek", "Guling",
	"Gayung", "Termos", "Teko", "Galon", "Kipas", "Lampu",

	// Food & Snacks
	"Kerupuk", "Rengginang", "Cilok", "Cireng", "Batagor", "Bakso", "Rendang", "Tempe",
	"Klepon", "Getuk", "Martabak", "Serabi",
}

// Indonesian adjectives for name suggestions
var adjectives = []string{
	"Kayang", "Koprol", "Salto", "Ngesot", "Joget", "Goyang", "Melamun", "Bengong",
	"Kocak", "Gokil", "Kepo", "Baper", "Gabut", "Mager", "Santuy", "Woles",
	"Lincah", "Kece", "Ambyar", "Galau", "Gesit", "Gemoy", "Kalem", "Rusuh",
	"Menyala", "Sepuh", "Sultan", "Halu", "Gaskeun", "Skuy",
}

// Neon colors for players
var neonColors = []string{
	"#FFD100", // Kuning Neon
	"#FF6AC1", // Pink Neon
	"#00E676", // Stabilo Hijau
	"#00E5FF", // Cyan Neon
	"#FF5252", // Merah Neon
	"#B388FF", // Ungu Neon
	"#FF9100", // Orange Neon
	"#69F0AE", // Mint Neon
}

// Suggestion is a display name and color offered on the join form
type Suggestion struct {
	Name  string
	Color string
}

// NameSuggester proposes display names that do not clash with a roster
type NameSuggester struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewNameSuggester creates a NameSuggester seeded from seed
func NewNameSuggester(seed int64) *NameSuggester {
	return &NameSuggester{rnd: rand.New(rand.NewSource(seed))}
}

// Suggest returns a "Noun Adjective" name not in taken (compared with
// domain.FoldName)
// and the color that goes with it
func (ns *NameSuggester) Suggest(taken []string) Suggestion {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	used := make(map[string]bool, len(taken))
	for _, name := range taken {
		used[domain.FoldName(name)] = true
	}

	var name string
	maxAttempts := 100
	for i := 0; i < maxAttempts; i++ {
		noun := nouns[ns.rnd.Intn(len(nouns))]
		adj := adjectives[ns.rnd.Intn(len(adjectives))]
		name = fmt.Sprintf("%s %s", noun, adj)

		if !used[domain.FoldName(name)] {
			break
		}

		// Add suffix if still duplicate after max attempts
		if i == maxAttempts-1 {
			name = fmt.Sprintf("%s %d", name, ns.rnd.Intn(999))
		}
	}

	return Suggestion{Name: name, Color: ColorFor(name)}
}

// ColorFor picks a stable neon color for a display name
func ColorFor(name string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(name)))
	return neonColors[h.Sum32()%uint32(len(neonColors))]
}

// IsPaletteColor reports whether color is one of the neon colors
func IsPaletteColor(color string) bool {
	for _, c := range neonColors {
		if strings.EqualFold(c, color) {
			return true
		}
	}
	return false
}
