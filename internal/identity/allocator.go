package identity

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
)

var adjectives = []string{
	"Silent", "Swift", "Brave", "Calm", "Bright", "Bold", "Quick", "Zen",
	"Cool", "Smart", "Wild", "Free", "True", "Pure", "Wise", "Kind",
}

var nouns = []string{
	"Tiger", "Eagle", "Wolf", "Fox", "Lion", "Bear", "Hawk", "Owl",
	"Phoenix", "Dragon", "Panda", "Koala", "Raven", "Falcon", "Lynx", "Jaguar",
}

const maxAttempts = 20

// Allocator hands out anonymous display names. Uniqueness is only required
// against the set of names currently taken in one room.
type Allocator struct {
	intN func(n int) int
}

func NewAllocator() *Allocator {
	return &Allocator{intN: rand.IntN}
}

// Allocate returns a name not present in taken. After a bounded number of
// random attempts it falls back to an entropy suffix, so the result is
// guaranteed unique regardless of how crowded the name space is.
func (a *Allocator) Allocate(taken map[string]struct{}) string {
	var name string
	for range maxAttempts {
		name = fmt.Sprintf("%s%s%d",
			adjectives[a.intN(len(adjectives))],
			nouns[a.intN(len(nouns))],
			a.intN(1000))
		if _, dup := taken[name]; !dup {
			return name
		}
	}
	return fmt.Sprintf("%s-%s", name, uuid.NewString()[:8])
}
