package domain

import (
	"math/rand/v2"
	"regexp"
	"strings"
)

// RandomRoomIDLength matches the length of generated room paths.
const RandomRoomIDLength = 10

var roomIDPattern = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

// ValidRoomID reports whether the id is a non-empty URL-safe path segment:
// letters, digits and dashes only.
func ValidRoomID(id string) bool {
	return roomIDPattern.MatchString(id)
}

const roomIDAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// RandomRoomID generates a random room id of n ASCII letters.
func RandomRoomID(n int) string {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(roomIDAlphabet[rand.IntN(len(roomIDAlphabet))])
	}
	return b.String()
}
