package payment

import (
	"errors"
	"strings"
)

const (
	hideSlot   = '*'
	revealSlot = '#'
)

var (
	ErrPatternHasNoSlots = errors.New("mask pattern has no placeholder characters")
	ErrReferenceTooShort = errors.New("reference is shorter than the mask pattern")
)

// ApplyMask renders input through pattern. '*' hides one input character, '#' reveals
// one, and every other pattern character is copied literally. Input is aligned to the
// right of the slots, so surplus leading characters never appear in the output:
//
//	ApplyMask("****-####", "12345678")   // "****-5678"
//	ApplyMask("****-####", "1234567890") // "****-7890"
func ApplyMask(pattern, input string) (string, error) {
	slots := 0
	for _, r := range pattern {
		if r == hideSlot || r == revealSlot {
			slots++
		}
	}
	if slots == 0 {
		return "", ErrPatternHasNoSlots
	}

	in := []rune(input)
	if len(in) < slots {
		return "", ErrReferenceTooShort
	}
	in = in[len(in)-slots:]

	var b strings.Builder
	b.Grow(len(pattern))
	i := 0
	for _, r := range pattern {
		switch r {
		case hideSlot:
			b.WriteRune(hideSlot)
			i++
		case revealSlot:
			b.WriteRune(in[i])
			i++
		default:
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}
