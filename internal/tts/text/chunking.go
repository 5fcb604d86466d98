// Package text splits post text into blocks sized for a single synthesis call.
//
// Lengths are measured in runes so that a split never lands inside a
// multi-byte character.
package text

import (
	"fmt"
	"slices"
	"unicode"

	"github.com/book-expert/post-speech-service/internal/core"
)

const (
	// DefaultLimit is the maximum tolerated block length before splitting.
	DefaultLimit = 1100
	// LookaheadMargin is subtracted from the limit to obtain the default lookahead window.
	LookaheadMargin = 100

	sentenceTerminator = '.'
	wordSeparator      = ' '
)

// DefaultWindow returns the lookahead window used for limit.
// Limits that leave no room for the margin use the limit itself.
func DefaultWindow(limit int) int {
	window := limit - LookaheadMargin
	if window <= 0 {
		return limit
	}

	return window
}

// Split divides text into ordered blocks of at most limit runes using the
// default lookahead window.
func Split(text string, limit int) ([]string, error) {
	return SplitWithWindow(text, limit, DefaultWindow(limit))
}

// SplitWithWindow divides text into ordered blocks of at most limit runes.
//
// While the remaining text is longer than limit, the first window runes are
// searched for the last '.', and the block ends right after it. Without a
// terminator the block ends before the last space in the window and the space
// is dropped. Without either, the block is cut at the window boundary. Leading
// whitespace is dropped before each split and from the remainder after it.
//
// Text no longer than limit is returned unchanged as a single block. An empty
// final remainder is not emitted, so empty input yields no blocks.
func SplitWithWindow(text string, limit, window int) ([]string, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", core.ErrInvalidArgument, limit)
	}

	if window <= 0 || window > limit {
		return nil, fmt.Errorf("%w: window must be in (0, %d], got %d", core.ErrInvalidArgument, limit, window)
	}

	rest := []rune(text)
	if len(rest) <= limit {
		if len(rest) == 0 {
			return nil, nil
		}

		return []string{text}, nil
	}

	var blocks []string

	for len(rest) > limit {
		rest = trimLeft(rest)
		if len(rest) <= limit {
			break
		}

		head := rest[:window]

		var block []rune

		switch end, sep := lastIndex(head, sentenceTerminator), lastIndex(head, wordSeparator); {
		case end >= 0:
			block = rest[:end+1]
			rest = rest[end+1:]
		case sep > 0:
			block = rest[:sep]
			rest = rest[sep+1:]
		default:
			block = head
			rest = rest[window:]
		}

		blocks = append(blocks, string(block))
		rest = trimLeft(rest)
	}

	if len(rest) > 0 {
		blocks = append(blocks, string(rest))
	}

	return blocks, nil
}

func lastIndex(runes []rune, target rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == target {
			return i
		}
	}

	return -1
}

func trimLeft(runes []rune) []rune {
	start := slices.IndexFunc(runes, func(r rune) bool { return !unicode.IsSpace(r) })
	if start < 0 {
		return runes[len(runes):]
	}

	return runes[start:]
}
