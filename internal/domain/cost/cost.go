// Package cost maps units of work to integer credit charges.
// Nothing here returns an error: every input yields a charge of at least one credit.
package cost

import (
	"fmt"
	"strings"
)

// WordsPerCredit is the audio narration block size.
const WordsPerCredit = 100

// Operation is a metered generation operation.
type Operation string

// Operation constants.
const (
	OperationStory   Operation = "story"
	OperationSegment Operation = "segment"
	OperationImage   Operation = "image"
	OperationAudio   Operation = "audio"
	OperationVideo   Operation = "video"
)

var fixedCosts = map[Operation]int64{
	OperationStory:   2,
	OperationSegment: 1,
	OperationImage:   1,
	OperationVideo:   5,
}

// ParseOperation normalizes an operation name. "chapter" is an alias of segment.
// Unknown names are kept as-is and priced by Fixed's fallback.
func ParseOperation(s string) Operation {
	op := Operation(strings.ToLower(strings.TrimSpace(s)))
	if op == "chapter" {
		return OperationSegment
	}
	return op
}

// Fixed returns the static cost of an operation. Unknown operations cost 1.
func Fixed(op Operation) int64 {
	if c, ok := fixedCosts[op]; ok {
		return c
	}
	return 1
}

// AudioCost is the narration price breakdown.
type AudioCost struct {
	Words     int
	Credits   int64
	Breakdown string
}

// CountWords counts whitespace-separated tokens of the trimmed text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// Audio prices narration at one credit per started block of 100 words, minimum 1.
func Audio(words int) AudioCost {
	if words < 0 {
		words = 0
	}
	credits := int64((words + WordsPerCredit - 1) / WordsPerCredit)
	if credits < 1 {
		credits = 1
	}
	return AudioCost{
		Words:     words,
		Credits:   credits,
		Breakdown: breakdown(words, credits),
	}
}

// AudioForText prices narration of text.
func AudioForText(text string) AudioCost {
	return Audio(CountWords(text))
}

// ForOperation prices an operation. Audio is priced by the narrated text,
// everything else by the fixed table.
func ForOperation(op Operation, text string) int64 {
	if op == OperationAudio {
		return AudioForText(text).Credits
	}
	return Fixed(op)
}

func breakdown(words int, credits int64) string {
	total := fmt.Sprintf("%s = %s", plural(int64(words), "word"), plural(credits, "credit"))
	if words <= WordsPerCredit {
		return total
	}

	blocks := words / WordsPerCredit
	rest := words % WordsPerCredit
	if rest == 0 {
		return fmt.Sprintf("%d words (%d × %d) = %s", words, blocks, WordsPerCredit, plural(credits, "credit"))
	}
	return fmt.Sprintf("%d words (%d × %d + %d) = %s", words, blocks, WordsPerCredit, rest, plural(credits, "credit"))
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
