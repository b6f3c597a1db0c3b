package ocr

import (
	"regexp"
	"strings"
)

var (
	// Tokens that are mostly digits but carry characters recognizers commonly
	// confuse with them (O/o↔0, l/I↔1, S/s↔5, B↔8, Z↔2).
	reNumericish = regexp.MustCompile(`\b[\dOolISsBZ][\dOolISsBZ,.]{2,}\b`)
	reHasDigit   = regexp.MustCompile(`\d`)

	reCurrency   = regexp.MustCompile(`(?i)(₹|\bRs\b\.?|\bINR\b)\s*`)
	reBlankLines = regexp.MustCompile(`\n{3,}`)
	reTrailingWS = regexp.MustCompile(`[ \t]+\n`)
	reRunsOfWS   = regexp.MustCompile(`[ \t]{2,}`)
)

var confusionTable = strings.NewReplacer(
	"O", "0", "o", "0",
	"l", "1", "I", "1",
	"S", "5", "s", "5",
	"B", "8",
	"Z", "2",
)

// PostProcess applies deterministic text-repair heuristics to raw engine
// output: digit/letter confusion fixes inside numeric tokens, currency-symbol
// normalization, and whitespace collapsing. Purely mechanical; no language
// model involved.
func PostProcess(text string) string {
	text = repairDigitConfusion(text)
	text = normalizeCurrency(text)
	text = collapseWhitespace(text)
	return text
}

// repairDigitConfusion rewrites letters to digits only inside tokens that are
// unambiguously numeric: at least two digits, or one digit plus a decimal or
// thousands separator. Ordinary words (and codes like "B2B") are never touched.
func repairDigitConfusion(text string) string {
	return reNumericish.ReplaceAllStringFunc(text, func(tok string) string {
		digits := len(reHasDigit.FindAllString(tok, -1))
		if digits == 0 {
			return tok
		}
		if digits < 2 && !strings.ContainsAny(tok, ".,") {
			return tok
		}
		return confusionTable.Replace(tok)
	})
}

// normalizeCurrency rewrites rupee markers to a single canonical prefix.
func normalizeCurrency(text string) string {
	return reCurrency.ReplaceAllString(text, "INR ")
}

func collapseWhitespace(text string) string {
	text = reTrailingWS.ReplaceAllString(text, "\n")
	text = reRunsOfWS.ReplaceAllString(text, " ")
	text = reBlankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
