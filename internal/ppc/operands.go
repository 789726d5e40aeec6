package ppc

import (
	"regexp"
	"strings"
)

// aliasRe matches register aliases as whole words inside an operand field.
// Mnemonics such as "ps_add" never reach it.
var aliasRe = regexp.MustCompile(`\b(sp|rtoc|ps?[0-9]+)\b`)

func normalizeToken(tok string) string {
	switch {
	case tok == "sp":
		return "r1"
	case tok == "rtoc":
		return "r2"
	case strings.HasPrefix(tok, "ps") && len(tok) > 2 && isDigits(tok[2:]):
		return "f" + tok[2:]
	case strings.HasPrefix(tok, "p") && len(tok) > 1 && isDigits(tok[1:]):
		return "f" + tok[1:]
	}
	return tok
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// Clean collapses runs of whitespace to single spaces and trims the result,
// so the same instruction always produces the same text.
func Clean(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Split returns the mnemonic and the operand field of an instruction.
func Split(text string) (mnemonic, operands string) {
	text = strings.TrimSpace(text)
	i := strings.IndexAny(text, " \t")
	if i < 0 {
		return text, ""
	}
	return text[:i], strings.TrimSpace(text[i+1:])
}

// Mnemonic returns the lower-cased mnemonic of an instruction.
func Mnemonic(text string) string {
	m, _ := Split(text)
	return strings.ToLower(m)
}

// Normalize rewrites stack pointer, TOC and paired-single aliases in the
// operand field to their canonical register names: sp -> r1, rtoc -> r2,
// pN / psN -> fN. The mnemonic is left untouched.
func Normalize(text string) string {
	m, ops := Split(text)
	if ops == "" {
		return m
	}
	return m + " " + aliasRe.ReplaceAllStringFunc(ops, normalizeToken)
}

func operandTokens(ops string) []string {
	return strings.FieldsFunc(ops, func(r rune) bool {
		switch r {
		case ',', '(', ')', ' ', '\t':
			return true
		}
		return false
	})
}

// Operands extracts up to three register operands from already normalised
// instruction text. The first register token found is the destination and the
// next two register tokens are the sources; immediates, displacements and
// condition fields in between are skipped. "stw r3, 8(r5)" yields [r3 r5];
// "add r3, r4, r5" yields [r3 r4 r5].
func Operands(text string) [3]Reg {
	var out [3]Reg
	_, ops := Split(text)
	toks := operandTokens(strings.ToLower(ops))

	first := -1
	for i, tok := range toks {
		if r, ok := ParseReg(tok); ok {
			out[0] = r
			first = i
			break
		}
	}
	if first < 0 {
		return out
	}
	n := 1
	for _, tok := range toks[first+1:] {
		if n == len(out) {
			break
		}
		r, ok := ParseReg(tok)
		if !ok {
			continue
		}
		out[n] = r
		n++
	}
	return out
}
