package openapi

import (
	"strconv"
	"strings"
	"unicode"
)

// words splits an identifier on non-alphanumeric runes and lower-to-upper case changes:
// "listPets", "list_pets" and "list-pets" all give list and pets
func words(s string) []string {
	var out []string
	var cur []rune
	runes := []rune(s)
	flush := func() {
		if len(cur) > 0 {
			out = append(out, string(cur))
			cur = cur[:0]
		}
	}
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if unicode.IsUpper(r) && len(cur) > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return out
}

// pascalCase joins the words of s with each word capitalized: "pet_id" gives PetId
func pascalCase(s string) string {
	var b strings.Builder
	for _, w := range words(s) {
		r := []rune(w)
		b.WriteRune(unicode.ToUpper(r[0]))
		b.WriteString(string(r[1:]))
	}
	return identifier(b.String())
}

// snakeCase lower-cases the words of s and joins them with underscores: "petId" gives
// pet_id
func snakeCase(s string) string {
	ws := words(s)
	for i, w := range ws {
		ws[i] = strings.ToLower(w)
	}
	return identifier(strings.Join(ws, "_"))
}

// identifier makes s a valid protobuf identifier
func identifier(s string) string {
	if s == "" {
		return "_"
	}
	if unicode.IsDigit([]rune(s)[0]) {
		return "_" + s
	}
	return s
}

// uniqueName returns name, or name with the smallest numeric suffix not yet taken, and
// marks the result taken
func uniqueName(taken map[string]bool, name string) string {
	candidate := name
	for i := 1; taken[candidate]; i++ {
		candidate = name + strconv.Itoa(i)
	}
	taken[candidate] = true
	return candidate
}
