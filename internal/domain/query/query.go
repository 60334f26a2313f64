// Package query prepares the raw query text sent to the document store.
package query

import (
	"encoding/json"
	"regexp"
	"strings"
)

// naiveDateTime matches "2021-06-05 10:00:00" style timestamps, also with '/',
// '\' or '|' as date separators and unpadded fields.
var naiveDateTime = regexp.MustCompile(`\d{4}[-|\\/]\d{1,2}[-|\\/]\d{1,2} \d{1,2}:\d{1,2}:\d{1,2}`)

// RewriteDateTimes turns every naive timestamp in q into ISO form by replacing
// the blank between date and time with 'T' and appending 'Z'. Digits are not
// re-padded. Everything that does not match is copied verbatim.
func RewriteDateTimes(q string) string {
	return naiveDateTime.ReplaceAllStringFunc(q, func(m string) string {
		date, clock, _ := strings.Cut(m, " ")
		return date + "T" + clock + "Z"
	})
}

// Token names understood by ReplaceTokens.
const (
	TokenLastIndexTime       = "dih.last_index_time"
	TokenLegacyLastIndexTime = "dataimporter.last_index_time"
	TokenRequestPrefix       = "dih.request."
)

var tokenRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// ReplaceTokens substitutes ${name} references with values from tokens.
// Values are escaped as JSON string content, so a token placed inside quotes
// cannot close the string. Unknown references are replaced with an empty
// string.
func ReplaceTokens(q string, tokens map[string]string) string {
	if !strings.Contains(q, "${") {
		return q
	}
	return tokenRef.ReplaceAllStringFunc(q, func(m string) string {
		return escape(tokens[m[2:len(m)-1]])
	})
}

func escape(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(b[1 : len(b)-1])
}
