package pipeline

import (
	"encoding/json"
	"strings"
)

// translateResponse is the JSON shape the translator prompt asks for.
type translateResponse struct {
	SQL         string `json:"sql"`
	Explanation string `json:"explanation"`
}

// ExtractStatement pulls the first statement-shaped substring out of raw
// model output. The model is untyped text-to-text; this post-parser is the
// real contract. It tries, in order: a JSON object with an "sql" field, a
// fenced code block, and finally the raw text if it starts like a statement.
// Returns "" when nothing statement-shaped is found.
func ExtractStatement(response string) string {
	response = strings.TrimSpace(response)

	if jsonStr := extractJSON(response); jsonStr != "" {
		var parsed translateResponse
		if err := json.Unmarshal([]byte(jsonStr), &parsed); err == nil && parsed.SQL != "" {
			return cleanSQL(parsed.SQL)
		}
	}

	if sqlText := extractFromCodeBlocks(response); sqlText != "" {
		return sqlText
	}

	if looksLikeStatement(response) {
		return cleanSQL(response)
	}

	return ""
}

// extractFromCodeBlocks finds SQL in markdown code fences.
func extractFromCodeBlocks(response string) string {
	if start := strings.Index(response, "```sql"); start != -1 {
		start += len("```sql")
		if end := strings.Index(response[start:], "```"); end != -1 {
			return cleanSQL(response[start : start+end])
		}
	}

	if start := strings.Index(response, "```"); start != -1 {
		start += 3
		if end := strings.Index(response[start:], "```"); end != -1 {
			content := strings.TrimSpace(response[start : start+end])
			if looksLikeStatement(content) {
				return cleanSQL(content)
			}
		}
	}

	return ""
}

// looksLikeStatement checks if text begins like a SQL statement. Mutation
// verbs count as statement-shaped here; safety is the Guard's concern, not
// the extractor's.
func looksLikeStatement(text string) bool {
	upper := strings.ToUpper(strings.TrimSpace(text))
	keywords := []string{"SELECT", "WITH", "INSERT", "UPDATE", "DELETE", "CREATE", "ALTER", "DROP", "TRUNCATE"}
	for _, kw := range keywords {
		if strings.HasPrefix(upper, kw+" ") || strings.HasPrefix(upper, kw+"\n") || upper == kw {
			return true
		}
	}
	return false
}

// cleanSQL normalizes whitespace, strips a leading "sql" tag some models
// emit, and removes trailing semicolons.
func cleanSQL(sqlText string) string {
	sqlText = strings.TrimSpace(sqlText)
	if lower := strings.ToLower(sqlText); strings.HasPrefix(lower, "sql\n") {
		sqlText = strings.TrimSpace(sqlText[4:])
	}
	sqlText = strings.ReplaceAll(sqlText, "\r\n", "\n")
	sqlText = strings.TrimSuffix(strings.TrimSpace(sqlText), ";")
	return strings.TrimSpace(sqlText)
}

// extractJSON finds a JSON object in a response that might contain markdown.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	if start := strings.Index(response, "```json"); start != -1 {
		start += len("```json")
		if end := strings.Index(response[start:], "```"); end != -1 {
			return strings.TrimSpace(response[start : start+end])
		}
	}

	if start := strings.Index(response, "{"); start != -1 {
		return extractJSONObject(response, start)
	}

	return ""
}

// extractJSONObject extracts a complete JSON object starting at the given
// position, handling strings that may contain braces.
func extractJSONObject(s string, start int) string {
	if start >= len(s) || s[start] != '{' {
		return ""
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}

	return ""
}
