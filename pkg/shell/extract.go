// Package shell extracts a structured command from MongoDB-shell-style text.
//
// Only a small grammar is recognized:
//
//	db.<collection>.find(<filter>, <projection>).limit(<n>)
//	db.getCollection("<collection>").find(...)
//	db.<collection>.aggregate([<stage>, ...])
//
// Arguments are located with a delimiter-balancing scanner. Commas and
// brackets inside string literals are not treated specially.
package shell

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/JonnyJiang123/smart-sql/pkg/core"
	qerr "github.com/JonnyJiang123/smart-sql/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// Operation is the collection method a command invokes.
type Operation string

// Supported operations.
const (
	OpFind      Operation = "find"
	OpAggregate Operation = "aggregate"
)

// Command is the structured form of a shell command.
type Command struct {
	Collection string
	Operation  Operation

	// Filter and Projection are nil when absent.
	Filter     bson.D
	Projection bson.D

	// Limit is already clamped for find commands.
	Limit int64

	// Pipeline holds the raw stages of an aggregate command.
	Pipeline []bson.D
}

var (
	getCollectionRe = regexp.MustCompile(`^db\.getCollection\(\s*(?:"([^"]*)"|'([^']*)')\s*\)`)
	dotCollectionRe = regexp.MustCompile(`^db\.([A-Za-z_$][\w$-]*)`)
)

// Extract parses a shell command.
func Extract(text string) (*Command, error) {
	text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), ";"))

	name, err := ExtractCollection(text)
	if err != nil {
		return nil, err
	}

	cmd := &Command{Collection: name, Operation: OpFind, Limit: core.DefaultLimit}

	if args, ok := callArgs(text, ".aggregate("); ok && !strings.Contains(text, ".find(") {
		cmd.Operation = OpAggregate
		pipeline, err := parsePipeline(args)
		if err != nil {
			return nil, err
		}
		cmd.Pipeline = pipeline
		return cmd, nil
	}

	if args, ok := callArgs(text, ".find("); ok {
		params := SplitArgs(args)
		if len(params) > 0 {
			cmd.Filter = ExtractFilter(params[0])
		}
		if len(params) > 1 {
			cmd.Projection = projectionArg(params[1])
		}
	}

	cmd.Limit = extractLimit(text)
	return cmd, nil
}

// ExtractCollection reads the collection name from either reference form.
func ExtractCollection(text string) (string, error) {
	text = strings.TrimSpace(text)

	if m := getCollectionRe.FindStringSubmatch(text); m != nil {
		name := m[1]
		if name == "" {
			name = m[2]
		}
		if name == "" {
			return "", qerr.New(qerr.CodeInvalidRequest, "empty collection name in getCollection()")
		}
		return name, nil
	}

	if strings.HasPrefix(text, "db.getCollection(") {
		return "", qerr.New(qerr.CodeInvalidRequest, "getCollection() requires a quoted collection name")
	}

	if m := dotCollectionRe.FindStringSubmatch(text); m != nil {
		return m[1], nil
	}

	return "", qerr.New(qerr.CodeInvalidRequest,
		`unrecognized command: expected db.<collection>.find(...) or db.getCollection("<collection>").find(...)`)
}

// callArgs returns the text between the call's opening paren and its matching close.
func callArgs(text, call string) (string, bool) {
	idx := strings.Index(text, call)
	if idx < 0 {
		return "", false
	}
	rest := text[idx+len(call):]
	end := FindCloseBracket(rest)
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

// FindCloseBracket returns the index of the delimiter that closes an
// already-open bracket at the start of s, or -1 when s is unbalanced.
func FindCloseBracket(s string) int {
	depth := 1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '{', '[':
			depth++
		case ')', '}', ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// SplitArgs splits s on commas that are not nested inside any bracket.
func SplitArgs(s string) []string {
	var params []string
	depth, start := 0, 0

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '{', '[':
			depth++
		case ')', '}', ']':
			depth--
		case ',':
			if depth == 0 {
				params = append(params, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if start < len(s) {
		params = append(params, strings.TrimSpace(s[start:]))
	}
	return params
}

// ExtractFilter parses a filter argument. Empty, {} and unparsable input yield nil.
func ExtractFilter(arg string) bson.D {
	arg = strings.TrimSpace(arg)
	if arg == "" || arg == "{}" {
		return nil
	}
	doc, err := parseDocument(arg)
	if err != nil {
		return nil
	}
	return doc
}

// ExtractProjection parses a projection argument, accepting the unquoted
// shorthand { name: 1, _id: 0 }. "{}" yields an empty document.
func ExtractProjection(arg string) bson.D {
	arg = strings.TrimSpace(arg)
	if doc, err := parseJSON(arg); err == nil {
		if doc == nil {
			doc = bson.D{}
		}
		return doc
	}

	doc := bson.D{}
	trimmed := strings.TrimSpace(strings.Trim(arg, "{}"))
	if trimmed == "" {
		return doc
	}

	for _, pair := range SplitArgs(trimmed) {
		key, value, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		key = strings.Trim(strings.TrimSpace(key), `"'`)
		if key == "" {
			continue
		}
		doc = append(doc, bson.E{Key: key, Value: guessScalar(strings.TrimSpace(value))})
	}
	return doc
}

func projectionArg(arg string) bson.D {
	arg = strings.TrimSpace(arg)
	if arg == "" || arg == "{}" {
		return nil
	}
	doc := ExtractProjection(arg)
	if len(doc) == 0 {
		return nil
	}
	return doc
}

// guessScalar coerces shorthand values: 1/0, true/false, int, float, then string.
func guessScalar(v string) any {
	switch v {
	case "1":
		return int32(1)
	case "0":
		return int32(0)
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(v, 10, 32); err == nil {
		return int32(n)
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return strings.Trim(v, `"'`)
}

func extractLimit(text string) int64 {
	idx := strings.Index(strings.ToLower(text), ".limit(")
	if idx < 0 {
		return core.DefaultLimit
	}

	var digits strings.Builder
	for _, c := range text[idx+len(".limit("):] {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
			continue
		}
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			continue
		}
		break
	}

	n, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil || n <= 0 {
		return core.DefaultLimit
	}
	return min(n, core.MaxLimit)
}

func parsePipeline(arg string) ([]bson.D, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" || arg == "[]" {
		return []bson.D{}, nil
	}

	var wrapper struct {
		Pipeline []bson.D `bson:"pipeline"`
	}
	raw := `{"pipeline": ` + arg + `}`
	if err := bson.UnmarshalExtJSON([]byte(raw), false, &wrapper); err != nil {
		if err2 := bson.UnmarshalExtJSON([]byte(relaxJSON(raw)), false, &wrapper); err2 != nil {
			return nil, qerr.Wrap(err, qerr.CodeInvalidRequest, "invalid aggregation pipeline")
		}
	}
	return wrapper.Pipeline, nil
}

func parseDocument(s string) (bson.D, error) {
	doc, err := parseJSON(s)
	if err == nil {
		return doc, nil
	}
	return parseJSON(relaxJSON(s))
}

func parseJSON(s string) (bson.D, error) {
	var doc bson.D
	if err := bson.UnmarshalExtJSON([]byte(s), false, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

var unquotedKeyRe = regexp.MustCompile(`([{,]\s*)([A-Za-z_$][\w$.]*)\s*:`)

// relaxJSON quotes bare keys and converts single-quoted strings so that
// shell-style documents become JSON.
func relaxJSON(s string) string {
	s = strings.ReplaceAll(s, `'`, `"`)
	return unquotedKeyRe.ReplaceAllString(s, `$1"$2":`)
}
