package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/reviewsearch/internal/db"
)

// SearchKNN runs an HNSW nearest-neighbour query. EF_RUNTIME is part of the
// query string, so concurrent calls never share a beam width.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err //nolint:wrapcheck // already descriptive
	}
	return s.search(ctx, q.IndexName, buildKNNArgs(q), scoreField(q.Field()))
}

// SearchBM25 ORs the query terms and matches them against q.Fields.
func (s *Store) SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err //nolint:wrapcheck // already descriptive
	}
	args := buildTextArgs(q)
	if args == nil {
		return &db.SearchResult{}, nil // only punctuation and spaces
	}
	return s.search(ctx, q.IndexName, args, "")
}

// search issues FT.SEARCH. An empty scoreName means the reply was requested
// WITHSCORES; otherwise the score is read from that returned field.
func (s *Store) search(ctx context.Context, index string, args []string, scoreName string) (*db.SearchResult, error) {
	raw, err := s.do(ctx, s.b().Arbitrary("FT.SEARCH").Args(args...).Build()).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Key: index, Err: err}
	}
	return parseSearchReply(raw, scoreName)
}

func scoreField(vectorField string) string {
	return "__" + vectorField + "_score"
}

func buildKNNArgs(q *db.KNNQuery) []string {
	var knn strings.Builder
	fmt.Fprintf(&knn, "*=>[KNN %d @%s $BLOB", q.K, q.Field())
	if q.EFRuntime > 0 {
		fmt.Fprintf(&knn, " EF_RUNTIME %d", q.EFRuntime)
	}
	knn.WriteByte(']')

	args := appendReturn([]string{q.IndexName, knn.String()}, q.ReturnFields)
	return append(args,
		"SORTBY", scoreField(q.Field()),
		"LIMIT", "0", strconv.Itoa(q.K),
		"PARAMS", "2", "BLOB", vectorBlob(q.Vector),
		"DIALECT", "2",
	)
}

// buildTextArgs returns nil when no term survives escaping.
func buildTextArgs(q *db.TextQuery) []string {
	expr := buildTextQuery(q.Query, q.Fields)
	if expr == "" {
		return nil
	}
	args := appendReturn([]string{q.IndexName, expr}, q.ReturnFields)
	if q.Scorer != "" {
		args = append(args, "SCORER", q.Scorer)
	}
	return append(args, "WITHSCORES", "LIMIT", "0", strconv.Itoa(q.TopK), "DIALECT", "2")
}

func appendReturn(args, fields []string) []string {
	if len(fields) == 0 {
		return args
	}
	args = append(args, "RETURN", strconv.Itoa(len(fields)))
	return append(args, fields...)
}

// buildTextQuery turns free text into "@f1|f2:(t1|t2)". Returns "" when no
// term survives.
func buildTextQuery(text string, fields []string) string {
	var terms []string
	for _, w := range strings.Fields(text) {
		if t := escapeTerm(w); t != "" {
			terms = append(terms, t)
		}
	}
	if len(terms) == 0 {
		return ""
	}

	group := "(" + strings.Join(terms, "|") + ")"
	if len(fields) == 0 {
		return group
	}
	return "@" + strings.Join(fields, "|") + ":" + group
}

// queryOperators are the characters the query parser treats as syntax.
const queryOperators = `\,.'"@{}()|-~*[]!%^$<>=;:+&#/`

func escapeTerm(w string) string {
	var b strings.Builder
	b.Grow(len(w))
	for _, r := range w {
		if strings.ContainsRune(queryOperators, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// parseSearchReply reads [total, key, (score,) fields, key, (score,) fields, ...].
// Entries whose score cannot be read are skipped.
func parseSearchReply(raw []rueidis.RedisMessage, scoreName string) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}

	withScores := scoreName == ""
	stride := 2
	if withScores {
		stride = 3
	}

	res := &db.SearchResult{Total: int(total)}
	for i := 1; i+stride-1 < len(raw); i += stride {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fieldMsgs, err := raw[i+stride-1].ToArray()
		if err != nil {
			continue
		}
		fields := parseFieldPairs(fieldMsgs)

		var scoreText string
		var ok bool
		if withScores {
			scoreText, ok = messageText(raw[i+1])
		} else {
			scoreText, ok = fields[scoreName]
			delete(fields, scoreName)
		}
		if !ok {
			continue
		}
		score, err := strconv.ParseFloat(scoreText, 64)
		if err != nil {
			continue
		}
		res.Entries = append(res.Entries, db.SearchEntry{Key: key, Score: score, Fields: fields})
	}
	return res, nil
}

func parseFieldPairs(msgs []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(msgs)/2)
	for j := 0; j+1 < len(msgs); j += 2 {
		name, err := msgs[j].ToString()
		if err != nil {
			continue
		}
		if value, err := msgs[j+1].ToString(); err == nil {
			m[name] = value
		}
	}
	return m
}

// vectorBlob encodes v as little-endian float32, the layout of the indexed
// vector field.
func vectorBlob(v []float32) string {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return string(buf)
}
