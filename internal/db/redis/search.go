package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/logweave/internal/db"
	"github.com/kailas-cloud/logweave/internal/domain"
)

// SearchKNN runs a KNN vector similarity search via FT.SEARCH.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(buildKNNArgs(q)...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	return parseSearchResult(raw, true)
}

// buildKNNArgs assembles the FT.SEARCH arguments for a KNN query. The
// explicit LIMIT matches K; without it FT.SEARCH pages at its default of
// 10 and truncates larger result sets.
func buildKNNArgs(q *db.KNNQuery) []string {
	filterStr := buildFilter(q.Filter)

	knnPart := fmt.Sprintf("[KNN %d @vector $BLOB]", q.K)
	var queryStr string
	if filterStr != "" {
		queryStr = fmt.Sprintf("(%s)=>%s", filterStr, knnPart)
	} else {
		queryStr = fmt.Sprintf("*=>%s", knnPart)
	}

	args := []string{q.IndexName, queryStr}

	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)+1))
		args = append(args, q.ReturnFields...)
		args = append(args, "__vector_score")
	}

	args = append(args,
		"PARAMS", "2", "BLOB", VectorToBlob(q.Vector),
		"LIMIT", "0", strconv.Itoa(q.K),
		"DIALECT", "2",
	)
	return args
}

// SearchList performs sorted, paginated search via FT.SEARCH.
func (s *Store) SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}

	query := q.Query
	if query == "" {
		query = "*"
	}

	args := []string{q.IndexName, query}

	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)))
		args = append(args, q.ReturnFields...)
	}

	if q.SortBy != "" {
		dir := "DESC"
		if q.SortAsc {
			dir = "ASC"
		}
		args = append(args, "SORTBY", q.SortBy, dir)
	}

	args = append(args,
		"LIMIT", strconv.Itoa(q.Offset), strconv.Itoa(q.Limit),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	return parseSearchResult(raw, false)
}

// --- Result parsing ---

// parseSearchResult decodes the RESP2 FT.SEARCH reply:
// [total, key1, fields1, key2, fields2, ...]. With knnScore, the
// __vector_score field (cosine distance) is converted to similarity.
func parseSearchResult(raw []rueidis.RedisMessage, knnScore bool) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	entries := make([]db.SearchEntry, 0, total)
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		entry := db.SearchEntry{
			Key:    key,
			Fields: parseFieldPairs(fields),
		}

		if knnScore {
			if scoreStr, ok := entry.Fields["__vector_score"]; ok {
				if d, err := strconv.ParseFloat(scoreStr, 64); err == nil {
					entry.Score = max(0, 1.0-d) // cosine distance → similarity, clamped to [0,1]
				}
				delete(entry.Fields, "__vector_score")
			}
		}

		entries = append(entries, entry)
	}

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// --- Filter building ---

// buildFilter translates a VectorFilter into an FT.SEARCH pre-filter query
// string: tag equality plus a numeric timestamp range, all conjunctive.
func buildFilter(f domain.VectorFilter) string {
	if f.IsEmpty() {
		return ""
	}

	var parts []string

	for key, value := range f.Match {
		parts = append(parts, buildTagFilter(key, value))
	}

	if f.TimeRange != nil {
		parts = append(parts, buildTimeFilter(*f.TimeRange))
	}

	return strings.Join(parts, " ")
}

func buildTagFilter(key, value string) string {
	return fmt.Sprintf("@%s:{%s}", key, tagEscaper.Replace(value))
}

func buildTimeFilter(r domain.TimeRange) string {
	minBound := "-inf"
	maxBound := "+inf"

	if r.GTE != nil {
		minBound = strconv.FormatInt(*r.GTE, 10)
	}
	if r.LTE != nil {
		maxBound = strconv.FormatInt(*r.LTE, 10)
	}

	return fmt.Sprintf("@timestamp:[%s %s]", minBound, maxBound)
}

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	" ", "\\ ",
)

// VectorToBlob encodes a float32 vector as the little-endian byte string
// FT.SEARCH and HSET expect for FLOAT32 vector fields.
func VectorToBlob(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
