package redis

import (
	"encoding/binary"
	"math"
	"strings"
	"testing"

	"github.com/kailas-cloud/logweave/internal/db"
	"github.com/kailas-cloud/logweave/internal/domain"
)

func i64(v int64) *int64 { return &v }

func TestBuildFilterEmpty(t *testing.T) {
	if got := buildFilter(domain.VectorFilter{}); got != "" {
		t.Errorf("empty filter = %q", got)
	}
}

func TestBuildFilterTagEquality(t *testing.T) {
	got := buildFilter(domain.VectorFilter{Match: map[string]string{"severity": "ERROR"}})
	if got != "@severity:{ERROR}" {
		t.Errorf("filter = %q", got)
	}
}

func TestBuildFilterTagEscaping(t *testing.T) {
	got := buildFilter(domain.VectorFilter{Match: map[string]string{"service": "api-gateway"}})
	if got != `@service:{api\-gateway}` {
		t.Errorf("filter = %q", got)
	}
}

func TestBuildFilterTimeRange(t *testing.T) {
	cases := []struct {
		name string
		r    domain.TimeRange
		want string
	}{
		{"both bounds", domain.TimeRange{GTE: i64(100), LTE: i64(200)}, "@timestamp:[100 200]"},
		{"gte only", domain.TimeRange{GTE: i64(100)}, "@timestamp:[100 +inf]"},
		{"lte only", domain.TimeRange{LTE: i64(200)}, "@timestamp:[-inf 200]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := buildFilter(domain.VectorFilter{TimeRange: &tc.r})
			if got != tc.want {
				t.Errorf("filter = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBuildFilterConjunctive(t *testing.T) {
	got := buildFilter(domain.VectorFilter{
		Match:     map[string]string{"client_id": "acme"},
		TimeRange: &domain.TimeRange{GTE: i64(1), LTE: i64(9)},
	})
	if !strings.Contains(got, "@client_id:{acme}") || !strings.Contains(got, "@timestamp:[1 9]") {
		t.Errorf("filter = %q", got)
	}
}

func TestVectorToBlob(t *testing.T) {
	blob := VectorToBlob([]float32{1.5, -2.25})
	if len(blob) != 8 {
		t.Fatalf("blob length = %d, want 8", len(blob))
	}

	first := math.Float32frombits(binary.LittleEndian.Uint32([]byte(blob)[:4]))
	second := math.Float32frombits(binary.LittleEndian.Uint32([]byte(blob)[4:]))
	if first != 1.5 || second != -2.25 {
		t.Errorf("decoded = %v %v", first, second)
	}
}

func TestBuildKNNArgsPagesToK(t *testing.T) {
	args := buildKNNArgs(&db.KNNQuery{
		IndexName:    "log_vectors:idx",
		Vector:       []float32{1, 2, 3},
		K:            50,
		ReturnFields: []string{"timestamp", "body"},
	})

	if args[0] != "log_vectors:idx" || args[1] != "*=>[KNN 50 @vector $BLOB]" {
		t.Errorf("query args = %q", args[:2])
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "LIMIT 0 50") {
		t.Errorf("args missing LIMIT 0 50: %q", joined)
	}
	if !strings.Contains(joined, "RETURN 3 timestamp body __vector_score") {
		t.Errorf("args missing RETURN clause: %q", joined)
	}
	if !strings.HasSuffix(joined, "DIALECT 2") {
		t.Errorf("args = %q", joined)
	}
}

func TestBuildKNNArgsWithFilter(t *testing.T) {
	args := buildKNNArgs(&db.KNNQuery{
		IndexName: "log_vectors:idx",
		Vector:    []float32{1},
		K:         3,
		Filter:    domain.VectorFilter{Match: map[string]string{"severity": "ERROR"}},
	})
	if args[1] != "(@severity:{ERROR})=>[KNN 3 @vector $BLOB]" {
		t.Errorf("query = %q", args[1])
	}
	if !strings.Contains(strings.Join(args, " "), "LIMIT 0 3") {
		t.Errorf("args = %q", args)
	}
}
