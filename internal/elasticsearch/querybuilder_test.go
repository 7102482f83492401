package elasticsearch

import (
	"encoding/json"
	"strings"
	"testing"
)

func boolClause(t *testing.T, query map[string]any) map[string]any {
	t.Helper()
	q, ok := query["query"].(map[string]any)
	if !ok {
		t.Fatal("expected 'query' key in result")
	}
	b, ok := q["bool"].(map[string]any)
	if !ok {
		t.Fatal("expected bool query")
	}
	return b
}

func TestQueryBuilder_BuildTextQuery_Structure(t *testing.T) {
	qb := NewQueryBuilder()
	query := qb.BuildTextQuery([]string{"bike", "Trek"}, 5)

	if query["size"] != 5 {
		t.Errorf("expected size=5, got %v", query["size"])
	}
	if query["track_total_hits"] != false {
		t.Errorf("expected track_total_hits=false, got %v", query["track_total_hits"])
	}

	b := boolClause(t, query)
	should, ok := b["should"].([]map[string]any)
	if !ok {
		t.Fatal("expected should clauses")
	}
	// two terms across title and description
	if len(should) != 4 {
		t.Errorf("expected 4 should clauses, got %d", len(should))
	}
	if b["minimum_should_match"] != 1 {
		t.Errorf("expected minimum_should_match=1, got %v", b["minimum_should_match"])
	}

	wc := should[2]["wildcard"].(map[string]any)[fieldTitleRaw].(map[string]any)
	if wc["value"] != "*trek*" {
		t.Errorf("expected lowercased wildcard *trek*, got %v", wc["value"])
	}
	if wc["case_insensitive"] != true {
		t.Error("expected case_insensitive wildcard")
	}
}

func TestQueryBuilder_BuildTextQuery_FiltersAvailable(t *testing.T) {
	qb := NewQueryBuilder()
	b := boolClause(t, qb.BuildTextQuery([]string{"lamp"}, 3))

	filter, ok := b["filter"].([]map[string]any)
	if !ok || len(filter) != 1 {
		t.Fatalf("expected one filter clause, got %v", b["filter"])
	}
	term := filter[0]["term"].(map[string]any)
	if term[fieldAvailable] != true {
		t.Errorf("expected is_available filter, got %v", term)
	}
}

func TestQueryBuilder_BuildTextQuery_SkipsBlankTerms(t *testing.T) {
	qb := NewQueryBuilder()
	b := boolClause(t, qb.BuildTextQuery([]string{" ", ""}, 3))

	if _, ok := b["should"]; ok {
		t.Error("expected no should clauses for blank terms")
	}
}

func TestQueryBuilder_BuildTextQuery_EscapesWildcards(t *testing.T) {
	qb := NewQueryBuilder()
	b := boolClause(t, qb.BuildTextQuery([]string{"a*b?"}, 3))

	should := b["should"].([]map[string]any)
	wc := should[0]["wildcard"].(map[string]any)[fieldTitleRaw].(map[string]any)
	if wc["value"] != `*a\*b\?*` {
		t.Errorf("expected escaped pattern, got %v", wc["value"])
	}
}

func TestQueryBuilder_SortNewestFirst(t *testing.T) {
	qb := NewQueryBuilder()
	query := qb.BuildCategoryQuery("Furniture", 0)

	if query["size"] != 5 {
		t.Errorf("expected default size=5, got %v", query["size"])
	}

	sort, ok := query["sort"].([]map[string]any)
	if !ok || len(sort) != 2 {
		t.Fatalf("expected two sort keys, got %v", query["sort"])
	}
	created := sort[0][fieldCreatedAt].(map[string]any)
	if created["order"] != "desc" {
		t.Errorf("expected created_at desc, got %v", created["order"])
	}
	if _, ok := sort[1][fieldListingID]; !ok {
		t.Errorf("expected %s tiebreak, got %v", fieldListingID, sort[1])
	}
}

func TestQueryBuilder_SortFieldsAreMapped(t *testing.T) {
	props := ListingsMapping(1, 0, "1s")["mappings"].(map[string]any)["properties"].(map[string]any)

	for _, query := range []map[string]any{
		NewQueryBuilder().BuildTextQuery([]string{"lamp"}, 5),
		NewQueryBuilder().BuildCategoryQuery("Furniture", 5),
	} {
		for _, key := range query["sort"].([]map[string]any) {
			for field := range key {
				if strings.HasPrefix(field, "_") {
					t.Errorf("sort on metadata field %q needs fielddata", field)
					continue
				}
				def, ok := props[field].(map[string]any)
				if !ok {
					t.Errorf("sort field %q is not in the listings mapping", field)
					continue
				}
				if def["type"] != "keyword" && def["type"] != "date" {
					t.Errorf("sort field %q has type %v, want keyword or date", field, def["type"])
				}
			}
		}
	}
}

func TestQueryBuilder_BuildCategoryQuery_TermFilter(t *testing.T) {
	qb := NewQueryBuilder()
	b := boolClause(t, qb.BuildCategoryQuery("Furniture", 5))

	filter := b["filter"].([]map[string]any)
	if len(filter) != 2 {
		t.Fatalf("expected 2 filter clauses, got %d", len(filter))
	}
	term := filter[1]["term"].(map[string]any)
	if term[fieldCategory] != "Furniture" {
		t.Errorf("expected category term Furniture, got %v", term)
	}
}

func TestListingsMapping_Serializable(t *testing.T) {
	mapping := ListingsMapping(3, 1, "1s")

	data, err := json.Marshal(mapping)
	if err != nil {
		t.Fatalf("marshal mapping: %v", err)
	}
	s := string(data)
	for _, want := range []string{`"dynamic":"strict"`, `"raw"`, `"is_available"`, `"number_of_shards":3`} {
		if !strings.Contains(s, want) {
			t.Errorf("expected mapping to contain %s", want)
		}
	}
}
