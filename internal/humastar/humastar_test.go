package humastar

import (
	"strings"
	"testing"
)

func TestParseSignals(t *testing.T) {
	s, err := ParseSignals([]byte(`{"lon": 10.75, "lat": 59.91, "code": 1, "message": "denied"}`))
	if err != nil {
		t.Fatal(err)
	}
	lon, lat, err := s.Coord("lon", "lat")
	if err != nil || lon != 10.75 || lat != 59.91 {
		t.Errorf("coord=%v,%v err=%v", lon, lat, err)
	}
	if s.Int("code") != 1 || s.String("message") != "denied" || !s.Has("lat") || s.Has("zoom") {
		t.Errorf("signals=%v", s)
	}
	if _, _, err := s.Coord("lon", "message"); err == nil {
		t.Error("non-numeric coordinate accepted")
	}

	in := &SignalsInput{RawBody: []byte("{")}
	if _, err := in.MustParse(); err == nil {
		t.Error("invalid JSON accepted")
	}
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	p := Paginate(items, 2, 2)
	if p.Total != 5 || len(p.Data) != 2 || p.Data[0] != 3 {
		t.Fatalf("page=%+v", p)
	}
	links := strings.Join(p.PaginationLinks("/r"), ",")
	for _, want := range []string{
		`</r?offset=0&limit=2>; rel="first"`,
		`</r?offset=0&limit=2>; rel="prev"`,
		`</r?offset=4&limit=2>; rel="next"`,
		`</r?offset=4&limit=2>; rel="last"`,
	} {
		if !strings.Contains(links, want) {
			t.Errorf("links %s missing %s", links, want)
		}
	}

	if all := Paginate(items, 0, 0); len(all.Data) != 5 || all.Limit != 5 {
		t.Errorf("unlimited=%+v", all)
	}
	if past := Paginate(items, 9, 2); len(past.Data) != 0 || past.Offset != 5 {
		t.Errorf("past end=%+v", past)
	}
	if empty := Paginate([]int{}, 0, 0); empty.PaginationLinks("/r") != nil {
		t.Error("empty page should have no links")
	}
}

func TestActionsFor(t *testing.T) {
	actions := ActionsFor("abc", []ActionDef{
		{Rel: "delete", Pattern: "/api/v1/sessions/%s", Method: "DELETE", Title: "Close session"},
	})
	got := actions[0].LinkHeader()
	want := `</api/v1/sessions/abc>; rel="delete"; method="DELETE"; title="Close session"`
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}
