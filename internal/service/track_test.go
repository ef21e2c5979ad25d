package service

import (
	"context"
	"testing"
	"time"

	"github.com/joeblew999/plat-kart/internal/db"
	"github.com/joeblew999/plat-kart/internal/geoloc"
)

func newTrackService(t *testing.T) *TrackService {
	t.Helper()
	conn, err := db.Open(db.Config{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	s, err := NewTrackService(context.Background(), conn)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestTrackRecordAndRead(t *testing.T) {
	s := newTrackService(t)
	ctx := context.Background()
	t0 := time.Date(2024, 5, 17, 12, 0, 0, 0, time.UTC)

	for i, p := range []geoloc.Position{
		{Lon: 10.75, Lat: 59.91, Accuracy: 12, Time: t0},
		{Lon: 10.76, Lat: 59.92, Time: t0.Add(time.Second)},
		{Lon: 10.77, Lat: 59.93, Time: t0.Add(2 * time.Second)},
	} {
		if err := s.Record(ctx, "a", p); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	if err := s.Record(ctx, "b", geoloc.Position{Lon: 5.32, Lat: 60.39}); err != nil {
		t.Fatal(err)
	}

	points, err := s.Points(ctx, "a", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 3 {
		t.Fatalf("points=%+v", points)
	}
	if points[0].Seq != 1 || points[0].Accuracy != 12 || points[0].Time != "2024-05-17T12:00:00Z" {
		t.Errorf("first=%+v", points[0])
	}
	if points[2].Lon != 10.77 {
		t.Errorf("last=%+v", points[2])
	}

	recent, err := s.LineString(ctx, "a", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[0][0] != 10.76 || recent[1][0] != 10.77 {
		t.Errorf("recent=%v", recent)
	}

	none, err := s.Points(ctx, "missing", 0)
	if err != nil || len(none) != 0 {
		t.Errorf("missing session: %v %v", none, err)
	}
}
