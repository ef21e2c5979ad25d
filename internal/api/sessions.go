package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/simplify"

	"github.com/joeblew999/plat-kart/internal/controller"
	"github.com/joeblew999/plat-kart/internal/humastar"
	"github.com/joeblew999/plat-kart/internal/service"
)

var sessionActions = []humastar.ActionDef{
	{Rel: "delete", Pattern: "/api/v1/sessions/%s", Method: "DELETE", Title: "Close session"},
	{Rel: "roster", Pattern: "/api/v1/sessions/%s/roster", Method: "GET", Title: "Municipality roster"},
	{Rel: "track", Pattern: "/api/v1/sessions/%s/track", Method: "GET", Title: "Recorded positions"},
	{Rel: "events", Pattern: "/api/v1/map/%s/events", Method: "GET", Title: "Map event stream"},
}

// SessionBody is a session snapshot with its follow-up actions.
type SessionBody struct {
	service.SessionInfo
}

// Actions implements humastar.Actor.
func (b SessionBody) Actions() []humastar.Action {
	return humastar.ActionsFor(b.ID, sessionActions)
}

type SessionIDInput struct {
	ID string `path:"id" doc:"Session ID"`
}

// RosterItem is one roster entry as served over REST.
type RosterItem struct {
	ID     string     `json:"id" doc:"Feature ID in the municipality layer" example:"kommuner/12"`
	Name   string     `json:"name" doc:"Municipality name" example:"Bærum"`
	Center [2]float64 `json:"center" doc:"Center of the municipality's extent (lon, lat)"`
}

// FeatureHit is one feature returned by a point query.
type FeatureHit struct {
	ID         string         `json:"id" doc:"Feature ID"`
	Name       string         `json:"name,omitempty" doc:"Region or municipality name, when the layer has one"`
	Properties map[string]any `json:"properties" doc:"GeoJSON properties"`
}

type geoJSONOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// RegisterSessions registers session lifecycle and per-session data routes.
func (h *APIHandler) RegisterSessions(api huma.API) {
	huma.Get(api, "/api/v1/sessions", h.ListSessions, huma.OperationTags("sessions"))
	huma.Post(api, "/api/v1/sessions", h.CreateSession, huma.OperationTags("sessions"))
	huma.Get(api, "/api/v1/sessions/{id}", h.GetSession, huma.OperationTags("sessions"))
	huma.Delete(api, "/api/v1/sessions/{id}", h.DeleteSession, huma.OperationTags("sessions"))
	huma.Get(api, "/api/v1/sessions/{id}/roster", h.GetRoster, huma.OperationTags("sessions"))
	huma.Get(api, "/api/v1/sessions/{id}/features", h.QueryFeatures, huma.OperationTags("sessions"))
	huma.Get(api, "/api/v1/sessions/{id}/layers/{layer}", h.GetLayerData, huma.OperationTags("sessions"))
	huma.Get(api, "/api/v1/sessions/{id}/track", h.GetTrack, huma.OperationTags("sessions"))
}

func (h *APIHandler) ListSessions(ctx context.Context, input *struct{}) (*struct{ Body []service.SessionInfo }, error) {
	return &struct{ Body []service.SessionInfo }{Body: h.svc.Sessions.List()}, nil
}

func (h *APIHandler) CreateSession(ctx context.Context, input *struct{}) (*struct {
	Status int
	Body   SessionBody
}, error) {
	s, err := h.svc.Sessions.Create(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("creating session", err)
	}
	return &struct {
		Status int
		Body   SessionBody
	}{Status: 201, Body: SessionBody{s.Info()}}, nil
}

func (h *APIHandler) GetSession(ctx context.Context, input *SessionIDInput) (*struct{ Body SessionBody }, error) {
	s, err := h.svc.Sessions.Get(input.ID)
	if err != nil {
		return nil, statusError(err)
	}
	return &struct{ Body SessionBody }{Body: SessionBody{s.Info()}}, nil
}

func (h *APIHandler) DeleteSession(ctx context.Context, input *SessionIDInput) (*struct{ Body MessageBody }, error) {
	if err := h.svc.Sessions.Delete(input.ID); err != nil {
		return nil, statusError(err)
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Session closed"}}, nil
}

func (h *APIHandler) GetRoster(ctx context.Context, input *struct {
	SessionIDInput
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Items to skip"`
	Limit  int `query:"limit" minimum:"1" maximum:"500" default:"50" doc:"Page size"`
}) (*struct {
	Body humastar.PageBody[RosterItem]
}, error) {
	s, err := h.svc.Sessions.Get(input.ID)
	if err != nil {
		return nil, statusError(err)
	}

	roster := s.Controller.Roster()
	items := make([]RosterItem, len(roster))
	for i, e := range roster {
		items[i] = rosterItem(e)
	}
	return &struct {
		Body humastar.PageBody[RosterItem]
	}{Body: humastar.Paginate(items, input.Offset, input.Limit)}, nil
}

func (h *APIHandler) QueryFeatures(ctx context.Context, input *struct {
	SessionIDInput
	Layer string  `query:"layer" required:"true" doc:"Layer ID" example:"kommuner"`
	Lon   float64 `query:"lon" required:"true" minimum:"-180" maximum:"180" doc:"Longitude"`
	Lat   float64 `query:"lat" required:"true" minimum:"-90" maximum:"90" doc:"Latitude"`
}) (*struct{ Body []FeatureHit }, error) {
	s, err := h.svc.Sessions.Get(input.ID)
	if err != nil {
		return nil, statusError(err)
	}
	c, ok := s.Map.Layer(input.Layer)
	if !ok {
		return nil, huma.Error404NotFound(fmt.Sprintf("layer %q not in session", input.Layer))
	}

	hits := []FeatureHit{}
	for _, f := range c.At(orb.Point{input.Lon, input.Lat}) {
		hits = append(hits, FeatureHit{ID: f.ID, Name: s.Controller.FeatureName(f), Properties: f.Properties})
	}
	return &struct{ Body []FeatureHit }{Body: hits}, nil
}

func (h *APIHandler) GetLayerData(ctx context.Context, input *struct {
	SessionIDInput
	Layer string  `path:"layer" doc:"Layer ID, optionally with a .geojson suffix" example:"kommuner"`
	Zoom  float64 `query:"zoom" minimum:"0" maximum:"22" doc:"Simplify for this zoom level; 0 serves full detail"`
}) (*geoJSONOutput, error) {
	s, err := h.svc.Sessions.Get(input.ID)
	if err != nil {
		return nil, statusError(err)
	}
	c, ok := s.Map.Layer(strings.TrimSuffix(input.Layer, ".geojson"))
	if !ok {
		return nil, huma.Error404NotFound(fmt.Sprintf("layer %q not in session", input.Layer))
	}

	fc := c.FeatureCollection()
	if input.Zoom > 0 {
		fc = simplifyForZoom(fc, input.Zoom, s.Map.View().Center())
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, huma.Error500InternalServerError("encoding layer", err)
	}
	return &geoJSONOutput{ContentType: "application/geo+json", Body: data}, nil
}

func (h *APIHandler) GetTrack(ctx context.Context, input *struct {
	SessionIDInput
	Limit int `query:"limit" minimum:"0" default:"0" doc:"Most recent positions to return; 0 returns all"`
}) (*geoJSONOutput, error) {
	if h.svc.Tracks == nil {
		return nil, huma.Error503ServiceUnavailable("track store not available")
	}
	if _, err := h.svc.Sessions.Get(input.ID); err != nil {
		return nil, statusError(err)
	}

	line, err := h.svc.Tracks.LineString(ctx, input.ID, input.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("reading track", err)
	}
	f := geojson.NewFeature(line)
	f.Properties["session"] = input.ID
	f.Properties["points"] = len(line)

	data, err := f.MarshalJSON()
	if err != nil {
		return nil, huma.Error500InternalServerError("encoding track", err)
	}
	return &geoJSONOutput{ContentType: "application/geo+json", Body: data}, nil
}

func rosterItem(e controller.RosterEntry) RosterItem {
	c := e.Center()
	return RosterItem{ID: e.ID, Name: e.Name, Center: [2]float64{c[0], c[1]}}
}

// simplifyForZoom drops vertices closer than one screen pixel at zoom,
// measured on the tile under center. Geometries are cloned so the engine's
// hit-test shapes keep full detail.
func simplifyForZoom(fc *geojson.FeatureCollection, zoom float64, center orb.Point) *geojson.FeatureCollection {
	tile := maptile.At(center, maptile.Zoom(uint32(zoom)))
	b := tile.Bound()
	tolerance := (b.Max[0] - b.Min[0]) / 256

	s := simplify.DouglasPeucker(tolerance)
	out := geojson.NewFeatureCollection()
	for _, f := range fc.Features {
		g := f.Geometry
		switch g.(type) {
		case orb.Point, orb.MultiPoint, nil:
		default:
			g = s.Simplify(orb.Clone(g))
		}
		nf := geojson.NewFeature(g)
		nf.ID = f.ID
		nf.Properties = f.Properties
		out.Append(nf)
	}
	return out
}
