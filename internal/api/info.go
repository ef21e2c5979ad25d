package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

type InfoHandler struct {
	dataDir string
	dbOK    bool
	locale  string
}

func NewInfoHandler(dataDir string, dbOK bool, locale string) *InfoHandler {
	return &InfoHandler{dataDir: dataDir, dbOK: dbOK, locale: locale}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	DataDir  string   `json:"data_dir" doc:"Data directory path"`
	DB       bool     `json:"db" doc:"Whether the track store is available"`
	Locale   string   `json:"locale" doc:"Roster collation locale" example:"nb"`
	Features []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	features := []string{"hover", "selection", "roster", "follow"}
	if h.dbOK {
		features = append(features, "track")
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "plat-kart",
		Version:  "0.1.0",
		DataDir:  h.dataDir,
		DB:       h.dbOK,
		Locale:   h.locale,
		Features: features,
	}}, nil
}
