package fred

import (
	"context"
	"strconv"

	"fredserve/internal/common"
)

// Endpoint wrappers are thin, parameterized pass-through calls. Each returns
// the decoded response payload; single-entity lookups translate an empty
// result list into NOT_FOUND, which the FRED API reports as a 200.

type CategoryAPI struct{ c *Client }

func NewCategoryAPI(c *Client) *CategoryAPI { return &CategoryAPI{c: c} }

func (a *CategoryAPI) Get(ctx context.Context, categoryID int) (map[string]any, error) {
	payload, err := a.c.GetJSON(ctx, "/fred/category", map[string]string{"category_id": strconv.Itoa(categoryID)})
	if err != nil {
		return nil, err
	}
	if err := requireRecords(payload, "categories", "category_id", strconv.Itoa(categoryID)); err != nil {
		return nil, err
	}
	return payload, nil
}

func (a *CategoryAPI) Children(ctx context.Context, categoryID int, params map[string]string) (map[string]any, error) {
	return a.c.GetJSON(ctx, "/fred/category/children", withParam(params, "category_id", strconv.Itoa(categoryID)))
}

func (a *CategoryAPI) Related(ctx context.Context, categoryID int, params map[string]string) (map[string]any, error) {
	return a.c.GetJSON(ctx, "/fred/category/related", withParam(params, "category_id", strconv.Itoa(categoryID)))
}

func (a *CategoryAPI) Series(ctx context.Context, categoryID int, params map[string]string) (map[string]any, error) {
	return a.c.GetJSON(ctx, "/fred/category/series", withParam(params, "category_id", strconv.Itoa(categoryID)))
}

func (a *CategoryAPI) Tags(ctx context.Context, categoryID int, params map[string]string) (map[string]any, error) {
	return a.c.GetJSON(ctx, "/fred/category/tags", withParam(params, "category_id", strconv.Itoa(categoryID)))
}

func (a *CategoryAPI) RelatedTags(ctx context.Context, categoryID int, params map[string]string) (map[string]any, error) {
	return a.c.GetJSON(ctx, "/fred/category/related_tags", withParam(params, "category_id", strconv.Itoa(categoryID)))
}

type SeriesAPI struct{ c *Client }

func NewSeriesAPI(c *Client) *SeriesAPI { return &SeriesAPI{c: c} }

func (a *SeriesAPI) Get(ctx context.Context, seriesID string) (map[string]any, error) {
	payload, err := a.c.GetJSON(ctx, "/fred/series", map[string]string{"series_id": seriesID})
	if err != nil {
		return nil, err
	}
	if err := requireRecords(payload, "seriess", "series_id", seriesID); err != nil {
		return nil, err
	}
	return payload, nil
}

func (a *SeriesAPI) Search(ctx context.Context, searchText string, params map[string]string) (map[string]any, error) {
	return a.c.GetJSON(ctx, "/fred/series/search", withParam(params, "search_text", searchText))
}

func (a *SeriesAPI) Observations(ctx context.Context, seriesID string, params map[string]string) (map[string]any, error) {
	return a.c.GetJSON(ctx, "/fred/series/observations", withParam(params, "series_id", seriesID))
}

func (a *SeriesAPI) Categories(ctx context.Context, seriesID string) (map[string]any, error) {
	return a.c.GetJSON(ctx, "/fred/series/categories", map[string]string{"series_id": seriesID})
}

func (a *SeriesAPI) Release(ctx context.Context, seriesID string) (map[string]any, error) {
	return a.c.GetJSON(ctx, "/fred/series/release", map[string]string{"series_id": seriesID})
}

func (a *SeriesAPI) Tags(ctx context.Context, seriesID string, params map[string]string) (map[string]any, error) {
	return a.c.GetJSON(ctx, "/fred/series/tags", withParam(params, "series_id", seriesID))
}

func (a *SeriesAPI) SearchTags(ctx context.Context, searchText string, params map[string]string) (map[string]any, error) {
	return a.c.GetJSON(ctx, "/fred/series/search/tags", withParam(params, "series_search_text", searchText))
}

func (a *SeriesAPI) SearchRelatedTags(ctx context.Context, searchText, tagNames string, params map[string]string) (map[string]any, error) {
	params = withParam(params, "series_search_text", searchText)
	return a.c.GetJSON(ctx, "/fred/series/search/related_tags", withParam(params, "tag_names", tagNames))
}

func (a *SeriesAPI) Updates(ctx context.Context, params map[string]string) (map[string]any, error) {
	return a.c.GetJSON(ctx, "/fred/series/updates", params)
}

func (a *SeriesAPI) VintageDates(ctx context.Context, seriesID string, params map[string]string) (map[string]any, error) {
	return a.c.GetJSON(ctx, "/fred/series/vintagedates", withParam(params, "series_id", seriesID))
}

type ReleaseAPI struct{ c *Client }

func NewReleaseAPI(c *Client) *ReleaseAPI { return &ReleaseAPI{c: c} }

func (a *ReleaseAPI) List(ctx context.Context, params map[string]string) (map[string]any, error) {
	return a.c.GetJSON(ctx, "/fred/releases", params)
}

func (a *ReleaseAPI) AllDates(ctx context.Context, params map[string]string) (map[string]any, error) {
	return a.c.GetJSON(ctx, "/fred/releases/dates", params)
}

func (a *ReleaseAPI) Get(ctx context.Context, releaseID int) (map[string]any, error) {
	payload, err := a.c.GetJSON(ctx, "/fred/release", map[string]string{"release_id": strconv.Itoa(releaseID)})
	if err != nil {
		return nil, err
	}
	if err := requireRecords(payload, "releases", "release_id", strconv.Itoa(releaseID)); err != nil {
		return nil, err
	}
	return payload, nil
}

func (a *ReleaseAPI) Dates(ctx context.Context, releaseID int, params map[string]string) (map[string]any, error) {
	return a.c.GetJSON(ctx, "/fred/release/dates", withParam(params, "release_id", strconv.Itoa(releaseID)))
}

func (a *ReleaseAPI) Series(ctx context.Context, releaseID int, params map[string]string) (map[string]any, error) {
	return a.c.GetJSON(ctx, "/fred/release/series", withParam(params, "release_id", strconv.Itoa(releaseID)))
}

func (a *ReleaseAPI) Sources(ctx context.Context, releaseID int) (map[string]any, error) {
	return a.c.GetJSON(ctx, "/fred/release/sources", map[string]string{"release_id": strconv.Itoa(releaseID)})
}

func (a *ReleaseAPI) Tags(ctx context.Context, releaseID int, params map[string]string) (map[string]any, error) {
	return a.c.GetJSON(ctx, "/fred/release/tags", withParam(params, "release_id", strconv.Itoa(releaseID)))
}

func (a *ReleaseAPI) RelatedTags(ctx context.Context, releaseID int, tagNames string, params map[string]string) (map[string]any, error) {
	params = withParam(params, "release_id", strconv.Itoa(releaseID))
	return a.c.GetJSON(ctx, "/fred/release/related_tags", withParam(params, "tag_names", tagNames))
}

func (a *ReleaseAPI) Tables(ctx context.Context, releaseID int, params map[string]string) (map[string]any, error) {
	return a.c.GetJSON(ctx, "/fred/release/tables", withParam(params, "release_id", strconv.Itoa(releaseID)))
}

type SourceAPI struct{ c *Client }

func NewSourceAPI(c *Client) *SourceAPI { return &SourceAPI{c: c} }

func (a *SourceAPI) List(ctx context.Context, params map[string]string) (map[string]any, error) {
	return a.c.GetJSON(ctx, "/fred/sources", params)
}

func (a *SourceAPI) Get(ctx context.Context, sourceID int) (map[string]any, error) {
	payload, err := a.c.GetJSON(ctx, "/fred/source", map[string]string{"source_id": strconv.Itoa(sourceID)})
	if err != nil {
		return nil, err
	}
	if err := requireRecords(payload, "sources", "source_id", strconv.Itoa(sourceID)); err != nil {
		return nil, err
	}
	return payload, nil
}

func (a *SourceAPI) Releases(ctx context.Context, sourceID int, params map[string]string) (map[string]any, error) {
	return a.c.GetJSON(ctx, "/fred/source/releases", withParam(params, "source_id", strconv.Itoa(sourceID)))
}

type TagAPI struct{ c *Client }

func NewTagAPI(c *Client) *TagAPI { return &TagAPI{c: c} }

func (a *TagAPI) List(ctx context.Context, params map[string]string) (map[string]any, error) {
	return a.c.GetJSON(ctx, "/fred/tags", params)
}

func (a *TagAPI) Series(ctx context.Context, tagNames string, params map[string]string) (map[string]any, error) {
	return a.c.GetJSON(ctx, "/fred/tags/series", withParam(params, "tag_names", tagNames))
}

func (a *TagAPI) Related(ctx context.Context, tagNames string, params map[string]string) (map[string]any, error) {
	return a.c.GetJSON(ctx, "/fred/related_tags", withParam(params, "tag_names", tagNames))
}

type MapsAPI struct{ c *Client }

func NewMapsAPI(c *Client) *MapsAPI { return &MapsAPI{c: c} }

func (a *MapsAPI) Shapes(ctx context.Context, shape string) (map[string]any, error) {
	return a.c.GetJSON(ctx, "/geofred/shapes/file", map[string]string{"shape": shape})
}

func (a *MapsAPI) SeriesGroup(ctx context.Context, seriesID string) (map[string]any, error) {
	return a.c.GetJSON(ctx, "/geofred/series/group", map[string]string{"series_id": seriesID})
}

func (a *MapsAPI) RegionalData(ctx context.Context, params map[string]string) (map[string]any, error) {
	return a.c.GetJSON(ctx, "/geofred/regional/data", params)
}

func (a *MapsAPI) SeriesData(ctx context.Context, seriesID string, params map[string]string) (map[string]any, error) {
	return a.c.GetJSON(ctx, "/geofred/series/data", withParam(params, "series_id", seriesID))
}

func withParam(params map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	out[key] = value
	return out
}

func requireRecords(payload map[string]any, listKey, idName, id string) error {
	items, ok := payload[listKey].([]any)
	if !ok || len(items) == 0 {
		return common.NewAPIErrorf(common.CodeNotFound, "no entity matched %s=%s", idName, id).
			WithDetail(idName, id)
	}
	return nil
}
