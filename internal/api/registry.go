package api

import (
	"context"

	"github.com/go-playground/validator/v10"

	"fredserve/internal/app/service"
	"fredserve/internal/common"
	"fredserve/internal/fred"
	"fredserve/internal/output"
)

// ToolArgs is the loosely-typed argument bag decoded from a tool invocation.
type ToolArgs map[string]any

func (a ToolArgs) String(key string) string {
	v, _ := a[key].(string)
	return v
}

func (a ToolArgs) Int(key string) (int, bool) {
	switch v := a[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

// Params collects the optional pass-through query parameters nested under
// "params".
func (a ToolArgs) Params() map[string]string {
	raw, ok := a["params"].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = output.FormatScalar(v)
	}
	return out
}

func (a ToolArgs) Options() service.OutputOptions {
	return service.OutputOptions{
		Output:   a.String("output"),
		Format:   a.String("format"),
		Project:  a.String("project"),
		Filename: a.String("filename"),
	}
}

// ToolHandler executes one operation against the FRED API and returns the
// routed response payload.
type ToolHandler func(ctx context.Context, args ToolArgs) (map[string]any, error)

// ToolSpec describes a registered operation.
type ToolSpec struct {
	Name    string
	Summary string
	Domain  string
	Handler ToolHandler `json:"-"`
}

// Registry is the lookup table from operation name to handler. It lives at
// the tool-surface boundary; the core services know nothing about it.
type Registry struct {
	specs    map[string]*ToolSpec
	order    []string
	validate *validator.Validate
}

type ToolDeps struct {
	Categories *fred.CategoryAPI
	Series     *fred.SeriesAPI
	Releases   *fred.ReleaseAPI
	Sources    *fred.SourceAPI
	Tags       *fred.TagAPI
	Maps       *fred.MapsAPI
	Router     *service.OutputRouter
	Data       *service.DataService
}

func NewRegistry(deps ToolDeps) *Registry {
	r := &Registry{
		specs:    map[string]*ToolSpec{},
		validate: validator.New(),
	}
	r.registerAll(deps)
	return r
}

// List returns the registered specs in registration order.
func (r *Registry) List() []*ToolSpec {
	out := make([]*ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.specs[name])
	}
	return out
}

// Dispatch invokes the named operation.
func (r *Registry) Dispatch(ctx context.Context, name string, args ToolArgs) (map[string]any, error) {
	spec, ok := r.specs[name]
	if !ok {
		return nil, common.NewAPIErrorf(common.CodeUnknownOperation, "operation '%s' is not registered", name).
			WithDetail("operation", name)
	}
	if err := r.validate.Struct(args.Options()); err != nil {
		return nil, common.NewAPIErrorf(common.CodeInvalidParameter, "invalid output options: %v", err)
	}
	return spec.Handler(ctx, args)
}

type fetchFunc func(ctx context.Context, args ToolArgs) (map[string]any, error)

// register wires a pass-through operation: fetch the payload, then let the
// output router pick the disposition.
func (r *Registry) register(deps ToolDeps, name, summary, domain, subdir string, fetch fetchFunc) {
	spec := &ToolSpec{Name: name, Summary: summary, Domain: domain}
	spec.Handler = func(ctx context.Context, args ToolArgs) (map[string]any, error) {
		payload, err := fetch(ctx, args)
		if err != nil {
			return nil, err
		}
		opts := args.Options()
		return deps.Router.Handle(service.HandleRequest{
			Data:      payload,
			Operation: name,
			Output:    opts.Output,
			Format:    opts.Format,
			Project:   opts.Project,
			Filename:  opts.Filename,
			Subdir:    subdir,
		})
	}
	r.specs[name] = spec
	r.order = append(r.order, name)
}

func requireString(args ToolArgs, key string) (string, error) {
	value := args.String(key)
	if value == "" {
		return "", common.NewAPIErrorf(common.CodeInvalidParameter, "'%s' is required", key).
			WithDetail("parameter", key)
	}
	return value, nil
}

func requireInt(args ToolArgs, key string) (int, error) {
	value, ok := args.Int(key)
	if !ok {
		return 0, common.NewAPIErrorf(common.CodeInvalidParameter, "'%s' must be an integer", key).
			WithDetail("parameter", key)
	}
	return value, nil
}

func (r *Registry) registerAll(deps ToolDeps) {
	// Categories.
	r.register(deps, "category_get", "Get a category by id", "categories", "categories",
		func(ctx context.Context, args ToolArgs) (map[string]any, error) {
			id, err := requireInt(args, "category_id")
			if err != nil {
				return nil, err
			}
			return deps.Categories.Get(ctx, id)
		})
	r.register(deps, "category_children", "List child categories", "categories", "categories",
		func(ctx context.Context, args ToolArgs) (map[string]any, error) {
			id, err := requireInt(args, "category_id")
			if err != nil {
				return nil, err
			}
			return deps.Categories.Children(ctx, id, args.Params())
		})
	r.register(deps, "category_related", "List related categories", "categories", "categories",
		func(ctx context.Context, args ToolArgs) (map[string]any, error) {
			id, err := requireInt(args, "category_id")
			if err != nil {
				return nil, err
			}
			return deps.Categories.Related(ctx, id, args.Params())
		})
	r.register(deps, "category_series", "List series in a category", "categories", "categories",
		func(ctx context.Context, args ToolArgs) (map[string]any, error) {
			id, err := requireInt(args, "category_id")
			if err != nil {
				return nil, err
			}
			return deps.Categories.Series(ctx, id, args.Params())
		})
	r.register(deps, "category_tags", "List tags on a category", "categories", "categories",
		func(ctx context.Context, args ToolArgs) (map[string]any, error) {
			id, err := requireInt(args, "category_id")
			if err != nil {
				return nil, err
			}
			return deps.Categories.Tags(ctx, id, args.Params())
		})
	r.register(deps, "category_related_tags", "List related tags for a category", "categories", "categories",
		func(ctx context.Context, args ToolArgs) (map[string]any, error) {
			id, err := requireInt(args, "category_id")
			if err != nil {
				return nil, err
			}
			return deps.Categories.RelatedTags(ctx, id, args.Params())
		})

	// Series.
	r.register(deps, "series_get", "Get series metadata", "series", "series",
		func(ctx context.Context, args ToolArgs) (map[string]any, error) {
			id, err := requireString(args, "series_id")
			if err != nil {
				return nil, err
			}
			return deps.Series.Get(ctx, id)
		})
	r.register(deps, "series_search", "Full-text series search", "series", "series",
		func(ctx context.Context, args ToolArgs) (map[string]any, error) {
			text, err := requireString(args, "search_text")
			if err != nil {
				return nil, err
			}
			return deps.Series.Search(ctx, text, args.Params())
		})
	r.register(deps, "series_categories", "Categories containing a series", "series", "series",
		func(ctx context.Context, args ToolArgs) (map[string]any, error) {
			id, err := requireString(args, "series_id")
			if err != nil {
				return nil, err
			}
			return deps.Series.Categories(ctx, id)
		})
	r.register(deps, "series_release", "Release a series belongs to", "series", "series",
		func(ctx context.Context, args ToolArgs) (map[string]any, error) {
			id, err := requireString(args, "series_id")
			if err != nil {
				return nil, err
			}
			return deps.Series.Release(ctx, id)
		})
	r.register(deps, "series_tags", "Tags on a series", "series", "series",
		func(ctx context.Context, args ToolArgs) (map[string]any, error) {
			id, err := requireString(args, "series_id")
			if err != nil {
				return nil, err
			}
			return deps.Series.Tags(ctx, id, args.Params())
		})
	r.register(deps, "series_search_tags", "Tags for a series search", "series", "series",
		func(ctx context.Context, args ToolArgs) (map[string]any, error) {
			text, err := requireString(args, "search_text")
			if err != nil {
				return nil, err
			}
			return deps.Series.SearchTags(ctx, text, args.Params())
		})
	r.register(deps, "series_search_related_tags", "Related tags for a series search", "series", "series",
		func(ctx context.Context, args ToolArgs) (map[string]any, error) {
			text, err := requireString(args, "search_text")
			if err != nil {
				return nil, err
			}
			tags, err := requireString(args, "tag_names")
			if err != nil {
				return nil, err
			}
			return deps.Series.SearchRelatedTags(ctx, text, tags, args.Params())
		})
	r.register(deps, "series_updates", "Recently updated series", "series", "series",
		func(ctx context.Context, args ToolArgs) (map[string]any, error) {
			return deps.Series.Updates(ctx, args.Params())
		})
	r.register(deps, "series_vintage_dates", "Revision history dates", "series", "series",
		func(ctx context.Context, args ToolArgs) (map[string]any, error) {
			id, err := requireString(args, "series_id")
			if err != nil {
				return nil, err
			}
			return deps.Series.VintageDates(ctx, id, args.Params())
		})

	// series_observations goes through the data service because it owns the
	// preview/threshold/background-job flow.
	observations := &ToolSpec{
		Name:    "series_observations",
		Summary: "Time series data points, offloaded to a background job when large",
		Domain:  "series",
	}
	observations.Handler = func(ctx context.Context, args ToolArgs) (map[string]any, error) {
		id, err := requireString(args, "series_id")
		if err != nil {
			return nil, err
		}
		limit, _ := args.Int("limit")
		params := args.Params()
		if limit > 0 {
			params = withStringParam(params, "limit", limit)
		}
		return deps.Data.Observations(ctx, service.ObservationsRequest{
			SeriesID: id,
			Params:   params,
			Limit:    limit,
			Options:  args.Options(),
		})
	}
	r.specs[observations.Name] = observations
	r.order = append(r.order, observations.Name)

	// Releases.
	r.register(deps, "release_list", "List all releases", "releases", "releases",
		func(ctx context.Context, args ToolArgs) (map[string]any, error) {
			return deps.Releases.List(ctx, args.Params())
		})
	r.register(deps, "release_dates", "Release dates across all releases", "releases", "releases",
		func(ctx context.Context, args ToolArgs) (map[string]any, error) {
			return deps.Releases.AllDates(ctx, args.Params())
		})
	r.register(deps, "release_get", "Get a release by id", "releases", "releases",
		func(ctx context.Context, args ToolArgs) (map[string]any, error) {
			id, err := requireInt(args, "release_id")
			if err != nil {
				return nil, err
			}
			return deps.Releases.Get(ctx, id)
		})
	r.register(deps, "release_get_dates", "Dates for one release", "releases", "releases",
		func(ctx context.Context, args ToolArgs) (map[string]any, error) {
			id, err := requireInt(args, "release_id")
			if err != nil {
				return nil, err
			}
			return deps.Releases.Dates(ctx, id, args.Params())
		})
	r.register(deps, "release_series", "Series in a release", "releases", "releases",
		func(ctx context.Context, args ToolArgs) (map[string]any, error) {
			id, err := requireInt(args, "release_id")
			if err != nil {
				return nil, err
			}
			return deps.Releases.Series(ctx, id, args.Params())
		})
	r.register(deps, "release_sources", "Sources for a release", "releases", "releases",
		func(ctx context.Context, args ToolArgs) (map[string]any, error) {
			id, err := requireInt(args, "release_id")
			if err != nil {
				return nil, err
			}
			return deps.Releases.Sources(ctx, id)
		})
	r.register(deps, "release_tags", "Tags on a release", "releases", "releases",
		func(ctx context.Context, args ToolArgs) (map[string]any, error) {
			id, err := requireInt(args, "release_id")
			if err != nil {
				return nil, err
			}
			return deps.Releases.Tags(ctx, id, args.Params())
		})
	r.register(deps, "release_related_tags", "Related tags for a release", "releases", "releases",
		func(ctx context.Context, args ToolArgs) (map[string]any, error) {
			id, err := requireInt(args, "release_id")
			if err != nil {
				return nil, err
			}
			tags, err := requireString(args, "tag_names")
			if err != nil {
				return nil, err
			}
			return deps.Releases.RelatedTags(ctx, id, tags, args.Params())
		})
	r.register(deps, "release_tables", "Release table trees", "releases", "releases",
		func(ctx context.Context, args ToolArgs) (map[string]any, error) {
			id, err := requireInt(args, "release_id")
			if err != nil {
				return nil, err
			}
			return deps.Releases.Tables(ctx, id, args.Params())
		})

	// Sources.
	r.register(deps, "source_list", "List all sources", "sources", "sources",
		func(ctx context.Context, args ToolArgs) (map[string]any, error) {
			return deps.Sources.List(ctx, args.Params())
		})
	r.register(deps, "source_get", "Get a source by id", "sources", "sources",
		func(ctx context.Context, args ToolArgs) (map[string]any, error) {
			id, err := requireInt(args, "source_id")
			if err != nil {
				return nil, err
			}
			return deps.Sources.Get(ctx, id)
		})
	r.register(deps, "source_releases", "Releases for a source", "sources", "sources",
		func(ctx context.Context, args ToolArgs) (map[string]any, error) {
			id, err := requireInt(args, "source_id")
			if err != nil {
				return nil, err
			}
			return deps.Sources.Releases(ctx, id, args.Params())
		})

	// Tags.
	r.register(deps, "tag_list", "List tags", "tags", "tags",
		func(ctx context.Context, args ToolArgs) (map[string]any, error) {
			return deps.Tags.List(ctx, args.Params())
		})
	r.register(deps, "tag_series", "Series matching tags", "tags", "tags",
		func(ctx context.Context, args ToolArgs) (map[string]any, error) {
			tags, err := requireString(args, "tag_names")
			if err != nil {
				return nil, err
			}
			return deps.Tags.Series(ctx, tags, args.Params())
		})
	r.register(deps, "tag_related", "Tags related to given tags", "tags", "tags",
		func(ctx context.Context, args ToolArgs) (map[string]any, error) {
			tags, err := requireString(args, "tag_names")
			if err != nil {
				return nil, err
			}
			return deps.Tags.Related(ctx, tags, args.Params())
		})

	// GeoFRED maps.
	r.register(deps, "maps_shapes", "Geographic shape data", "maps", "maps",
		func(ctx context.Context, args ToolArgs) (map[string]any, error) {
			shape, err := requireString(args, "shape")
			if err != nil {
				return nil, err
			}
			return deps.Maps.Shapes(ctx, shape)
		})
	r.register(deps, "maps_series_group", "Series group metadata", "maps", "maps",
		func(ctx context.Context, args ToolArgs) (map[string]any, error) {
			id, err := requireString(args, "series_id")
			if err != nil {
				return nil, err
			}
			return deps.Maps.SeriesGroup(ctx, id)
		})
	r.register(deps, "maps_regional_data", "Regional economic data", "maps", "maps",
		func(ctx context.Context, args ToolArgs) (map[string]any, error) {
			return deps.Maps.RegionalData(ctx, args.Params())
		})
	r.register(deps, "maps_series_data", "GeoFRED data for one series", "maps", "maps",
		func(ctx context.Context, args ToolArgs) (map[string]any, error) {
			id, err := requireString(args, "series_id")
			if err != nil {
				return nil, err
			}
			return deps.Maps.SeriesData(ctx, id, args.Params())
		})
}

func withStringParam(params map[string]string, key string, value int) map[string]string {
	out := make(map[string]string, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	out[key] = output.FormatScalar(value)
	return out
}
