package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/relonav/navigator/internal/cache"
	"github.com/relonav/navigator/internal/elevation"
	"github.com/relonav/navigator/internal/navigator"
	"github.com/relonav/navigator/internal/osm"
	"github.com/relonav/navigator/internal/taxonomy"
	"github.com/relonav/navigator/internal/walkgraph"
	"github.com/relonav/navigator/pkg/geocode"
)

// appEnv holds the wired pipeline and whatever must be closed on exit.
type appEnv struct {
	nav     *navigator.Navigator
	tx      *taxonomy.Taxonomy
	closers []func() error
}

func (e *appEnv) Close() {
	for _, c := range e.closers {
		if err := c(); err != nil {
			zap.L().Debug("close", zap.Error(err))
		}
	}
}

// initNavigator wires the full pipeline from config: taxonomy tables,
// geocoder with persistent cache, feature fetcher, street-network
// builder, and elevation client.
func initNavigator() (*appEnv, error) {
	tx, err := taxonomy.Shared(func() (*taxonomy.Taxonomy, error) {
		return taxonomy.Load(cfg.Taxonomy.Path, taxonomy.WorkbookOptions{
			PieSheet:      cfg.Taxonomy.PieSheet,
			SelectorSheet: cfg.Taxonomy.SelectorSheet,
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "load taxonomy")
	}

	env := &appEnv{tx: tx}
	shared := cache.NewMemory(cfg.Cache.MaxEntries, time.Duration(cfg.Cache.TTLMinutes)*time.Minute)

	var store geocode.Store
	if cfg.Geocode.CachePath != "" {
		sqlStore, err := geocode.OpenSQLStore(cfg.Geocode.CachePath, time.Duration(cfg.Geocode.CacheTTLDays)*24*time.Hour)
		if err != nil {
			return nil, eris.Wrap(err, "open geocode cache")
		}
		env.closers = append(env.closers, sqlStore.Close)
		store = sqlStore
	} else {
		store = geocode.NewMemoryStore(shared)
	}

	geocoder := geocode.NewCascadeClient(
		[]geocode.Provider{
			geocode.NewNominatimProvider(geocode.NominatimOptions{
				BaseURL:    cfg.Geocode.NominatimURL,
				UserAgent:  cfg.Geocode.UserAgent,
				Timeout:    time.Duration(cfg.Geocode.TimeoutSecs) * time.Second,
				RatePerSec: cfg.Geocode.RatePerSec,
			}),
		},
		geocode.WithStore(store),
	)

	var source osm.Source
	if cfg.Overpass.ShapefileDir != "" {
		source = osm.NewShapefileSource(cfg.Overpass.ShapefileDir)
	} else {
		source = osm.NewOverpassSource(osm.OverpassOptions{
			Endpoint:   cfg.Overpass.Endpoint,
			Timeout:    time.Duration(cfg.Overpass.TimeoutSecs) * time.Second,
			RatePerSec: cfg.Overpass.RatePerSec,
			MaxRetries: cfg.Overpass.MaxRetries,
		})
	}
	fetcher := osm.NewFetcher(source, shared)

	builder := walkgraph.NewOverpassBuilder(walkgraph.BuilderOptions{
		Endpoint:   cfg.Overpass.Endpoint,
		Timeout:    time.Duration(cfg.Overpass.TimeoutSecs) * time.Second,
		RatePerSec: cfg.Overpass.RatePerSec,
		MaxRetries: cfg.Overpass.MaxRetries,
		Cache:      shared,
	})

	var grades navigator.GradeAnnotator
	if cfg.Elevation.URL != "" {
		grades = gradeAnnotator{elevation.NewClient(elevation.Options{
			BaseURL:   cfg.Elevation.URL,
			Timeout:   time.Duration(cfg.Elevation.TimeoutSecs) * time.Second,
			BatchSize: cfg.Elevation.BatchSize,
		})}
	}

	env.nav = navigator.New(geocoder, fetcher, builder, grades, tx, navigator.Options{
		LanduseKeys:    cfg.Query.LanduseKeys,
		DefaultRadiusM: cfg.Query.RadiusMeters,
		MinRadiusM:     cfg.Query.MinRadius,
		MaxRadiusM:     cfg.Query.MaxRadius,
	})
	return env, nil
}

// gradeAnnotator adapts the elevation client to the navigator's
// annotator interface.
type gradeAnnotator struct {
	client *elevation.Client
}

func (a gradeAnnotator) AnnotateGraph(ctx context.Context, g *walkgraph.Graph) error {
	return elevation.AnnotateGraph(ctx, a.client, g)
}
