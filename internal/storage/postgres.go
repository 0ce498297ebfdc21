package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"outlet-sync/internal/apperrors"
	"outlet-sync/internal/config"
	"outlet-sync/internal/outlet"
)

const (
	campaignsTable = "market_campaigns"
	storesTable    = "stores"
	regionsTable   = "store_market_regions"

	queryTimeout = 5 * time.Second
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Store is the Postgres side of the sync: the campaign directory, the store
// catalog and the resolved city write-back.
type Store struct {
	pool    *pgxpool.Pool
	dsn     string
	channel string
}

func New(ctx context.Context, cfg config.Config) (*Store, error) {
	dsn := cfg.DSN()
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Postgres.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.Postgres.MaxIdleConns)
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	return &Store{pool: pool, dsn: dsn, channel: cfg.Listener.Channel}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

func campaignsQuery() sq.SelectBuilder {
	return psql.Select("campaign_id", "domain", "space_id").
		From(campaignsTable).
		Where(sq.Eq{"active": true}).
		OrderBy("campaign_id")
}

// ListCampaigns returns the active partner campaigns.
func (s *Store) ListCampaigns(ctx context.Context) ([]outlet.Campaign, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query, args, err := campaignsQuery().ToSql()
	if err != nil {
		return nil, fmt.Errorf("build campaigns query: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query campaigns: %w", err)
	}
	defer rows.Close()

	var out []outlet.Campaign
	for rows.Next() {
		var c outlet.Campaign
		if err := rows.Scan(&c.CampaignID, &c.Domain, &c.SpaceID); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func regionHintsQuery(spaceID string) sq.SelectBuilder {
	return psql.Select("s.id", "r.region_id", "s.region", "r.city_id").
		From(storesTable + " s").
		Join(regionsTable + " r ON r.store_id = s.id").
		Where(sq.Eq{"s.space_id": spaceID})
}

// ListStoreRegionHints returns region bookkeeping keyed by lowercased store code.
func (s *Store) ListStoreRegionHints(ctx context.Context, spaceID string) (map[string]outlet.RegionHint, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query, args, err := regionHintsQuery(spaceID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build region hints query: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query region hints: %w", err)
	}
	defer rows.Close()

	out := map[string]outlet.RegionHint{}
	for rows.Next() {
		var (
			id     string
			region *string
			h      outlet.RegionHint
		)
		if err := rows.Scan(&id, &h.RegionID, &region, &h.CityID); err != nil {
			return nil, fmt.Errorf("scan region hint: %w", err)
		}
		if region != nil {
			h.RegionName = *region
		}
		out[strings.ToLower(id)] = h
	}
	return out, rows.Err()
}

func activeStoresQuery(spaceID string) sq.SelectBuilder {
	return psql.Select(
		"id", "name", "is_main", "blocked", "coord_x", "coord_y", "phones",
		"region", "city", "street", "house", "building", "possession", "house_block", "note", "km",
		"delivery_price", "schedule",
	).
		From(storesTable).
		Where(sq.Eq{"space_id": spaceID, "closed": false}).
		OrderBy("id")
}

// ListActiveStores returns the open stores of a space.
func (s *Store) ListActiveStores(ctx context.Context, spaceID string) ([]outlet.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query, args, err := activeStoresQuery(spaceID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build stores query: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stores: %w", err)
	}
	defer rows.Close()

	var out []outlet.Store
	for rows.Next() {
		st, err := scanStore(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func scanStore(row pgx.Row) (outlet.Store, error) {
	var (
		st       outlet.Store
		a        = &st.Address
		schedule []byte
		region   *string
		building *string
		estate   *string
		block    *string
		note     *string
	)
	err := row.Scan(
		&st.ID, &st.Name, &st.IsMain, &st.Blocked, &st.CoordX, &st.CoordY, &st.Phones,
		&region, &a.City, &a.Street, &a.House, &building, &estate, &block, &note, &a.Km,
		&st.DeliveryPrice, &schedule,
	)
	if err != nil {
		return outlet.Store{}, fmt.Errorf("scan store: %w", err)
	}
	a.Region = deref(region)
	a.Building = deref(building)
	a.Possession = deref(estate)
	a.HouseBlock = deref(block)
	a.Note = deref(note)

	if len(schedule) > 0 {
		if err := json.Unmarshal(schedule, &st.WorkDays); err != nil {
			return outlet.Store{}, fmt.Errorf("decode schedule of store %s: %w", st.ID, err)
		}
	}
	return st, nil
}

func persistCityQuery(code string, cityID int) sq.UpdateBuilder {
	return psql.Update(regionsTable).
		Set("city_id", cityID).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"lower(store_id)": strings.ToLower(code)})
}

// PersistResolvedCityID stores the partner locality id found for a store.
func (s *Store) PersistResolvedCityID(ctx context.Context, code string, cityID int) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query, args, err := persistCityQuery(code, cityID).ToSql()
	if err != nil {
		return fmt.Errorf("build city update: %w", err)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update city id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &apperrors.NotFoundError{Resource: "store region", ID: code}
	}
	return nil
}

func (s *Store) ListenChannel() string {
	if s.channel != "" {
		return s.channel
	}
	return "store_catalog_change"
}

func (s *Store) PgxPool() *pgxpool.Pool {
	if s.pool == nil {
		panic(errors.New("pgx pool is nil"))
	}
	return s.pool
}

// DSNRedacted is the DSN with the password masked, for logs.
func (s *Store) DSNRedacted() string {
	u, err := url.Parse(s.dsn)
	if err != nil {
		return "postgres://***"
	}
	return u.Redacted()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
