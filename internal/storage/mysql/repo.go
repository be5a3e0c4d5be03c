package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	mysqldrv "github.com/go-sql-driver/mysql"

	"venue_finder/internal/adapters/observability"
	"venue_finder/internal/domain"
)

const (
	errDuplicateEntry  = 1062
	errNoReferencedRow = 1452
)

var _ domain.VenueRepository = (*Repo)(nil)

type Repo struct {
	db *sql.DB
	qb goqu.DialectWrapper
}

func New(db *sql.DB) *Repo { return &Repo{db: db, qb: goqu.Dialect("mysql")} }

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func pointWKT(l domain.Location) string {
	return "POINT(" + strconv.FormatFloat(l.Longitude, 'f', -1, 64) + " " +
		strconv.FormatFloat(l.Latitude, 'f', -1, 64) + ")"
}

// sphereRadius matches the default radius of ST_Distance_Sphere.
const sphereRadius = 6370986.0

// nearEnvelopeWKT returns a lng/lat polygon enclosing every point within
// q.MaxDistance of the origin, padded by 1%. ok is false when that box would
// reach a pole or cross the antimeridian.
func nearEnvelopeWKT(q domain.NearQuery) (wkt string, ok bool) {
	ang := q.MaxDistance / sphereRadius * 1.01
	if ang >= math.Pi/2 {
		return "", false
	}
	lat := q.Latitude * math.Pi / 180
	dLat := ang * 180 / math.Pi
	if q.Latitude+dLat >= 90 || q.Latitude-dLat <= -90 {
		return "", false
	}
	s := math.Sin(ang) / math.Cos(lat)
	if s >= 1 {
		return "", false
	}
	dLng := math.Asin(s) * 180 / math.Pi
	if q.Longitude+dLng > 180 || q.Longitude-dLng < -180 {
		return "", false
	}
	minLng, maxLng := q.Longitude-dLng, q.Longitude+dLng
	minLat, maxLat := q.Latitude-dLat, q.Latitude+dLat
	f := func(x float64) string { return strconv.FormatFloat(x, 'f', -1, 64) }
	return fmt.Sprintf("POLYGON((%s %s, %s %s, %s %s, %s %s, %s %s))",
		f(minLng), f(minLat), f(maxLng), f(minLat), f(maxLng), f(maxLat),
		f(minLng), f(maxLat), f(minLng), f(minLat)), true
}

func tagsJSON(tags []string) string {
	if tags == nil {
		tags = []string{}
	}
	b, _ := json.Marshal(tags)
	return string(b)
}

// observe records the store call and maps driver errors onto domain errors.
func observe(op string, start time.Time, err error) error {
	outcome := "ok"
	defer func() { observability.ObserveStore(op, outcome, time.Since(start)) }()
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		outcome = "not_found"
		return domain.ErrNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		outcome = "timeout"
		return fmt.Errorf("%s: %w", op, err)
	}
	var me *mysqldrv.MySQLError
	if errors.As(err, &me) && me.Number == errDuplicateEntry {
		outcome = "conflict"
		if strings.Contains(me.Message, "ux_venues_slug") {
			return domain.ErrDuplicateSlug
		}
		return fmt.Errorf("%w: %s", domain.ErrConflict, me.Message)
	}
	if errors.As(err, &me) && me.Number == errNoReferencedRow {
		outcome = "not_found"
		return fmt.Errorf("%w: %s", domain.ErrNotFound, me.Message)
	}
	outcome = "error"
	return &domain.StorageError{Op: op, Err: err}
}

// ---- write paths ----

func (r *Repo) InsertVenue(ctx context.Context, v domain.Venue) (err error) {
	defer func(start time.Time) { err = observe("insert_venue", start, err) }(time.Now())
	_, err = r.db.ExecContext(ctx, insertVenueSQL,
		v.ID,
		v.Name,
		v.Slug,
		v.Description,
		tagsJSON(v.Tags),
		v.Created.UTC(),
		pointWKT(v.Location),
		v.Location.Address,
		valStr(v.Photo),
		v.Author,
	)
	return err
}

func (r *Repo) UpdateVenue(ctx context.Context, v domain.Venue) (err error) {
	defer func(start time.Time) { err = observe("update_venue", start, err) }(time.Now())
	q, args, err := r.qb.Update("venues").Prepared(true).
		Set(goqu.Record{
			"name":        v.Name,
			"slug":        v.Slug,
			"description": v.Description,
			"tags":        goqu.L("CAST(? AS JSON)", tagsJSON(v.Tags)),
			"location":    goqu.L(pointFromWKT, pointWKT(v.Location)),
			"address":     v.Location.Address,
			"photo":       valStr(v.Photo),
		}).
		Where(goqu.Ex{"id": v.ID}).
		ToSQL()
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	// Unchanged rows report 0 affected, so existence is checked separately.
	if n, _ := res.RowsAffected(); n == 0 {
		var one int
		return r.db.QueryRowContext(ctx, `SELECT 1 FROM venues WHERE id = ?`, v.ID).Scan(&one)
	}
	return nil
}

func (r *Repo) InsertReview(ctx context.Context, rv domain.Review) (err error) {
	defer func(start time.Time) { err = observe("insert_review", start, err) }(time.Now())
	_, err = r.db.ExecContext(ctx, insertReviewSQL,
		rv.ID, rv.VenueID, rv.Author, rv.Rating, rv.Text, rv.Created.UTC())
	return err
}

func (r *Repo) UpsertUser(ctx context.Context, u domain.User) (err error) {
	defer func(start time.Time) { err = observe("upsert_user", start, err) }(time.Now())
	_, err = r.db.ExecContext(ctx, upsertUserSQL, u.ID, u.Email, tagsJSON(u.Favorites))
	return err
}

func (r *Repo) ToggleFavorite(ctx context.Context, userID, venueID string) (favs []string, err error) {
	defer func(start time.Time) { err = observe("toggle_favorite", start, err) }(time.Now())
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx, toggleFavoriteSQL, venueID, venueID, venueID, userID); err != nil {
		return nil, err
	}
	// Same transaction: the row lock taken by the UPDATE makes this read the
	// state we just produced.
	var raw []byte
	if err = tx.QueryRowContext(ctx, selectFavoritesSQL, userID).Scan(&raw); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	favs = []string{}
	if err = json.Unmarshal(raw, &favs); err != nil {
		return nil, err
	}
	return favs, nil
}

// ---- read paths ----

type scanner interface{ Scan(dest ...any) error }

func scanVenue(s scanner, extra ...any) (domain.Venue, error) {
	var v domain.Venue
	var desc, photo sql.NullString
	var tags []byte
	dest := []any{
		&v.ID, &v.Name, &v.Slug, &desc, &tags, &v.Created, &v.Location.Address,
		&v.Location.Longitude, &v.Location.Latitude, &photo, &v.Author,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return domain.Venue{}, err
	}
	v.Description = desc.String
	if photo.Valid {
		p := photo.String
		v.Photo = &p
	}
	v.Tags = []string{}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &v.Tags); err != nil {
			return domain.Venue{}, fmt.Errorf("decode tags of %s: %w", v.ID, err)
		}
	}
	v.Created = v.Created.UTC()
	return v, nil
}

func (r *Repo) queryVenues(ctx context.Context, q string, args ...any) ([]domain.Venue, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Venue{}
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *Repo) GetVenue(ctx context.Context, id string) (v domain.Venue, err error) {
	defer func(start time.Time) { err = observe("get_venue", start, err) }(time.Now())
	return scanVenue(r.db.QueryRowContext(ctx, getVenueSQL, id))
}

func (r *Repo) GetVenueBySlug(ctx context.Context, slug string) (v domain.Venue, err error) {
	defer func(start time.Time) { err = observe("get_venue_by_slug", start, err) }(time.Now())
	return scanVenue(r.db.QueryRowContext(ctx, getVenueBySlugSQL, slug))
}

func (r *Repo) CountSlugs(ctx context.Context, base, excludeID string) (n int, err error) {
	defer func(start time.Time) { err = observe("count_slugs", start, err) }(time.Now())
	err = r.db.QueryRowContext(ctx, countSlugsSQL, domain.SlugPattern(base), excludeID).Scan(&n)
	return n, err
}

func (r *Repo) CountVenues(ctx context.Context) (n int, err error) {
	defer func(start time.Time) { err = observe("count_venues", start, err) }(time.Now())
	err = r.db.QueryRowContext(ctx, countVenuesSQL).Scan(&n)
	return n, err
}

func (r *Repo) ListVenues(ctx context.Context, skip, limit int) (out []domain.Venue, err error) {
	defer func(start time.Time) { err = observe("list_venues", start, err) }(time.Now())
	if limit <= 0 {
		limit = math.MaxInt32
	}
	return r.queryVenues(ctx, listVenuesSQL, limit, skip)
}

func (r *Repo) venueSelect() *goqu.SelectDataset {
	return r.qb.From(goqu.T("venues").As("v")).Prepared(true).
		Select(goqu.L(venueColumns)).
		Order(goqu.I("v.created").Desc(), goqu.I("v.id").Desc())
}

func (r *Repo) ListVenuesByIDs(ctx context.Context, ids []string) (out []domain.Venue, err error) {
	defer func(start time.Time) { err = observe("list_venues_by_ids", start, err) }(time.Now())
	if len(ids) == 0 {
		return []domain.Venue{}, nil
	}
	q, args, err := r.venueSelect().Where(goqu.Ex{"v.id": ids}).ToSQL()
	if err != nil {
		return nil, err
	}
	return r.queryVenues(ctx, q, args...)
}

func (r *Repo) ListVenuesByTag(ctx context.Context, tag string) (out []domain.Venue, err error) {
	defer func(start time.Time) { err = observe("list_venues_by_tag", start, err) }(time.Now())
	cond := goqu.L("JSON_LENGTH(v.tags) > 0")
	if tag != "" {
		cond = goqu.L("JSON_CONTAINS(v.tags, JSON_QUOTE(?))", tag)
	}
	q, args, err := r.venueSelect().Where(cond).ToSQL()
	if err != nil {
		return nil, err
	}
	return r.queryVenues(ctx, q, args...)
}

func (r *Repo) TagCounts(ctx context.Context) (out []domain.TagCount, err error) {
	defer func(start time.Time) { err = observe("tag_counts", start, err) }(time.Now())
	rows, err := r.db.QueryContext(ctx, tagCountsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out = []domain.TagCount{}
	for rows.Next() {
		var tc domain.TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

func (r *Repo) Near(ctx context.Context, q domain.NearQuery) (out []domain.NearbyVenue, err error) {
	defer func(start time.Time) { err = observe("near", start, err) }(time.Now())
	origin := domain.Location{Longitude: q.Longitude, Latitude: q.Latitude}
	var rows *sql.Rows
	if env, ok := nearEnvelopeWKT(q); ok {
		rows, err = r.db.QueryContext(ctx, nearSQL, pointWKT(origin), env, q.MaxDistance)
	} else {
		rows, err = r.db.QueryContext(ctx, nearScanSQL, pointWKT(origin), q.MaxDistance)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out = []domain.NearbyVenue{}
	for rows.Next() {
		var nv domain.NearbyVenue
		var desc, photo sql.NullString
		if err := rows.Scan(&nv.Name, &desc, &nv.Slug, &photo, &nv.Location.Address,
			&nv.Location.Longitude, &nv.Location.Latitude, &nv.Distance); err != nil {
			return nil, err
		}
		nv.Description = desc.String
		if photo.Valid {
			p := photo.String
			nv.Photo = &p
		}
		out = append(out, nv)
	}
	return out, rows.Err()
}

func (r *Repo) Search(ctx context.Context, text string) (out []domain.SearchHit, err error) {
	defer func(start time.Time) { err = observe("search", start, err) }(time.Now())
	rows, err := r.db.QueryContext(ctx, searchSQL, text, text)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out = []domain.SearchHit{}
	for rows.Next() {
		var score float64
		v, err := scanVenue(rows, &score)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.SearchHit{Venue: v, Score: score})
	}
	return out, rows.Err()
}

func (r *Repo) TopRated(ctx context.Context, q domain.TopRatedQuery) (out []domain.RatedVenue, err error) {
	defer func(start time.Time) { err = observe("top_rated", start, err) }(time.Now())
	limit := q.Limit
	if limit <= 0 {
		limit = math.MaxInt32
	}
	rows, err := r.db.QueryContext(ctx, topRatedSQL, max(q.MinReviews, 1), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out = []domain.RatedVenue{}
	var ids []string
	for rows.Next() {
		var rv domain.RatedVenue
		var photo sql.NullString
		if err := rows.Scan(&rv.ID, &rv.Name, &rv.Slug, &photo, &rv.ReviewCount, &rv.AverageRating); err != nil {
			return nil, err
		}
		if photo.Valid {
			p := photo.String
			rv.Photo = &p
		}
		out = append(out, rv)
		ids = append(ids, rv.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	reviews, err := r.reviewsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	byVenue := domain.GroupReviews(reviews)
	for i := range out {
		out[i].Reviews = byVenue[out[i].ID]
	}
	return out, nil
}

func (r *Repo) ReviewsFor(ctx context.Context, venueIDs ...string) (out []domain.Review, err error) {
	defer func(start time.Time) { err = observe("reviews_for", start, err) }(time.Now())
	return r.reviewsFor(ctx, venueIDs)
}

func (r *Repo) reviewsFor(ctx context.Context, venueIDs []string) ([]domain.Review, error) {
	if len(venueIDs) == 0 {
		return []domain.Review{}, nil
	}
	q, args, err := r.qb.From("reviews").Prepared(true).
		Select("id", "venue_id", "author", "rating", "text", "created").
		Where(goqu.Ex{"venue_id": venueIDs}).
		Order(goqu.I("created").Desc(), goqu.I("id").Desc()).
		ToSQL()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Review{}
	for rows.Next() {
		var rv domain.Review
		var text sql.NullString
		if err := rows.Scan(&rv.ID, &rv.VenueID, &rv.Author, &rv.Rating, &text, &rv.Created); err != nil {
			return nil, err
		}
		rv.Text = text.String
		rv.Created = rv.Created.UTC()
		out = append(out, rv)
	}
	return out, rows.Err()
}

func (r *Repo) GetUser(ctx context.Context, id string) (u domain.User, err error) {
	defer func(start time.Time) { err = observe("get_user", start, err) }(time.Now())
	var raw []byte
	if err = r.db.QueryRowContext(ctx, getUserSQL, id).Scan(&u.ID, &u.Email, &raw); err != nil {
		return domain.User{}, err
	}
	u.Favorites = []string{}
	if err = json.Unmarshal(raw, &u.Favorites); err != nil {
		return domain.User{}, err
	}
	return u, nil
}
