package mysql

// Points are always written and read as longitude/latitude.
const pointFromWKT = "ST_GeomFromText(?, 4326, 'axis-order=long-lat')"

const venueColumns = `v.id, v.name, v.slug, v.description, v.tags, v.created, v.address,
  ST_Longitude(v.location), ST_Latitude(v.location), v.photo, v.author`

const insertVenueSQL = `
INSERT INTO venues
  (id, name, slug, description, tags, created, location, address, photo, author)
VALUES
  (?, ?, ?, ?, CAST(? AS JSON), ?, ` + pointFromWKT + `, ?, ?, ?)
`

const insertReviewSQL = "INSERT INTO reviews (id, venue_id, author, rating, `text`, created) VALUES (?, ?, ?, ?, ?, ?)"

const upsertUserSQL = `
INSERT INTO users (id, email, favorites)
VALUES (?, ?, CAST(? AS JSON))
ON DUPLICATE KEY UPDATE
  email     = VALUES(email),
  favorites = VALUES(favorites)
`

// The membership test and the mutation happen in one statement under the row
// lock, so concurrent toggles of the same user cannot lose an update.
const toggleFavoriteSQL = `
UPDATE users
SET favorites = IF(
  JSON_CONTAINS(favorites, JSON_QUOTE(?)),
  JSON_REMOVE(favorites, JSON_UNQUOTE(JSON_SEARCH(favorites, 'one', ?))),
  JSON_ARRAY_APPEND(favorites, '$', ?)
)
WHERE id = ?
`

const selectFavoritesSQL = `SELECT favorites FROM users WHERE id = ?`

const getUserSQL = `SELECT id, email, favorites FROM users WHERE id = ?`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

const getVenueSQL = `SELECT ` + venueColumns + ` FROM venues v WHERE v.id = ?`

const getVenueBySlugSQL = `SELECT ` + venueColumns + ` FROM venues v WHERE v.slug = ?`

const countSlugsSQL = `SELECT COUNT(*) FROM venues WHERE REGEXP_LIKE(slug, ?, 'i') AND id <> ?`

const countVenuesSQL = `SELECT COUNT(*) FROM venues`

const listVenuesSQL = `
SELECT ` + venueColumns + `
FROM venues v
ORDER BY v.created DESC, v.id DESC
LIMIT ? OFFSET ?
`

// Unwind tags into rows, group and count.
const tagCountsSQL = `
SELECT jt.tag, COUNT(*) AS cnt
FROM venues v,
     JSON_TABLE(v.tags, '$[*]' COLUMNS (tag VARCHAR(128) PATH '$')) AS jt
GROUP BY jt.tag
ORDER BY cnt DESC, jt.tag ASC
`

// nearSQL prefilters on a bounding envelope so the SPATIAL index on location
// can be used; the exact cut is still the spherical distance.
const nearSQL = `
SELECT name, description, slug, photo, address, lng, lat, distance
FROM (
  SELECT v.id, v.name, v.description, v.slug, v.photo, v.address,
         ST_Longitude(v.location) AS lng,
         ST_Latitude(v.location)  AS lat,
         ST_Distance_Sphere(v.location, ` + pointFromWKT + `) AS distance
  FROM venues v
  WHERE MBRContains(` + pointFromWKT + `, v.location)
) d
WHERE distance <= ?
ORDER BY distance ASC, id ASC
`

// nearScanSQL serves radii whose envelope wraps a pole or the antimeridian.
const nearScanSQL = `
SELECT name, description, slug, photo, address, lng, lat, distance
FROM (
  SELECT v.id, v.name, v.description, v.slug, v.photo, v.address,
         ST_Longitude(v.location) AS lng,
         ST_Latitude(v.location)  AS lat,
         ST_Distance_Sphere(v.location, ` + pointFromWKT + `) AS distance
  FROM venues v
) d
WHERE distance <= ?
ORDER BY distance ASC, id ASC
`

const searchSQL = `
SELECT ` + venueColumns + `,
  MATCH(v.name, v.description) AGAINST (? IN NATURAL LANGUAGE MODE) AS score
FROM venues v
WHERE MATCH(v.name, v.description) AGAINST (? IN NATURAL LANGUAGE MODE)
ORDER BY score DESC, v.id ASC
`

// Join reviews, keep venues with enough of them, average, rank, limit.
const topRatedSQL = `
SELECT v.id, v.name, v.slug, v.photo,
       COUNT(r.id)   AS review_count,
       AVG(r.rating) AS average_rating
FROM venues v
JOIN reviews r ON r.venue_id = v.id
GROUP BY v.id, v.name, v.slug, v.photo
HAVING COUNT(r.id) >= ?
ORDER BY average_rating DESC, v.id ASC
LIMIT ?
`
