package mysql

// Rating columns are derived from reviews on every read; nothing stores them.
const ratingsJoin = `
LEFT JOIN (
  SELECT
    business_id,
    AVG(CASE WHEN is_approved THEN rating END) AS avg_rating,
    COUNT(*)                                   AS review_count,
    SUM(is_approved)                           AS approved_count
  FROM reviews
  GROUP BY business_id
) r ON r.business_id = b.id`

const businessFrom = `
FROM businesses b
LEFT JOIN categories c ON c.id = b.category_id` + ratingsJoin

const businessColumns = `
SELECT
  b.id,
  b.slug,
  b.name,
  b.description,
  b.category_id,
  c.name,
  c.slug,
  b.address,
  b.city,
  b.state,
  b.zip,
  b.lat,
  b.lng,
  b.phone,
  b.email,
  b.website,
  b.price_range,
  b.status,
  b.is_claimed,
  b.is_verified,
  b.is_featured,
  b.is_active,
  b.owner_id,
  b.view_count,
  b.created_at,
  b.updated_at,
  r.avg_rating,
  COALESCE(r.review_count, 0),
  COALESCE(r.approved_count, 0)`

const selectBusinessSQL = businessColumns + businessFrom

const insertBusinessSQL = `
INSERT INTO businesses
  (slug, name, description, category_id, address, city, state, zip, lat, lng,
   phone, email, website, price_range, status, submitted_by)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// LAST_INSERT_ID(id) makes the existing row id visible on the update path.
const upsertBusinessSQL = `
INSERT INTO businesses
  (slug, name, description, category_id, address, city, state, zip, lat, lng,
   phone, email, website, price_range, status, is_claimed, is_verified, is_featured,
   owner_id, view_count)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  id          = LAST_INSERT_ID(id),
  name        = VALUES(name),
  description = VALUES(description),
  category_id = VALUES(category_id),
  address     = VALUES(address),
  city        = VALUES(city),
  state       = VALUES(state),
  zip         = VALUES(zip),
  lat         = VALUES(lat),
  lng         = VALUES(lng),
  phone       = VALUES(phone),
  email       = VALUES(email),
  website     = VALUES(website),
  price_range = VALUES(price_range),
  status      = VALUES(status),
  is_claimed  = VALUES(is_claimed),
  is_verified = VALUES(is_verified),
  is_featured = VALUES(is_featured),
  owner_id    = VALUES(owner_id),
  view_count  = GREATEST(view_count, VALUES(view_count))
`

const upsertCategorySQL = `
INSERT INTO categories (name, slug, display_order, is_active)
VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  id            = LAST_INSERT_ID(id),
  name          = VALUES(name),
  display_order = VALUES(display_order),
  is_active     = VALUES(is_active)
`

const listCategoriesSQL = `
SELECT
  c.id,
  c.name,
  c.slug,
  c.display_order,
  c.is_active,
  (SELECT COUNT(*) FROM businesses b
    WHERE b.category_id = c.id AND b.status = 'approved' AND b.is_active) AS business_count
FROM categories c
WHERE c.is_active
ORDER BY c.display_order, c.name
`

const insertMissSQL = `
INSERT INTO import_misses (ref, http_status, reason)
VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE http_status = VALUES(http_status), seen_at = CURRENT_TIMESTAMP
`

// -----------------------------------------------------------------------------
// REVIEWS
// -----------------------------------------------------------------------------

const reviewColumns = `
SELECT
  id,
  business_id,
  user_id,
  author_name,
  rating,
  title,
  content,
  is_approved,
  response,
  responded_at,
  source_id,
  created_at,
  updated_at
FROM reviews`

const insertReviewSQL = `
INSERT INTO reviews (business_id, user_id, author_name, rating, title, content, is_approved)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

const insertReviewsPrefix = "INSERT INTO reviews\n  (business_id, source_id, user_id, author_name, rating, title, content, is_approved, response, responded_at, created_at)\nVALUES "

// COALESCE keeps the stored value when the import has nothing better.
const insertReviewsOnDup = " ON DUPLICATE KEY UPDATE\n" +
	"  author_name  = COALESCE(VALUES(author_name), reviews.author_name),\n" +
	"  rating       = COALESCE(VALUES(rating), reviews.rating),\n" +
	"  title        = COALESCE(VALUES(title), reviews.title),\n" +
	"  content      = COALESCE(VALUES(content), reviews.content),\n" +
	"  response     = COALESCE(VALUES(response), reviews.response),\n" +
	"  responded_at = COALESCE(VALUES(responded_at), reviews.responded_at),\n" +
	"  is_approved  = VALUES(is_approved)\n"

const updateReviewSQL = `
UPDATE reviews
SET rating = ?, title = ?, content = ?, is_approved = ?
WHERE id = ?
`

// -----------------------------------------------------------------------------
// CLAIMS
// -----------------------------------------------------------------------------

const claimColumns = `
SELECT id, business_id, user_id, email, status, document_key, note, created_at, reviewed_at
FROM claims`

const insertClaimSQL = `
INSERT INTO claims (business_id, user_id, email, status, document_key, note)
VALUES (?, ?, ?, 'pending', ?, ?)
`

// -----------------------------------------------------------------------------
// DEALS / EVENTS
// -----------------------------------------------------------------------------

const insertDealSQL = `
INSERT INTO deals (business_id, title, description, discount, starts_at, ends_at, is_published)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

const listDealsSQL = `
SELECT id, business_id, title, description, discount, starts_at, ends_at, is_published, created_at
FROM deals
WHERE business_id = ?
ORDER BY starts_at, id
`

const insertEventSQL = `
INSERT INTO events (business_id, title, description, location, starts_at, ends_at, is_published, is_cancelled)
VALUES (?, ?, ?, ?, ?, ?, ?, FALSE)
`

const listEventsSQL = `
SELECT id, business_id, title, description, location, starts_at, ends_at, is_published, is_cancelled, created_at
FROM events
WHERE business_id = ?
ORDER BY starts_at, id
`
