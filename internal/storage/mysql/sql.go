package mysql

// Note: `text` is reserved; keep it quoted everywhere.
const insertReviewsPrefix = "INSERT INTO reviews\n  (id, name, rating, date, `text`, service, postcode, lat, lng, images, approved, created_at)\nVALUES "

const insertReviewRow = "(?,?,?,?,?,?,?,?,?,?,?,?)"

// Re-ingesting a record with the same id refreshes it in place.
const insertReviewsOnDup = " ON DUPLICATE KEY UPDATE\n" +
	"  name     = VALUES(name),\n" +
	"  rating   = VALUES(rating),\n" +
	"  date     = VALUES(date),\n" +
	"  `text`   = VALUES(`text`),\n" +
	"  service  = VALUES(service),\n" +
	"  postcode = VALUES(postcode),\n" +
	"  lat      = VALUES(lat),\n" +
	"  lng      = VALUES(lng),\n" +
	"  images   = VALUES(images),\n" +
	"  approved = VALUES(approved)\n"

const deleteReviewsSQL = `DELETE FROM reviews`

const insertRunSQL = `
INSERT INTO ingest_runs (source, segments, skipped, stored)
VALUES (?, ?, ?, ?)
`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

// Newest first; served by idx_reviews_listing.
const listReviewsSQL = "SELECT id, name, rating, date, `text`, service, postcode, lat, lng, images, approved, created_at\n" +
	"FROM reviews\n" +
	"WHERE approved = TRUE\n" +
	"ORDER BY created_at DESC, id DESC\n" +
	"LIMIT ?"
