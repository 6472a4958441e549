package postgres

const periodColumns = `id, hotel_id, room_type_id, occupancy_type_id, meal_plan_id, start_date, end_date, price`

const listGroupSQL = `SELECT ` + periodColumns + `
FROM rate_periods
WHERE hotel_id = $1
  AND room_type_id = $2
  AND occupancy_type_id = $3
  AND meal_plan_id IS NOT DISTINCT FROM $4
ORDER BY start_date, id`

const getPeriodSQL = `SELECT ` + periodColumns + `
FROM rate_periods
WHERE id = $1`

const deletePeriodSQL = `DELETE FROM rate_periods WHERE id = $1`

const deleteManySQL = `DELETE FROM rate_periods WHERE id = ANY($1)`

const insertPeriodSQL = `INSERT INTO rate_periods (` + periodColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// Session scoped; taken before BEGIN and released explicitly.
const (
	groupLockSQL   = `SELECT pg_advisory_lock(hashtext($1))`
	groupUnlockSQL = `SELECT pg_advisory_unlock(hashtext($1))`
)

const (
	lockTimeoutSQL      = `SET lock_timeout = `
	resetLockTimeoutSQL = `RESET lock_timeout`
)
