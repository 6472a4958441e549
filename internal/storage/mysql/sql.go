package mysql

const periodColumns = `id, hotel_id, room_type_id, occupancy_type_id, meal_plan_id, start_date, end_date, price`

// meal_plan_id <=> ? is the NULL-safe equality: room-only groups have NULL there.
const groupWhere = `
WHERE hotel_id = ?
  AND room_type_id = ?
  AND occupancy_type_id = ?
  AND meal_plan_id <=> ?`

const listGroupSQL = `SELECT ` + periodColumns + `
FROM rate_periods` + groupWhere + `
ORDER BY start_date, id`

// Locking read used inside WithinGroup; the advisory lock already serializes
// writers, FOR UPDATE also fences writers that bypass it.
const listGroupForUpdateSQL = listGroupSQL + `
FOR UPDATE`

const getPeriodSQL = `SELECT ` + periodColumns + `
FROM rate_periods
WHERE id = ?`

const deletePeriodSQL = `DELETE FROM rate_periods WHERE id = ?`

// Completed with one "?" per id.
const deleteManyPrefix = "DELETE FROM rate_periods WHERE id IN ("

const insertPeriodsPrefix = "INSERT INTO rate_periods\n  (" + periodColumns + ")\nVALUES "

// -----------------------------------------------------------------------------
// GROUP LOCK
// -----------------------------------------------------------------------------

// GET_LOCK returns 1 on success, 0 on timeout, NULL on error. The lock is
// bound to the session, so it must be taken and released on the same conn.
const getLockSQL = `SELECT GET_LOCK(?, ?)`

const releaseLockSQL = `SELECT RELEASE_LOCK(?)`
