package repository

const frequentationColumns = `id, starts_at, activity, student_id, created_at, updated_at`

const frequentationWithStudentColumns = `
	f.id, f.starts_at, f.activity, f.student_id, f.created_at, f.updated_at,
	s.nom, s.prenom, s.classe`

// insertChunkSize bounds the rows per multi-row INSERT.
const insertChunkSize = 200

const (
	insertFrequentation = `
	INSERT INTO frequentation (starts_at, activity, student_id, created_at, updated_at)
	VALUES (?, ?, ?, datetime('now'), datetime('now'))`

	insertFrequentationNamed = `
	INSERT INTO frequentation (starts_at, activity, student_id, created_at, updated_at)
	VALUES (:starts_at, :activity, :student_id, datetime('now'), datetime('now'))`

	selectAllFrequentations = `
	SELECT ` + frequentationColumns + `
	FROM frequentation
	ORDER BY starts_at DESC`

	selectFrequentationByID = `
	SELECT ` + frequentationColumns + `
	FROM frequentation
	WHERE id = ?`

	selectFrequentationByIDWithStudent = `
	SELECT ` + frequentationWithStudentColumns + `
	FROM frequentation f
	LEFT JOIN students s ON s.id = f.student_id
	WHERE f.id = ?`

	selectFrequentationsByStudentID = `
	SELECT ` + frequentationWithStudentColumns + `
	FROM frequentation f
	LEFT JOIN students s ON s.id = f.student_id
	WHERE f.student_id = ?
	ORDER BY f.starts_at DESC`

	selectFrequentationsByDateRange = `
	SELECT ` + frequentationWithStudentColumns + `
	FROM frequentation f
	LEFT JOIN students s ON s.id = f.student_id
	WHERE f.starts_at >= ? AND f.starts_at <= ?
	ORDER BY f.starts_at DESC`

	selectAllFrequentationsWithStudent = `
	SELECT ` + frequentationWithStudentColumns + `
	FROM frequentation f
	LEFT JOIN students s ON s.id = f.student_id
	ORDER BY f.starts_at DESC`

	deleteFrequentation = `DELETE FROM frequentation WHERE id = ?`

	deleteFrequentationsByIDs = `DELETE FROM frequentation WHERE id IN (?)`

	deleteFrequentationsByStudentID = `DELETE FROM frequentation WHERE student_id = ?`

	deleteFrequentationsOlderThan = `DELETE FROM frequentation WHERE starts_at < ?`

	countFrequentations = `SELECT COUNT(*) FROM frequentation`

	countFrequentationsByActivity = `
	SELECT activity, COUNT(*) AS count
	FROM frequentation
	WHERE starts_at >= ? AND starts_at <= ?
	GROUP BY activity`

	countFrequentationsByStudent = `
	SELECT student_id, COUNT(*) AS count
	FROM frequentation
	WHERE starts_at >= ? AND starts_at <= ?
	GROUP BY student_id`

	frequentationBounds = `
	SELECT MIN(starts_at) AS earliest, MAX(starts_at) AS latest
	FROM frequentation
	WHERE starts_at >= ? AND starts_at <= ?`
)
