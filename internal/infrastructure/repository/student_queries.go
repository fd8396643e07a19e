package repository

const studentColumns = `id, nom, prenom, classe, created_at, updated_at`

const (
	insertStudent = `
	INSERT INTO students (nom, prenom, classe, created_at, updated_at)
	VALUES (?, ?, ?, datetime('now'), datetime('now'))`

	selectAllStudents = `
	SELECT ` + studentColumns + `
	FROM students
	ORDER BY classe ASC, nom ASC, prenom ASC`

	selectStudentByID = `
	SELECT ` + studentColumns + `
	FROM students
	WHERE id = ?`

	selectStudentsByClass = `
	SELECT ` + studentColumns + `
	FROM students
	WHERE classe = ?
	ORDER BY nom ASC, prenom ASC`

	deleteStudent = `DELETE FROM students WHERE id = ?`

	countStudents = `SELECT COUNT(*) FROM students`

	countStudentsByClass = `
	SELECT classe, COUNT(*) AS count
	FROM students
	GROUP BY classe`

	selectStudentsWithoutFrequentationBetween = `
	SELECT s.id, s.nom, s.prenom, s.classe, s.created_at, s.updated_at
	FROM students s
	WHERE NOT EXISTS (
		SELECT 1 FROM frequentation f
		WHERE f.student_id = s.id AND f.starts_at >= ? AND f.starts_at <= ?
	)
	ORDER BY s.classe ASC, s.nom ASC, s.prenom ASC`
)
