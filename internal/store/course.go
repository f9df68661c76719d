package store

import (
	"database/sql"
	"fmt"

	"github.com/ednova/ednova/internal/model"
)

type CourseStore struct {
	db *sql.DB
}

func NewCourseStore(db *sql.DB) *CourseStore {
	return &CourseStore{db: db}
}

func scanCourse(scanner interface{ Scan(...any) error }) (*model.Course, error) {
	var c model.Course
	err := scanner.Scan(
		&c.ID, &c.Title, &c.Description, &c.Category, &c.CreatedBy,
		&c.ThumbnailMediaID, &c.ThumbnailURL, &c.NumberOfLectures,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// numberOfLectures is derived from the lectures table rather than stored, so
// it cannot drift from the actual lecture rows.
const courseCols = `c.id, c.title, c.description, c.category, c.created_by,
	c.thumbnail_media_id, c.thumbnail_url,
	(SELECT COUNT(*) FROM lectures l WHERE l.course_id = c.id) AS number_of_lectures,
	c.created_at, c.updated_at`

func (s *CourseStore) Create(title, description, category, createdBy string) (*model.Course, error) {
	result, err := s.db.Exec(
		`INSERT INTO courses (title, description, category, created_by) VALUES (?, ?, ?, ?)`,
		title, description, category, createdBy,
	)
	if err != nil {
		return nil, fmt.Errorf("insert course: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *CourseStore) GetByID(id int64) (*model.Course, error) {
	row := s.db.QueryRow(`SELECT `+courseCols+` FROM courses c WHERE c.id = ?`, id)
	c, err := scanCourse(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}
	return c, nil
}

// List returns all courses without their lecture bodies.
func (s *CourseStore) List() ([]model.Course, error) {
	rows, err := s.db.Query(`SELECT ` + courseCols + ` FROM courses c ORDER BY c.created_at DESC, c.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	var courses []model.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		courses = append(courses, *c)
	}
	return courses, rows.Err()
}

func (s *CourseStore) Update(id int64, title, description, category string) error {
	_, err := s.db.Exec(
		`UPDATE courses SET title = ?, description = ?, category = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		title, description, category, id,
	)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

func (s *CourseStore) SetThumbnail(id int64, mediaID, url string) error {
	_, err := s.db.Exec(
		`UPDATE courses SET thumbnail_media_id = ?, thumbnail_url = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		mediaID, url, id,
	)
	if err != nil {
		return fmt.Errorf("set thumbnail: %w", err)
	}
	return nil
}

// Delete removes the course; lecture rows go with it via the foreign key
// cascade. Media cleanup is the caller's responsibility and must happen
// before this call.
func (s *CourseStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM courses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return nil
}

func scanLecture(scanner interface{ Scan(...any) error }) (*model.Lecture, error) {
	var l model.Lecture
	err := scanner.Scan(
		&l.ID, &l.CourseID, &l.Title, &l.Description,
		&l.VideoMediaID, &l.VideoURL, &l.Position, &l.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

const lectureCols = `id, course_id, title, description, video_media_id, video_url, position, created_at`

func (s *CourseStore) AddLecture(courseID int64, title, description string) (*model.Lecture, error) {
	result, err := s.db.Exec(
		`INSERT INTO lectures (course_id, title, description, position)
		 VALUES (?, ?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM lectures WHERE course_id = ?))`,
		courseID, title, description, courseID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert lecture: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+lectureCols+` FROM lectures WHERE id = ?`, id)
	l, err := scanLecture(row)
	if err != nil {
		return nil, fmt.Errorf("get lecture: %w", err)
	}
	return l, nil
}

func (s *CourseStore) GetLecture(courseID, lectureID int64) (*model.Lecture, error) {
	row := s.db.QueryRow(
		`SELECT `+lectureCols+` FROM lectures WHERE id = ? AND course_id = ?`,
		lectureID, courseID,
	)
	l, err := scanLecture(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get lecture: %w", err)
	}
	return l, nil
}

func (s *CourseStore) ListLectures(courseID int64) ([]model.Lecture, error) {
	rows, err := s.db.Query(
		`SELECT `+lectureCols+` FROM lectures WHERE course_id = ? ORDER BY position, id`,
		courseID,
	)
	if err != nil {
		return nil, fmt.Errorf("list lectures: %w", err)
	}
	defer rows.Close()

	var lectures []model.Lecture
	for rows.Next() {
		l, err := scanLecture(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lecture: %w", err)
		}
		lectures = append(lectures, *l)
	}
	return lectures, rows.Err()
}

func (s *CourseStore) SetLectureVideo(lectureID int64, mediaID, url string) error {
	_, err := s.db.Exec(
		`UPDATE lectures SET video_media_id = ?, video_url = ? WHERE id = ?`,
		mediaID, url, lectureID,
	)
	if err != nil {
		return fmt.Errorf("set lecture video: %w", err)
	}
	return nil
}

func (s *CourseStore) RemoveLecture(courseID, lectureID int64) error {
	_, err := s.db.Exec(
		`DELETE FROM lectures WHERE id = ? AND course_id = ?`,
		lectureID, courseID,
	)
	if err != nil {
		return fmt.Errorf("remove lecture: %w", err)
	}
	return nil
}
