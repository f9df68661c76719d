package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ednova/ednova/internal/media"
	"github.com/ednova/ednova/internal/model"
	"github.com/ednova/ednova/internal/store"
)

// Uploads go through multipart forms; videos dominate the limit.
const maxUploadBytes = 512 << 20

const (
	thumbnailFolder = "lms/thumbnails"
	videoFolder     = "lms/videos"
)

// MediaStore is the slice of the media client course handlers need,
// substitutable with a fake in tests.
type MediaStore interface {
	Enabled() bool
	Upload(ctx context.Context, folder, filename, contentType string, body io.Reader, size int64) (media.Object, error)
	Delete(ctx context.Context, id string) error
}

type CourseHandler struct {
	courses *store.CourseStore
	media   MediaStore
	logger  *slog.Logger
}

func NewCourseHandler(cs *store.CourseStore, ms MediaStore, logger *slog.Logger) *CourseHandler {
	return &CourseHandler{
		courses: cs,
		media:   ms,
		logger:  logger,
	}
}

// List returns all courses without their lecture bodies.
func (h *CourseHandler) List(w http.ResponseWriter, r *http.Request) {
	courses, err := h.courses.List()
	if err != nil {
		h.logger.Error("list courses", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list courses")
		return
	}
	if courses == nil {
		courses = []model.Course{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "all courses",
		"courses": courses,
	})
}

func (h *CourseHandler) Lectures(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid course id")
		return
	}

	course, err := h.courses.GetByID(id)
	if err != nil {
		h.logger.Error("get course", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load course")
		return
	}
	if course == nil {
		respondError(w, http.StatusNotFound, "course not found")
		return
	}

	lectures, err := h.courses.ListLectures(id)
	if err != nil {
		h.logger.Error("list lectures", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load lectures")
		return
	}
	if lectures == nil {
		lectures = []model.Lecture{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "course lectures fetched successfully",
		"lectures": lectures,
	})
}

// uploadFormFile stores an optional multipart file. Returns a zero Object
// when the field is absent.
func (h *CourseHandler) uploadFormFile(r *http.Request, field, folder string) (media.Object, error) {
	file, header, err := r.FormFile(field)
	if err == http.ErrMissingFile {
		return media.Object{}, nil
	}
	if err != nil {
		return media.Object{}, err
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	return h.media.Upload(r.Context(), folder, header.Filename, contentType, file, header.Size)
}

func (h *CourseHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	description := strings.TrimSpace(r.FormValue("description"))
	category := strings.TrimSpace(r.FormValue("category"))
	createdBy := strings.TrimSpace(r.FormValue("created_by"))
	if title == "" || description == "" || category == "" || createdBy == "" {
		respondError(w, http.StatusBadRequest, "title, description, category and created_by are required")
		return
	}

	course, err := h.courses.Create(title, description, category, createdBy)
	if err != nil {
		h.logger.Error("create course", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create course")
		return
	}

	// The row is committed before the upload. A failed upload leaves the
	// placeholder in place and surfaces the error; the caller retries the
	// thumbnail via update rather than recreating the course.
	obj, err := h.uploadFormFile(r, "thumbnail", thumbnailFolder)
	if err != nil {
		h.logger.Error("upload thumbnail", "course_id", course.ID, "error", err)
		respondError(w, http.StatusBadGateway, "course created but thumbnail upload failed")
		return
	}
	if obj.ID != "" {
		if err := h.courses.SetThumbnail(course.ID, obj.ID, obj.URL); err != nil {
			h.logger.Error("set thumbnail", "course_id", course.ID, "error", err)
			respondError(w, http.StatusInternalServerError, "failed to save thumbnail")
			return
		}
		course.ThumbnailMediaID = obj.ID
		course.ThumbnailURL = obj.URL
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "course created successfully",
		"course":  course,
	})
}

type updateCourseRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
}

func (h *CourseHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid course id")
		return
	}

	course, err := h.courses.GetByID(id)
	if err != nil {
		h.logger.Error("get course", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load course")
		return
	}
	if course == nil {
		respondError(w, http.StatusNotFound, "course not found")
		return
	}

	multipartForm := strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")

	title, description, category := course.Title, course.Description, course.Category
	if multipartForm {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			respondError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		if v := strings.TrimSpace(r.FormValue("title")); v != "" {
			title = v
		}
		if v := strings.TrimSpace(r.FormValue("description")); v != "" {
			description = v
		}
		if v := strings.TrimSpace(r.FormValue("category")); v != "" {
			category = v
		}
	} else {
		var req updateCourseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		if req.Title != nil {
			title = strings.TrimSpace(*req.Title)
		}
		if req.Description != nil {
			description = strings.TrimSpace(*req.Description)
		}
		if req.Category != nil {
			category = strings.TrimSpace(*req.Category)
		}
	}
	if title == "" || description == "" || category == "" {
		respondError(w, http.StatusBadRequest, "title, description and category cannot be empty")
		return
	}

	if err := h.courses.Update(id, title, description, category); err != nil {
		h.logger.Error("update course", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to update course")
		return
	}

	if multipartForm {
		if err := h.replaceThumbnail(r, course); err != nil {
			respondError(w, http.StatusBadGateway, "course updated but thumbnail replacement failed")
			return
		}
	}

	updated, err := h.courses.GetByID(id)
	if err != nil {
		h.logger.Error("reload course", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load course")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "course updated successfully",
		"course":  updated,
	})
}

// replaceThumbnail deletes the old asset before uploading the new one; a
// failed delete aborts so no orphaned media is left behind.
func (h *CourseHandler) replaceThumbnail(r *http.Request, course *model.Course) error {
	file, header, err := r.FormFile("thumbnail")
	if err == http.ErrMissingFile {
		return nil
	}
	if err != nil {
		return err
	}
	defer file.Close()

	if course.ThumbnailMediaID != "" {
		if err := h.media.Delete(r.Context(), course.ThumbnailMediaID); err != nil {
			h.logger.Error("delete old thumbnail", "course_id", course.ID, "error", err)
			return err
		}
	}

	obj, err := h.media.Upload(r.Context(), thumbnailFolder, header.Filename, header.Header.Get("Content-Type"), file, header.Size)
	if err != nil {
		h.logger.Error("upload thumbnail", "course_id", course.ID, "error", err)
		// Old asset is gone; record the placeholder so state stays honest.
		if err := h.courses.SetThumbnail(course.ID, "", ""); err != nil {
			h.logger.Error("clear thumbnail after failed upload", "course_id", course.ID, "error", err)
		}
		return err
	}
	return h.courses.SetThumbnail(course.ID, obj.ID, obj.URL)
}

// Delete removes a course after deleting every referenced media asset. Any
// media-store failure aborts before local rows are touched, so a retry can
// finish the job; nothing is orphaned silently.
func (h *CourseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid course id")
		return
	}

	course, err := h.courses.GetByID(id)
	if err != nil {
		h.logger.Error("get course", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load course")
		return
	}
	if course == nil {
		respondError(w, http.StatusNotFound, "course not found")
		return
	}

	lectures, err := h.courses.ListLectures(id)
	if err != nil {
		h.logger.Error("list lectures", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load lectures")
		return
	}

	var mediaIDs []string
	if course.ThumbnailMediaID != "" {
		mediaIDs = append(mediaIDs, course.ThumbnailMediaID)
	}
	for _, l := range lectures {
		if l.VideoMediaID != "" {
			mediaIDs = append(mediaIDs, l.VideoMediaID)
		}
	}

	g, ctx := errgroup.WithContext(r.Context())
	for _, mediaID := range mediaIDs {
		g.Go(func() error {
			return h.media.Delete(ctx, mediaID)
		})
	}
	if err := g.Wait(); err != nil {
		h.logger.Error("delete course media", "course_id", id, "error", err)
		respondError(w, http.StatusBadGateway, "failed to delete course media")
		return
	}

	if err := h.courses.Delete(id); err != nil {
		h.logger.Error("delete course", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to delete course")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "course deleted successfully",
	})
}

func (h *CourseHandler) AddLecture(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid course id")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	description := strings.TrimSpace(r.FormValue("description"))
	if title == "" || description == "" {
		respondError(w, http.StatusBadRequest, "title and description are required")
		return
	}

	course, err := h.courses.GetByID(id)
	if err != nil {
		h.logger.Error("get course", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load course")
		return
	}
	if course == nil {
		respondError(w, http.StatusNotFound, "course not found")
		return
	}

	lecture, err := h.courses.AddLecture(id, title, description)
	if err != nil {
		h.logger.Error("add lecture", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to add lecture")
		return
	}

	obj, err := h.uploadFormFile(r, "video", videoFolder)
	if err != nil {
		h.logger.Error("upload lecture video", "lecture_id", lecture.ID, "error", err)
		respondError(w, http.StatusBadGateway, "lecture added but video upload failed")
		return
	}
	if obj.ID != "" {
		if err := h.courses.SetLectureVideo(lecture.ID, obj.ID, obj.URL); err != nil {
			h.logger.Error("set lecture video", "lecture_id", lecture.ID, "error", err)
			respondError(w, http.StatusInternalServerError, "failed to save lecture video")
			return
		}
		lecture.VideoMediaID = obj.ID
		lecture.VideoURL = obj.URL
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "lecture added successfully",
		"lecture": lecture,
	})
}

func (h *CourseHandler) RemoveLecture(w http.ResponseWriter, r *http.Request) {
	courseID, err := parseIDParam(r, "course_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid course id")
		return
	}
	lectureID, err := parseIDParam(r, "lecture_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid lecture id")
		return
	}

	lecture, err := h.courses.GetLecture(courseID, lectureID)
	if err != nil {
		h.logger.Error("get lecture", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load lecture")
		return
	}
	if lecture == nil {
		respondError(w, http.StatusNotFound, "lecture not found")
		return
	}

	if lecture.VideoMediaID != "" {
		if err := h.media.Delete(r.Context(), lecture.VideoMediaID); err != nil {
			h.logger.Error("delete lecture video", "lecture_id", lectureID, "error", err)
			respondError(w, http.StatusBadGateway, "failed to delete lecture video")
			return
		}
	}

	if err := h.courses.RemoveLecture(courseID, lectureID); err != nil {
		h.logger.Error("remove lecture", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to remove lecture")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "lecture removed successfully",
	})
}
