package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/resultadmin/internal/apiclient"
	"github.com/hitoshi/resultadmin/internal/middleware"
	"github.com/hitoshi/resultadmin/internal/model"
)

const coursesPath = "/admin/courses"

type courseListView struct {
	Courses []model.Course
}

// courseFormOptions は科目フォームの選択肢。
type courseFormOptions struct {
	Departments []model.Department
	Semesters   []string
}

var semesters = []string{"1st", "2nd"}

// ListCourses は科目一覧を表示する。
// GET /admin/courses
func (h *Handler) ListCourses(w http.ResponseWriter, r *http.Request) {
	_, api, ok := h.bind(r)
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	courses, err := api.ListCourses(r.Context())
	if err != nil {
		h.renderWithError(w, r, err, "Failed to load courses", "courses", "Courses", courseListView{})
		return
	}
	h.render(w, r, http.StatusOK, "courses", "Courses", courseListView{Courses: courses})
}

func (h *Handler) courseForm(w http.ResponseWriter, r *http.Request, api *apiclient.Client, status int, title string, form FormState) {
	departments, err := api.ListDepartments(r.Context())
	if err != nil {
		h.redirectWithFailure(w, r, err, "Failed to load departments", coursesPath)
		return
	}
	form.Extra = courseFormOptions{Departments: departments, Semesters: semesters}
	h.render(w, r, status, "course_form", title, form)
}

// NewCourse は科目の作成フォームを表示する。
// GET /admin/courses/new
func (h *Handler) NewCourse(w http.ResponseWriter, r *http.Request) {
	_, api, ok := h.bind(r)
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}
	h.courseForm(w, r, api, http.StatusOK, "Add Course", FormState{
		Action: coursesPath,
		Values: model.CourseInput{Semester: semesters[0]},
	})
}

// CreateCourse は科目を作成する。
// POST /admin/courses
func (h *Handler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	_, api, ok := h.bind(r)
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	in := parseCourseForm(r)
	if errs := h.validator.Check(in); errs != nil {
		h.courseForm(w, r, api, http.StatusUnprocessableEntity, "Add Course", FormState{
			Action: coursesPath, Values: in, Errors: errs,
		})
		return
	}

	res, err := api.CreateCourse(r.Context(), in)
	h.finishMutation(w, r, res, err, "Course added successfully", "Failed to add course", coursesPath)
}

// EditCourse は科目の編集フォームを表示する。
// GET /admin/courses/{id}/edit
func (h *Handler) EditCourse(w http.ResponseWriter, r *http.Request) {
	_, api, ok := h.bind(r)
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	id := chi.URLParam(r, "id")
	courses, err := api.ListCourses(r.Context())
	if err != nil {
		h.redirectWithFailure(w, r, err, "Failed to load courses", coursesPath)
		return
	}

	for _, c := range courses {
		if c.ID.String() == id {
			h.courseForm(w, r, api, http.StatusOK, "Edit Course", FormState{
				Action: coursesPath + "/" + id,
				Values: model.CourseInput{
					CourseCode:   c.CourseCode,
					CourseTitle:  c.CourseTitle,
					Unit:         model.ParseIntOrZero(c.Unit.String()),
					Level:        model.ParseIntOrZero(c.Level.String()),
					Semester:     c.Semester,
					DepartmentID: c.DepartmentID.String(),
				},
			})
			return
		}
	}
	h.NotFound(w, r)
}

// UpdateCourse は科目を更新する。
// POST /admin/courses/{id}
func (h *Handler) UpdateCourse(w http.ResponseWriter, r *http.Request) {
	_, api, ok := h.bind(r)
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	id := chi.URLParam(r, "id")
	in := parseCourseForm(r)
	if errs := h.validator.Check(in); errs != nil {
		h.courseForm(w, r, api, http.StatusUnprocessableEntity, "Edit Course", FormState{
			Action: coursesPath + "/" + id, Values: in, Errors: errs,
		})
		return
	}

	res, err := api.UpdateCourse(r.Context(), id, in)
	h.finishMutation(w, r, res, err, "Course updated successfully", "Failed to update course", coursesPath)
}

// DeleteCourse は科目を削除する。
// POST /admin/courses/{id}/delete
func (h *Handler) DeleteCourse(w http.ResponseWriter, r *http.Request) {
	_, api, ok := h.bind(r)
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	res, err := api.DeleteCourse(r.Context(), chi.URLParam(r, "id"))
	h.finishMutation(w, r, res, err, "Course deleted successfully", "Failed to delete course", coursesPath)
}
