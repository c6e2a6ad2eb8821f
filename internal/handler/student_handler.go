package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/resultadmin/internal/apiclient"
	"github.com/hitoshi/resultadmin/internal/middleware"
	"github.com/hitoshi/resultadmin/internal/model"
)

const studentsPath = "/admin/students"

type studentListView struct {
	Students []model.Student
	Stats    model.StudentStats
	Filter   model.StudentFilter
	Statuses []string
}

type studentFormOptions struct {
	Departments []model.Department
	Statuses    []string
}

// ListStudents は学生一覧を表示する。
// ?q= で名前・学籍番号・学科名を検索し、?status= で絞り込む。
// 集計は絞り込み前の全件に対して行う。
// GET /admin/students
func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	_, api, ok := h.bind(r)
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	view := studentListView{
		Filter: model.StudentFilter{
			Query:  r.URL.Query().Get("q"),
			Status: r.URL.Query().Get("status"),
		},
		Statuses: model.StudentStatuses,
	}
	if view.Filter.Status == "" {
		view.Filter.Status = "all"
	}

	students, err := api.ListStudents(r.Context())
	if err != nil {
		h.renderWithError(w, r, err, "Failed to load students", "students", "Students", view)
		return
	}

	view.Stats = model.CountStudents(students)
	view.Students = model.FilterStudents(students, view.Filter)
	h.render(w, r, http.StatusOK, "students", "Students", view)
}

func (h *Handler) studentForm(w http.ResponseWriter, r *http.Request, api *apiclient.Client, status int, title string, form FormState) {
	departments, err := api.ListDepartments(r.Context())
	if err != nil {
		h.redirectWithFailure(w, r, err, "Failed to load departments", studentsPath)
		return
	}
	form.Extra = studentFormOptions{Departments: departments, Statuses: model.StudentStatuses}
	h.render(w, r, status, "student_form", title, form)
}

// NewStudent は学生の登録フォームを表示する。
// GET /admin/students/new
func (h *Handler) NewStudent(w http.ResponseWriter, r *http.Request) {
	_, api, ok := h.bind(r)
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}
	h.studentForm(w, r, api, http.StatusOK, "Add Student", FormState{
		Action: studentsPath,
		Values: model.StudentInput{Status: model.StudentStatusActive},
	})
}

// CreateStudent は学生を登録する。
// POST /admin/students
func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	_, api, ok := h.bind(r)
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	in := parseStudentForm(r)
	if errs := h.validator.Check(in); errs != nil {
		h.studentForm(w, r, api, http.StatusUnprocessableEntity, "Add Student", FormState{
			Action: studentsPath, Values: in, Errors: errs,
		})
		return
	}

	res, err := api.CreateStudent(r.Context(), in)
	h.finishMutation(w, r, res, err, "Student added successfully", "Failed to add student", studentsPath)
}

// EditStudent は学生の編集フォームを表示する。
// GET /admin/students/{id}/edit
func (h *Handler) EditStudent(w http.ResponseWriter, r *http.Request) {
	_, api, ok := h.bind(r)
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	id := chi.URLParam(r, "id")
	students, err := api.ListStudents(r.Context())
	if err != nil {
		h.redirectWithFailure(w, r, err, "Failed to load students", studentsPath)
		return
	}

	for _, s := range students {
		if s.ID.String() != id {
			continue
		}
		in := model.StudentInput{
			MatricNumber:  s.MatricNumber,
			DepartmentID:  s.DepartmentID.String(),
			AdmissionYear: model.ParseIntOrZero(s.AdmissionYear.String()),
			CurrentLevel:  model.ParseIntOrZero(s.CurrentLevel.String()),
			Status:        s.NormalizedStatus(),
		}
		if s.User != nil {
			in.Name = s.User.Name
			in.Email = s.User.Email
		}
		h.studentForm(w, r, api, http.StatusOK, "Edit Student", FormState{
			Action: studentsPath + "/" + id,
			Values: in,
		})
		return
	}
	h.NotFound(w, r)
}

// UpdateStudent は学生情報を更新する。
// POST /admin/students/{id}
func (h *Handler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	_, api, ok := h.bind(r)
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	id := chi.URLParam(r, "id")
	in := parseStudentForm(r)
	if errs := h.validator.Check(in); errs != nil {
		h.studentForm(w, r, api, http.StatusUnprocessableEntity, "Edit Student", FormState{
			Action: studentsPath + "/" + id, Values: in, Errors: errs,
		})
		return
	}

	res, err := api.UpdateStudent(r.Context(), id, in)
	h.finishMutation(w, r, res, err, "Student updated successfully", "Failed to update student", studentsPath)
}

// DeleteStudent は学生を削除する。
// POST /admin/students/{id}/delete
func (h *Handler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	_, api, ok := h.bind(r)
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	res, err := api.DeleteStudent(r.Context(), chi.URLParam(r, "id"))
	h.finishMutation(w, r, res, err, "Student deleted successfully", "Failed to delete student", studentsPath)
}
