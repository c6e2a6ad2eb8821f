package handler

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/resultadmin/internal/apiclient"
	"github.com/hitoshi/resultadmin/internal/middleware"
	"github.com/hitoshi/resultadmin/internal/model"
)

const departmentsPath = "/admin/departments"

type departmentListView struct {
	Departments []model.Department
	Faculties   []model.Faculty
	FacultyID   string
	NewPath     string
}

// ListDepartments は学科一覧を表示する。?faculty=<id> で学部ごとに絞り込む。
// GET /admin/departments
func (h *Handler) ListDepartments(w http.ResponseWriter, r *http.Request) {
	_, api, ok := h.bind(r)
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	view := departmentListView{FacultyID: r.URL.Query().Get("faculty"), NewPath: departmentsPath + "/new"}
	if view.FacultyID != "" {
		view.NewPath += "?faculty=" + url.QueryEscape(view.FacultyID)
	}

	faculties, err := api.ListFaculties(r.Context())
	if err != nil {
		h.renderWithError(w, r, err, "Failed to load faculties", "departments", "Departments", view)
		return
	}
	view.Faculties = faculties

	var departments []model.Department
	if view.FacultyID != "" {
		departments, err = api.ListDepartmentsByFaculty(r.Context(), view.FacultyID)
	} else {
		departments, err = api.ListDepartments(r.Context())
	}
	if err != nil {
		h.renderWithError(w, r, err, "Failed to load departments", "departments", "Departments", view)
		return
	}
	view.Departments = departments

	h.render(w, r, http.StatusOK, "departments", "Departments", view)
}

// departmentForm は学部の選択肢を付けて学科フォームを描画する。
func (h *Handler) departmentForm(w http.ResponseWriter, r *http.Request, api *apiclient.Client, status int, title string, form FormState) {
	faculties, err := api.ListFaculties(r.Context())
	if err != nil {
		h.redirectWithFailure(w, r, err, "Failed to load faculties", departmentsPath)
		return
	}
	form.Extra = faculties
	h.render(w, r, status, "department_form", title, form)
}

// NewDepartment は学科の作成フォームを表示する。
// GET /admin/departments/new
func (h *Handler) NewDepartment(w http.ResponseWriter, r *http.Request) {
	_, api, ok := h.bind(r)
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}
	h.departmentForm(w, r, api, http.StatusOK, "Add Department", FormState{
		Action: departmentsPath,
		Values: model.DepartmentInput{FacultyID: r.URL.Query().Get("faculty")},
	})
}

// CreateDepartment は学科を作成する。
// POST /admin/departments
func (h *Handler) CreateDepartment(w http.ResponseWriter, r *http.Request) {
	_, api, ok := h.bind(r)
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	in := parseDepartmentForm(r)
	if errs := h.validator.Check(in); errs != nil {
		h.departmentForm(w, r, api, http.StatusUnprocessableEntity, "Add Department", FormState{
			Action: departmentsPath, Values: in, Errors: errs,
		})
		return
	}

	res, err := api.CreateDepartment(r.Context(), in)
	h.finishMutation(w, r, res, err, "Department added successfully", "Failed to add department", departmentsPath)
}

// EditDepartment は学科の編集フォームを表示する。
// GET /admin/departments/{id}/edit
func (h *Handler) EditDepartment(w http.ResponseWriter, r *http.Request) {
	_, api, ok := h.bind(r)
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	id := chi.URLParam(r, "id")
	departments, err := api.ListDepartments(r.Context())
	if err != nil {
		h.redirectWithFailure(w, r, err, "Failed to load departments", departmentsPath)
		return
	}

	for _, d := range departments {
		if d.ID.String() == id {
			h.departmentForm(w, r, api, http.StatusOK, "Edit Department", FormState{
				Action: departmentsPath + "/" + id,
				Values: model.DepartmentInput{Name: d.Name, FacultyID: d.FacultyID.String()},
			})
			return
		}
	}
	h.NotFound(w, r)
}

// UpdateDepartment は学科を更新する。
// POST /admin/departments/{id}
func (h *Handler) UpdateDepartment(w http.ResponseWriter, r *http.Request) {
	_, api, ok := h.bind(r)
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	id := chi.URLParam(r, "id")
	in := parseDepartmentForm(r)
	if errs := h.validator.Check(in); errs != nil {
		h.departmentForm(w, r, api, http.StatusUnprocessableEntity, "Edit Department", FormState{
			Action: departmentsPath + "/" + id, Values: in, Errors: errs,
		})
		return
	}

	res, err := api.UpdateDepartment(r.Context(), id, in)
	h.finishMutation(w, r, res, err, "Department updated successfully", "Failed to update department", departmentsPath)
}

// DeleteDepartment は学科を削除する。
// POST /admin/departments/{id}/delete
func (h *Handler) DeleteDepartment(w http.ResponseWriter, r *http.Request) {
	_, api, ok := h.bind(r)
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	res, err := api.DeleteDepartment(r.Context(), chi.URLParam(r, "id"))
	h.finishMutation(w, r, res, err, "Department deleted successfully", "Failed to delete department", departmentsPath)
}
