package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/resultadmin/internal/apiclient"
	"github.com/hitoshi/resultadmin/internal/middleware"
	"github.com/hitoshi/resultadmin/internal/model"
)

const facultiesPath = "/admin/faculties"

type facultyListView struct {
	Faculties []model.Faculty
}

// finishMutation は作成・更新・削除の結果を通知して一覧へ戻す。
func (h *Handler) finishMutation(w http.ResponseWriter, r *http.Request, res *apiclient.Result, err error, success, failure, location string) {
	if err != nil {
		h.redirectWithFailure(w, r, err, failure, location)
		return
	}
	h.redirectWithSuccess(w, r, res, success, location)
}

// ListFaculties は学部一覧を表示する。
// GET /admin/faculties
func (h *Handler) ListFaculties(w http.ResponseWriter, r *http.Request) {
	_, api, ok := h.bind(r)
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	faculties, err := api.ListFaculties(r.Context())
	if err != nil {
		h.renderWithError(w, r, err, "Failed to load faculties", "faculties", "Faculties", facultyListView{})
		return
	}
	h.render(w, r, http.StatusOK, "faculties", "Faculties", facultyListView{Faculties: faculties})
}

// NewFaculty は学部の作成フォームを表示する。
// GET /admin/faculties/new
func (h *Handler) NewFaculty(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "faculty_form", "Add Faculty", FormState{
		Action: facultiesPath,
		Values: model.FacultyInput{},
	})
}

// CreateFaculty は学部を作成する。
// POST /admin/faculties
func (h *Handler) CreateFaculty(w http.ResponseWriter, r *http.Request) {
	_, api, ok := h.bind(r)
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	in := parseFacultyForm(r)
	if errs := h.validator.Check(in); errs != nil {
		h.render(w, r, http.StatusUnprocessableEntity, "faculty_form", "Add Faculty", FormState{
			Action: facultiesPath, Values: in, Errors: errs,
		})
		return
	}

	res, err := api.CreateFaculty(r.Context(), in)
	h.finishMutation(w, r, res, err, "Faculty added successfully", "Failed to add faculty", facultiesPath)
}

// EditFaculty は学部の編集フォームを表示する。
// GET /admin/faculties/{id}/edit
func (h *Handler) EditFaculty(w http.ResponseWriter, r *http.Request) {
	_, api, ok := h.bind(r)
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	id := chi.URLParam(r, "id")
	faculties, err := api.ListFaculties(r.Context())
	if err != nil {
		h.redirectWithFailure(w, r, err, "Failed to load faculties", facultiesPath)
		return
	}

	for _, f := range faculties {
		if f.ID.String() == id {
			h.render(w, r, http.StatusOK, "faculty_form", "Edit Faculty", FormState{
				Action: facultiesPath + "/" + id,
				Values: model.FacultyInput{Name: f.Name, Abbreviation: f.Abbreviation},
			})
			return
		}
	}
	h.NotFound(w, r)
}

// UpdateFaculty は学部を更新する。
// POST /admin/faculties/{id}
func (h *Handler) UpdateFaculty(w http.ResponseWriter, r *http.Request) {
	_, api, ok := h.bind(r)
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	id := chi.URLParam(r, "id")
	in := parseFacultyForm(r)
	if errs := h.validator.Check(in); errs != nil {
		h.render(w, r, http.StatusUnprocessableEntity, "faculty_form", "Edit Faculty", FormState{
			Action: facultiesPath + "/" + id, Values: in, Errors: errs,
		})
		return
	}

	res, err := api.UpdateFaculty(r.Context(), id, in)
	h.finishMutation(w, r, res, err, "Faculty updated successfully", "Failed to update faculty", facultiesPath)
}

// DeleteFaculty は学部を削除する。
// POST /admin/faculties/{id}/delete
func (h *Handler) DeleteFaculty(w http.ResponseWriter, r *http.Request) {
	_, api, ok := h.bind(r)
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	res, err := api.DeleteFaculty(r.Context(), chi.URLParam(r, "id"))
	h.finishMutation(w, r, res, err, "Faculty deleted successfully", "Failed to delete faculty", facultiesPath)
}
