package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/hitoshi/resultadmin/internal/model"
)

// Result は作成・更新・削除の応答。
type Result struct {
	StatusCode int
	Message    string
}

func resultOf(resp *Response) *Result {
	return &Result{StatusCode: resp.StatusCode, Message: resp.Message()}
}

func (c *Client) mutate(ctx context.Context, method, path string, body any) (*Result, error) {
	resp, err := c.Do(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	return resultOf(resp), nil
}

func idPath(prefix, id string) string {
	return prefix + "/" + url.PathEscape(id)
}

// --- 学部 ---

// ListFaculties は学部一覧を取得する。
// GET /admin/faculties/data
func (c *Client) ListFaculties(ctx context.Context) ([]model.Faculty, error) {
	resp, err := c.Get(ctx, "/admin/faculties/data")
	if err != nil {
		return nil, err
	}
	return decodeList[model.Faculty](resp, "Faculties")
}

// CreateFaculty は学部を作成する。
// POST /admin/faculties
func (c *Client) CreateFaculty(ctx context.Context, in model.FacultyInput) (*Result, error) {
	return c.mutate(ctx, http.MethodPost, "/admin/faculties", in)
}

// UpdateFaculty は学部を更新する。
// PUT /admin/faculty/{id}
func (c *Client) UpdateFaculty(ctx context.Context, id string, in model.FacultyInput) (*Result, error) {
	return c.mutate(ctx, http.MethodPut, idPath("/admin/faculty", id), in)
}

// DeleteFaculty は学部を削除する。
// DELETE /admin/faculty/{id}
func (c *Client) DeleteFaculty(ctx context.Context, id string) (*Result, error) {
	return c.mutate(ctx, http.MethodDelete, idPath("/admin/faculty", id), nil)
}

// --- 学科 ---

// ListDepartments は学科一覧を取得する。
// GET /admin/dept
func (c *Client) ListDepartments(ctx context.Context) ([]model.Department, error) {
	resp, err := c.Get(ctx, "/admin/dept")
	if err != nil {
		return nil, err
	}
	return decodeList[model.Department](resp, "Departments")
}

// ListDepartmentsByFaculty は指定学部の学科一覧を取得する。
// GET /admin/faculties/{id}/departments
func (c *Client) ListDepartmentsByFaculty(ctx context.Context, facultyID string) ([]model.Department, error) {
	resp, err := c.Get(ctx, idPath("/admin/faculties", facultyID)+"/departments")
	if err != nil {
		return nil, err
	}
	return decodeList[model.Department](resp, "Departments")
}

// CreateDepartment は学科を作成する。
// POST /admin/dept
func (c *Client) CreateDepartment(ctx context.Context, in model.DepartmentInput) (*Result, error) {
	return c.mutate(ctx, http.MethodPost, "/admin/dept", in)
}

// UpdateDepartment は学科を更新する。
// PUT /admin/dept/{id}
func (c *Client) UpdateDepartment(ctx context.Context, id string, in model.DepartmentInput) (*Result, error) {
	return c.mutate(ctx, http.MethodPut, idPath("/admin/dept", id), in)
}

// DeleteDepartment は学科を削除する。
// DELETE /admin/dept/{id}
func (c *Client) DeleteDepartment(ctx context.Context, id string) (*Result, error) {
	return c.mutate(ctx, http.MethodDelete, idPath("/admin/dept", id), nil)
}

// --- 科目 ---

// ListCourses は科目一覧を取得する。
// GET /admin/course
func (c *Client) ListCourses(ctx context.Context) ([]model.Course, error) {
	resp, err := c.Get(ctx, "/admin/course")
	if err != nil {
		return nil, err
	}
	return decodeList[model.Course](resp, "Courses")
}

// CreateCourse は科目を作成する。
// POST /admin/course
func (c *Client) CreateCourse(ctx context.Context, in model.CourseInput) (*Result, error) {
	return c.mutate(ctx, http.MethodPost, "/admin/course", in)
}

// UpdateCourse は科目を更新する。
// PUT /admin/course/{id}
func (c *Client) UpdateCourse(ctx context.Context, id string, in model.CourseInput) (*Result, error) {
	return c.mutate(ctx, http.MethodPut, idPath("/admin/course", id), in)
}

// DeleteCourse は科目を削除する。
// DELETE /admin/course/{id}
func (c *Client) DeleteCourse(ctx context.Context, id string) (*Result, error) {
	return c.mutate(ctx, http.MethodDelete, idPath("/admin/course", id), nil)
}

// --- 学生 ---

// ListStudents は学生一覧を取得する。
// GET /admin/students
func (c *Client) ListStudents(ctx context.Context) ([]model.Student, error) {
	resp, err := c.Get(ctx, "/admin/students")
	if err != nil {
		return nil, err
	}
	return decodeList[model.Student](resp, "Students")
}

// CreateStudent は学生を登録する。
// POST /admin/students
func (c *Client) CreateStudent(ctx context.Context, in model.StudentInput) (*Result, error) {
	return c.mutate(ctx, http.MethodPost, "/admin/students", in)
}

// UpdateStudent は学生情報を更新する。
// PUT /admin/students/{id}
func (c *Client) UpdateStudent(ctx context.Context, id string, in model.StudentInput) (*Result, error) {
	return c.mutate(ctx, http.MethodPut, idPath("/admin/students", id), in)
}

// DeleteStudent は学生を削除する。
// DELETE /admin/students/{id}
func (c *Client) DeleteStudent(ctx context.Context, id string) (*Result, error) {
	return c.mutate(ctx, http.MethodDelete, idPath("/admin/students", id), nil)
}
