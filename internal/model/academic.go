package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// FlexibleID はバックエンドが数値・文字列のどちらで返しても受け付ける値。
// ID以外に学年や単位数など、表示にしか使わない数値にも使用する。
type FlexibleID string

// UnmarshalJSON は数値と文字列の両方を受け付ける。
func (id *FlexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = FlexibleID(n.String())
	return nil
}

// String はIDの文字列表現を返す。
func (id FlexibleID) String() string {
	return string(id)
}

// Faculty は学部を表す。
type Faculty struct {
	ID           FlexibleID   `json:"id"`
	Name         string       `json:"name"`
	Abbreviation string       `json:"abbreviation"`
	Departments  []Department `json:"departments,omitempty"`
	CreatedAt    string       `json:"created_at,omitempty"`
}

// Department は学科を表す。
type Department struct {
	ID        FlexibleID `json:"id"`
	Name      string     `json:"name"`
	FacultyID FlexibleID `json:"faculty_id"`
	Faculty   *Faculty   `json:"faculty,omitempty"`
}

// Course は科目を表す。
type Course struct {
	ID           FlexibleID  `json:"id"`
	CourseCode   string      `json:"course_code"`
	CourseTitle  string      `json:"course_title"`
	Unit         FlexibleID  `json:"unit,omitempty"`
	Level        FlexibleID  `json:"level,omitempty"`
	Semester     string      `json:"semester"`
	DepartmentID FlexibleID  `json:"department_id"`
	Department   *Department `json:"department,omitempty"`
	Status       string      `json:"status,omitempty"`
}

// StudentUser は学生に紐づくユーザー情報。
type StudentUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Student は学生を表す。
type Student struct {
	ID            FlexibleID   `json:"id"`
	MatricNumber  string       `json:"matric_number"`
	AdmissionYear FlexibleID   `json:"admission_year,omitempty"`
	CurrentLevel  FlexibleID   `json:"current_level,omitempty"`
	Status        string       `json:"status"`
	DepartmentID  FlexibleID   `json:"department_id"`
	User          *StudentUser `json:"user,omitempty"`
	Department    *Department  `json:"department,omitempty"`
}

// 学生ステータス。
const (
	StudentStatusActive    = "active"
	StudentStatusGraduated = "graduated"
	StudentStatusSpillover = "spillover"
	StudentStatusInactive  = "inactive"
)

// StudentStatuses は絞り込みに使用できるステータスの一覧。
var StudentStatuses = []string{
	StudentStatusActive,
	StudentStatusGraduated,
	StudentStatusSpillover,
	StudentStatusInactive,
}

// NormalizedStatus は小文字化したステータスを返す。空の場合はinactiveとみなす。
func (s Student) NormalizedStatus() string {
	st := strings.ToLower(strings.TrimSpace(s.Status))
	if st == "" {
		return StudentStatusInactive
	}
	return st
}

// LevelLabel は "300L" の形式の学年表示を返す。未設定の場合は空文字列。
func (s Student) LevelLabel() string {
	if s.CurrentLevel == "" {
		return ""
	}
	return s.CurrentLevel.String() + "L"
}

// StudentFilter は学生一覧の絞り込み条件。
type StudentFilter struct {
	Query  string // 名前・学籍番号・学科名の部分一致（大文字小文字を区別しない）
	Status string // "all" または空で全件
}

// FilterStudents は条件に一致する学生を元の順序のまま返す。
// ステータスはCountStudentsと同じくNormalizedStatusで比較する。
func FilterStudents(students []Student, f StudentFilter) []Student {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	status := strings.ToLower(strings.TrimSpace(f.Status))

	out := make([]Student, 0, len(students))
	for _, s := range students {
		if status != "" && status != "all" && s.NormalizedStatus() != status {
			continue
		}
		if q != "" && !studentMatches(s, q) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func studentMatches(s Student, q string) bool {
	if s.User != nil && strings.Contains(strings.ToLower(s.User.Name), q) {
		return true
	}
	if strings.Contains(strings.ToLower(s.MatricNumber), q) {
		return true
	}
	if s.Department != nil && strings.Contains(strings.ToLower(s.Department.Name), q) {
		return true
	}
	return false
}

// StudentStats はステータス別の学生数。
type StudentStats struct {
	Total     int
	Graduated int
	Spillover int
	Inactive  int
}

// CountStudents はステータス別の学生数を集計する。
func CountStudents(students []Student) StudentStats {
	stats := StudentStats{Total: len(students)}
	for _, s := range students {
		switch s.NormalizedStatus() {
		case StudentStatusGraduated:
			stats.Graduated++
		case StudentStatusSpillover:
			stats.Spillover++
		case StudentStatusInactive:
			stats.Inactive++
		}
	}
	return stats
}

// ParseIntOrZero はフォーム入力の整数を解釈する。不正な値は0を返す。
func ParseIntOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
