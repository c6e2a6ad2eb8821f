package model

// LoginInput はログインフォームの入力。
type LoginInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

// FacultyInput は学部の作成・更新フォームの入力。
type FacultyInput struct {
	Name         string `json:"name" validate:"required,max=120"`
	Abbreviation string `json:"abbreviation" validate:"required,max=20"`
}

// DepartmentInput は学科の作成・更新フォームの入力。
type DepartmentInput struct {
	Name      string `json:"name" validate:"required,max=120"`
	FacultyID string `json:"faculty_id" validate:"required"`
}

// CourseInput は科目の作成・更新フォームの入力。
type CourseInput struct {
	CourseCode   string `json:"course_code" validate:"required,max=20"`
	CourseTitle  string `json:"course_title" validate:"required,max=200"`
	Unit         int    `json:"unit" validate:"required,min=1,max=12"`
	Level        int    `json:"level" validate:"required,min=100,max=900"`
	Semester     string `json:"semester" validate:"required,oneof=1st 2nd"`
	DepartmentID string `json:"department_id" validate:"required"`
}

// StudentInput は学生の作成・更新フォームの入力。
type StudentInput struct {
	Name          string `json:"name" validate:"required,max=120"`
	Email         string `json:"email" validate:"required,email,max=254"`
	MatricNumber  string `json:"matric_number" validate:"required,max=40"`
	DepartmentID  string `json:"department_id" validate:"required"`
	AdmissionYear int    `json:"admission_year" validate:"required,min=1950,max=2100"`
	CurrentLevel  int    `json:"current_level" validate:"required,min=100,max=900"`
	Status        string `json:"status" validate:"required,oneof=active graduated spillover inactive"`
}
