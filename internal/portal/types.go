package portal

// LoginResponse is the portal's reply to /user/login. Only the access token
// is consumed; the remaining fields are kept for completeness.
type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresToken int64  `json:"expires_token"`
	StudentID    int64  `json:"student_id"`
	FIO          string `json:"FIO"`
	ErrorMessage string `json:"error_message"`
}

// TimetableTeacher identifies the teacher assigned to a timetable subject.
type TimetableTeacher struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// TimetableSubject is one subject of a timetable call.
type TimetableSubject struct {
	SubjectName string           `json:"subject_name"`
	Room        string           `json:"room"`
	Teacher     TimetableTeacher `json:"teacher"`
}

// TimetableCall is one lesson slot of a timetable date.
type TimetableCall struct {
	CallID     int64              `json:"call_id"`
	CallNumber int                `json:"call_number"`
	TimeStart  string             `json:"time_start"`
	TimeEnd    string             `json:"time_end"`
	Subjects   []TimetableSubject `json:"subjects"`
}

// TimetableDate groups calls under one calendar date.
type TimetableDate struct {
	Date  string          `json:"date"`
	Calls []TimetableCall `json:"calls"`
}

// Timetable is the raw lesson-slot document returned by the portal.
type Timetable struct {
	Dates        []TimetableDate `json:"dates"`
	ErrorMessage string          `json:"error_message"`
}

// DiarySubject is one subject of a diary call. Hometask entries are scanned
// for embedded meeting links.
type DiarySubject struct {
	SubjectName string   `json:"subject_name"`
	Room        string   `json:"room"`
	Hometask    []string `json:"hometask"`
}

// DiaryCall is one lesson slot of a diary date. The portal may leave the
// call number unset.
type DiaryCall struct {
	CallID     *int64         `json:"call_id"`
	CallNumber *int           `json:"call_number"`
	Subjects   []DiarySubject `json:"subjects"`
}

// DiaryDate groups diary calls under one calendar date.
type DiaryDate struct {
	Date  string      `json:"date"`
	Calls []DiaryCall `json:"calls"`
}

// Diary is the raw homework document returned by the portal.
type Diary struct {
	Dates        []DiaryDate `json:"dates"`
	ErrorMessage string      `json:"error_message"`
}
