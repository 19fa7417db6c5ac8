// Package completeness cross-references active school days and student-teacher
// assignments against recorded attendance and reports what is still missing.
package completeness

import (
	"sort"

	"github.com/noah-isme/sma-attendance-api/pkg/schoolcal"
)

// Assignment binds a student to the teacher who records their attendance.
// Names are optional and only affect ordering and display.
type Assignment struct {
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name,omitempty"`
	TeacherID   string `json:"teacher_id"`
	TeacherName string `json:"teacher_name,omitempty"`
}

// RecordKey identifies an existing attendance record. Status and notes are
// irrelevant for completeness.
type RecordKey struct {
	StudentID string         `json:"student_id" db:"student_id"`
	Date      schoolcal.Date `json:"date" db:"date"`
}

// Entry is a missing (date, student) pair.
type Entry struct {
	Date        schoolcal.Date `json:"date"`
	StudentID   string         `json:"student_id"`
	StudentName string         `json:"student_name,omitempty"`
}

// Group collects the missing entries of one teacher.
type Group struct {
	TeacherID   string  `json:"teacher_id"`
	TeacherName string  `json:"teacher_name,omitempty"`
	Students    int     `json:"students"`
	Expected    int     `json:"expected"`
	Missing     []Entry `json:"missing"`
}

// Report is the grouped result of FindMissing.
type Report struct {
	Groups   []Group `json:"groups"`
	Expected int     `json:"expected"`
	Missing  int     `json:"missing"`
}

// Recorded returns the number of expected entries that already exist.
func (r Report) Recorded() int {
	return r.Expected - r.Missing
}

// CompletionRate returns the recorded share in percent; an empty report is
// complete.
func (r Report) CompletionRate() float64 {
	if r.Expected == 0 {
		return 100
	}
	return float64(r.Recorded()) / float64(r.Expected) * 100
}

// Key builds the membership key for a student on a date.
func Key(studentID string, date schoolcal.Date) string {
	return studentID + "_" + date.String()
}

// FindMissing returns, per teacher, every active day and assigned student
// without a recorded entry. Output order depends only on the input sets:
// groups by teacher name then ID, entries by date, student name, student ID.
func FindMissing(activeDays []schoolcal.Date, assignments []Assignment, records []RecordKey) Report {
	report := Report{Groups: []Group{}}
	days := uniqueSortedDays(activeDays)
	if len(days) == 0 || len(assignments) == 0 {
		return report
	}

	recorded := make(map[string]struct{}, len(records))
	for _, rec := range records {
		recorded[Key(rec.StudentID, rec.Date)] = struct{}{}
	}

	for _, roster := range groupAssignments(assignments) {
		group := Group{
			TeacherID:   roster.teacherID,
			TeacherName: roster.teacherName,
			Students:    len(roster.students),
			Expected:    len(roster.students) * len(days),
		}
		for _, day := range days {
			for _, student := range roster.students {
				if _, ok := recorded[Key(student.StudentID, day)]; ok {
					continue
				}
				group.Missing = append(group.Missing, Entry{
					Date:        day,
					StudentID:   student.StudentID,
					StudentName: student.StudentName,
				})
			}
		}
		report.Expected += group.Expected
		report.Missing += len(group.Missing)
		if len(group.Missing) > 0 {
			report.Groups = append(report.Groups, group)
		}
	}
	return report
}

type roster struct {
	teacherID   string
	teacherName string
	students    []Assignment
}

// groupAssignments dedupes by (teacher, student), merges names and returns
// rosters in display order with students sorted inside each roster.
func groupAssignments(assignments []Assignment) []roster {
	byTeacher := make(map[string]*roster)
	seen := make(map[string]int)
	for _, a := range assignments {
		r, ok := byTeacher[a.TeacherID]
		if !ok {
			r = &roster{teacherID: a.TeacherID}
			byTeacher[a.TeacherID] = r
		}
		r.teacherName = preferName(r.teacherName, a.TeacherName)

		key := a.TeacherID + "\x00" + a.StudentID
		if idx, dup := seen[key]; dup {
			r.students[idx].StudentName = preferName(r.students[idx].StudentName, a.StudentName)
			continue
		}
		seen[key] = len(r.students)
		r.students = append(r.students, Assignment{StudentID: a.StudentID, StudentName: a.StudentName})
	}

	rosters := make([]roster, 0, len(byTeacher))
	for _, r := range byTeacher {
		students := r.students
		sort.Slice(students, func(i, j int) bool {
			return lessByName(students[i].StudentName, students[i].StudentID, students[j].StudentName, students[j].StudentID)
		})
		rosters = append(rosters, *r)
	}
	sort.Slice(rosters, func(i, j int) bool {
		return lessByName(rosters[i].teacherName, rosters[i].teacherID, rosters[j].teacherName, rosters[j].teacherID)
	})
	return rosters
}

func uniqueSortedDays(days []schoolcal.Date) []schoolcal.Date {
	seen := make(map[schoolcal.Date]struct{}, len(days))
	out := make([]schoolcal.Date, 0, len(days))
	for _, d := range days {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// preferName keeps a non-empty name; between two names the smaller wins so
// the merge is independent of input order.
func preferName(current, candidate string) string {
	switch {
	case candidate == "":
		return current
	case current == "" || candidate < current:
		return candidate
	default:
		return current
	}
}

// lessByName orders by display name, falling back to the ID when no name is
// known, with the ID as final tie-break.
func lessByName(nameA, idA, nameB, idB string) bool {
	keyA, keyB := nameA, nameB
	if keyA == "" {
		keyA = idA
	}
	if keyB == "" {
		keyB = idB
	}
	if keyA != keyB {
		return keyA < keyB
	}
	return idA < idB
}
