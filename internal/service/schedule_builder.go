package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/classbot/nz-schedule-bot/internal/models"
	"github.com/classbot/nz-schedule-bot/internal/portal"
)

// PortalClient is the slice of the portal API used by the sync pipeline.
type PortalClient interface {
	Login(ctx context.Context, username, password string) (*portal.LoginResponse, error)
	Timetable(ctx context.Context, accessToken, startDate, endDate string) (*portal.Timetable, error)
	Diary(ctx context.Context, accessToken, startDate, endDate string) (*portal.Diary, error)
}

// ConferenceStore abstracts persistence for meeting-URL mappings.
type ConferenceStore interface {
	FindByURLClassDate(ctx context.Context, url string, class models.Class, date time.Time) (*models.Conference, error)
	Create(ctx context.Context, url string, class models.Class, date time.Time) (*models.Conference, error)
}

var (
	meetingLinkPattern = regexp.MustCompile(`meet\.google\.com/([a-z-]+)`)
	multiSpacePattern  = regexp.MustCompile(`\s{2,}`)
)

// ScheduleBuilder transforms one account's raw timetable and diary into the
// canonical Schedule, resolving embedded meeting links into conference
// redirect URLs.
type ScheduleBuilder struct {
	portal      PortalClient
	conferences ConferenceStore
	meetDomain  string
	location    *time.Location
	logger      *zap.Logger
}

// NewScheduleBuilder constructs a schedule builder.
func NewScheduleBuilder(portalClient PortalClient, conferences ConferenceStore, meetDomain string, location *time.Location, logger *zap.Logger) *ScheduleBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleBuilder{
		portal:      portalClient,
		conferences: conferences,
		meetDomain:  strings.TrimRight(meetDomain, "/"),
		location:    location,
		logger:      logger,
	}
}

// Build fetches the timetable and diary for one account and assembles the
// schedule for the inclusive date range.
func (b *ScheduleBuilder) Build(ctx context.Context, class models.Class, accessToken, startDate, endDate string) (*models.Schedule, error) {
	var (
		wg           sync.WaitGroup
		timetable    *portal.Timetable
		diary        *portal.Diary
		timetableErr error
		diaryErr     error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		timetable, timetableErr = b.portal.Timetable(ctx, accessToken, startDate, endDate)
	}()
	go func() {
		defer wg.Done()
		diary, diaryErr = b.portal.Diary(ctx, accessToken, startDate, endDate)
	}()
	wg.Wait()

	if timetableErr != nil {
		return nil, timetableErr
	}
	if diaryErr != nil {
		return nil, diaryErr
	}

	schedule := &models.Schedule{Dates: make([]models.ScheduleDate, 0, len(timetable.Dates))}

	for _, date := range timetable.Dates {
		lessons := make([]models.ScheduleLesson, 0, len(date.Calls))

		for _, call := range date.Calls {
			meetingURL, err := b.resolveMeetingURL(ctx, class, date.Date, call.CallNumber, diary)
			if err != nil {
				return nil, err
			}

			subjects := make([]models.ScheduleSubject, 0, len(call.Subjects))
			for _, subject := range call.Subjects {
				subjects = append(subjects, models.ScheduleSubject{
					Name:        NormalizeSubjectName(subject.SubjectName),
					TeacherName: subject.Teacher.Name,
					MeetingURL:  meetingURL,
				})
			}

			lessons = append(lessons, models.ScheduleLesson{
				Number:    call.CallNumber,
				StartTime: b.normalizeTime(call.TimeStart, date.Date),
				EndTime:   b.normalizeTime(call.TimeEnd, date.Date),
				Subjects:  subjects,
			})
		}

		schedule.Dates = append(schedule.Dates, models.ScheduleDate{Date: date.Date, Lessons: lessons})
	}

	return schedule, nil
}

// resolveMeetingURL scans the matching diary lesson for a meeting link and
// maps it through the conference store. A missing diary entry or absent link
// yields a nil URL, never an error.
func (b *ScheduleBuilder) resolveMeetingURL(ctx context.Context, class models.Class, date string, callNumber int, diary *portal.Diary) (*string, error) {
	diaryCall := findDiaryCall(diary, date, callNumber)
	if diaryCall == nil {
		return nil, nil
	}

	rawURL := findMeetingURL(diaryCall.Subjects)
	if rawURL == "" {
		return nil, nil
	}

	scheduleDate, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("parse schedule date %q: %w", date, err)
	}

	conference, err := b.conferences.FindByURLClassDate(ctx, rawURL, class, scheduleDate)
	if err != nil {
		return nil, err
	}
	if conference == nil {
		conference, err = b.conferences.Create(ctx, rawURL, class, scheduleDate)
		if err != nil {
			return nil, err
		}
		b.logger.Debug("registered conference",
			zap.String("class", string(class)),
			zap.String("date", date),
			zap.String("conference_id", conference.ID),
		)
	}

	resolved := fmt.Sprintf("%s/meet/%s", b.meetDomain, conference.ID)
	return &resolved, nil
}

// normalizeTime converts a wall-clock HH:mm value from the class's local
// timezone into UTC, anchored on the lesson's own date.
func (b *ScheduleBuilder) normalizeTime(raw, date string) string {
	clock, err := time.Parse("15:04", raw)
	if err != nil {
		b.logger.Warn("unparseable lesson time", zap.String("time", raw))
		return raw
	}
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return raw
	}

	local := time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, b.location)
	return local.UTC().Format("15:04")
}

// NormalizeSubjectName collapses internal whitespace runs to a single space
// and trims the result.
func NormalizeSubjectName(name string) string {
	return strings.TrimSpace(multiSpacePattern.ReplaceAllString(name, " "))
}

func findDiaryCall(diary *portal.Diary, date string, callNumber int) *portal.DiaryCall {
	for _, diaryDate := range diary.Dates {
		// Exact date-string match; range matching would collide across dates.
		if diaryDate.Date != date {
			continue
		}
		for i := range diaryDate.Calls {
			call := &diaryDate.Calls[i]
			if call.CallNumber != nil && *call.CallNumber == callNumber {
				return call
			}
		}
	}
	return nil
}

// findMeetingURL returns the first meeting link found across the diary
// lesson's subjects' homework tasks, in the order received.
func findMeetingURL(subjects []portal.DiarySubject) string {
	for _, subject := range subjects {
		for _, task := range subject.Hometask {
			if match := meetingLinkPattern.FindStringSubmatch(task); match != nil {
				return "https://meet.google.com/" + match[1]
			}
		}
	}
	return ""
}
